// internal/judge/judge.go
package judge

import (
	"context"
	"strings"

	"hintone/internal/models"
)

// Validation is a single pass/fail verdict with an optional user-facing
// reason.
type Validation struct {
	IsValid bool
	Error   string
}

// HintVerdict is the per-player outcome of duplicate judging. Verdicts are
// correlated by PlayerID, never by position.
type HintVerdict struct {
	PlayerID string
	IsValid  bool
	Reason   string
}

// AnswerVerdict is the outcome of answer judging.
type AnswerVerdict struct {
	IsCorrect bool
	Reason    string
}

// Judge is the external semantic-classification boundary the game core
// depends on. Every call may fail; callers are expected to degrade
// permissively (fail-open) rather than block gameplay.
type Judge interface {
	// GenerateTopic produces a fresh topic absent from exclude.
	GenerateTopic(ctx context.Context, exclude []string) (string, error)

	// ValidateHintFormat checks that the hint is a single lexical unit.
	ValidateHintFormat(ctx context.Context, hint string) (Validation, error)

	// ValidateHintAgainstTopic checks whether the hint is a translation or
	// orthographic variant of the topic. Associative and related words are
	// valid; that is the core mechanic, not an edge case.
	ValidateHintAgainstTopic(ctx context.Context, topic, hint string) (Validation, error)

	// JudgeHints invalidates semantic duplicates in groups: if two or more
	// hints are equivalent, every member of the group becomes invalid.
	JudgeHints(ctx context.Context, topic string, hints []models.Hint) ([]HintVerdict, error)

	// JudgeAnswer decides correctness, accepting orthographic variants.
	JudgeAnswer(ctx context.Context, topic, answer string) (AnswerVerdict, error)
}

// CheckHintAgainstTopic runs the cheap deterministic pre-checks that apply
// before (and regardless of) any judge call: a hint may not equal the topic,
// contain it, or be a substring of it (for hints of two or more runes).
func CheckHintAgainstTopic(topic, hint string) Validation {
	t := strings.TrimSpace(topic)
	h := strings.TrimSpace(hint)
	if h == t {
		return Validation{IsValid: false, Error: "hint is identical to the topic"}
	}
	if t != "" && strings.Contains(h, t) {
		return Validation{IsValid: false, Error: "hint contains the topic"}
	}
	if len([]rune(h)) >= 2 && strings.Contains(t, h) {
		return Validation{IsValid: false, Error: "hint is part of the topic"}
	}
	return Validation{IsValid: true}
}

// NormalizedMatch is the deterministic fallback for answer judging: trim and
// casefold, then compare exactly.
func NormalizedMatch(topic, answer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == strings.ToLower(strings.TrimSpace(topic))
}
