package models

// Phase is the current step of a round's state machine.
type Phase string

const (
	PhaseHinting  Phase = "HINTING"
	PhaseGuessing Phase = "GUESSING"
	PhaseResult   Phase = "RESULT"
	PhaseFinished Phase = "FINISHED"
)

// Hint is one non-answerer's submission for the current round. IsValid
// defaults true and is only ever downgraded by duplicate judging.
type Hint struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	IsValid    bool   `json:"isValid"`
}

// RoundResult freezes the facts of a round at the moment its answer was
// judged. Entries are append-only and never mutated.
type RoundResult struct {
	Round        int    `json:"round"`
	Topic        string `json:"topic"`
	AnswererID   string `json:"answererId"`
	AnswererName string `json:"answererName"`
	Answer       string `json:"answer"`
	IsCorrect    bool   `json:"isCorrect"`
}

// JustOneGame is the per-room game state for the just-one variant. It is a
// value owned by exactly one Room; transitions in internal/game replace it
// wholesale rather than mutating in place.
type JustOneGame struct {
	Type         GameType      `json:"type"`
	Phase        Phase         `json:"phase"`
	Topic        string        `json:"topic"`
	AnswererID   string        `json:"answererId"`
	Hints        []Hint        `json:"hints"`
	Answer       *string       `json:"answer"`
	IsCorrect    *bool         `json:"isCorrect"`
	Round        int           `json:"round"`
	TotalRounds  int           `json:"totalRounds"`
	UsedTopics   []string      `json:"usedTopics"`
	RoundResults []RoundResult `json:"roundResults"`
}
