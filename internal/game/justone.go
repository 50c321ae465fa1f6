// internal/game/justone.go
package game

import (
	"hintone/internal/models"
)

// DefaultTotalRounds is used when the host does not choose a round count.
const DefaultTotalRounds = 5

// NewJustOneGame starts round 1 in HINTING with the given topic and answerer.
// The opening topic is recorded in UsedTopics so later generations exclude it.
func NewJustOneGame(answererID, topic string, totalRounds int) *models.JustOneGame {
	if totalRounds <= 0 {
		totalRounds = DefaultTotalRounds
	}
	return &models.JustOneGame{
		Type:         models.GameTypeJustOne,
		Phase:        models.PhaseHinting,
		Topic:        topic,
		AnswererID:   answererID,
		Hints:        []models.Hint{},
		Answer:       nil,
		IsCorrect:    nil,
		Round:        1,
		TotalRounds:  totalRounds,
		UsedTopics:   []string{topic},
		RoundResults: []models.RoundResult{},
	}
}

// SubmitHint appends a hint for playerID. It is a no-op unless the game is in
// HINTING, the player is not the answerer, and they have not already
// submitted this round.
func SubmitHint(g *models.JustOneGame, playerID, playerName, text string) *models.JustOneGame {
	if g.Phase != models.PhaseHinting {
		return g
	}
	if playerID == g.AnswererID {
		return g
	}
	for _, h := range g.Hints {
		if h.PlayerID == playerID {
			return g
		}
	}
	next := clone(g)
	next.Hints = append(next.Hints, models.Hint{
		PlayerID:   playerID,
		PlayerName: playerName,
		Text:       text,
		IsValid:    true,
	})
	return next
}

// AllHintsSubmitted reports whether every expected hint is in. totalPlayers
// is the count of currently connected players including the answerer, so the
// quota adapts to players who disconnected before submitting.
func AllHintsSubmitted(g *models.JustOneGame, totalPlayers int) bool {
	return len(g.Hints) >= totalPlayers-1
}

// SetHintValidity folds judge verdicts into the hints. Players absent from
// the map keep their current validity, so a partial judge response never
// silently reverts an invalidated hint.
func SetHintValidity(g *models.JustOneGame, validity map[string]bool) *models.JustOneGame {
	next := clone(g)
	for i := range next.Hints {
		if v, ok := validity[next.Hints[i].PlayerID]; ok {
			next.Hints[i].IsValid = v
		}
	}
	return next
}

// TransitionToGuessing moves HINTING to GUESSING. Judging must have completed
// before this transition so the answerer's view redacts invalid hints.
func TransitionToGuessing(g *models.JustOneGame) *models.JustOneGame {
	if g.Phase != models.PhaseHinting {
		return g
	}
	next := clone(g)
	next.Phase = models.PhaseGuessing
	return next
}

// ApplyAnswer records the answerer's guess and its verdict, moves to RESULT,
// and appends the round's frozen RoundResult. No-op outside GUESSING.
func ApplyAnswer(g *models.JustOneGame, answer, answererName string, isCorrect bool) *models.JustOneGame {
	if g.Phase != models.PhaseGuessing {
		return g
	}
	next := clone(g)
	next.Phase = models.PhaseResult
	next.Answer = &answer
	next.IsCorrect = &isCorrect
	next.RoundResults = append(next.RoundResults, models.RoundResult{
		Round:        g.Round,
		Topic:        g.Topic,
		AnswererID:   g.AnswererID,
		AnswererName: answererName,
		Answer:       answer,
		IsCorrect:    isCorrect,
	})
	return next
}

// IsLastRound reports whether the current round is the final one.
func IsLastRound(g *models.JustOneGame) bool {
	return g.Round >= g.TotalRounds
}

// Finish marks the game FINISHED. Round results are preserved for the
// end-of-game summary.
func Finish(g *models.JustOneGame) *models.JustOneGame {
	next := clone(g)
	next.Phase = models.PhaseFinished
	return next
}

// ResetForNextRound begins the next round in HINTING with a fresh topic and
// answerer. Used topics and round results carry over.
func ResetForNextRound(g *models.JustOneGame, newAnswererID, newTopic string) *models.JustOneGame {
	next := clone(g)
	next.Phase = models.PhaseHinting
	next.Topic = newTopic
	next.AnswererID = newAnswererID
	next.Hints = []models.Hint{}
	next.Answer = nil
	next.IsCorrect = nil
	next.Round = g.Round + 1
	next.UsedTopics = append(next.UsedTopics, newTopic)
	return next
}

// RegenerateTopic swaps the current round's topic and discards any hints
// already submitted, since they pointed at the old topic. No-op outside
// HINTING. The host-only and no-hints-yet preconditions are enforced by the
// orchestrator.
func RegenerateTopic(g *models.JustOneGame, newTopic string) *models.JustOneGame {
	if g.Phase != models.PhaseHinting {
		return g
	}
	next := clone(g)
	next.Topic = newTopic
	next.Hints = []models.Hint{}
	next.UsedTopics = append(next.UsedTopics, newTopic)
	return next
}

// clone deep-copies a game so transitions never alias the stored value's
// slices.
func clone(g *models.JustOneGame) *models.JustOneGame {
	next := *g
	next.Hints = make([]models.Hint, len(g.Hints))
	copy(next.Hints, g.Hints)
	next.UsedTopics = make([]string, len(g.UsedTopics))
	copy(next.UsedTopics, g.UsedTopics)
	next.RoundResults = make([]models.RoundResult, len(g.RoundResults))
	copy(next.RoundResults, g.RoundResults)
	if g.Answer != nil {
		a := *g.Answer
		next.Answer = &a
	}
	if g.IsCorrect != nil {
		c := *g.IsCorrect
		next.IsCorrect = &c
	}
	return &next
}
