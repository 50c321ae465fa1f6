// Package view projects rooms into per-player snapshots. The projection is
// where secrecy lives: the raw room always carries the full topic and hint
// text, and redaction happens here, immediately before a snapshot leaves the
// server.
package view

import (
	"time"

	"hintone/internal/models"
)

// HintView is a hint as one particular player is allowed to see it. Text is
// nil when the viewer may not read it yet.
type HintView struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Text       *string `json:"text"`
	IsValid    bool    `json:"isValid"`
}

// GameView mirrors models.JustOneGame with viewer-dependent fields redacted.
type GameView struct {
	Type         models.GameType      `json:"type"`
	Phase        models.Phase         `json:"phase"`
	Topic        *string              `json:"topic"`
	AnswererID   string               `json:"answererId"`
	Hints        []HintView           `json:"hints"`
	Answer       *string              `json:"answer"`
	IsCorrect    *bool                `json:"isCorrect"`
	Round        int                  `json:"round"`
	TotalRounds  int                  `json:"totalRounds"`
	RoundResults []models.RoundResult `json:"roundResults"`
}

// RoomView is the complete per-player snapshot pushed over the socket.
type RoomView struct {
	ID        string          `json:"id"`
	Players   []models.Player `json:"players"`
	GameType  models.GameType `json:"gameType"`
	Game      *GameView       `json:"game"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ForPlayer builds the snapshot of room as seen by playerID.
//
// Redaction rules:
//   - topic is hidden from the answerer until RESULT (revealed again in
//     FINISHED);
//   - during HINTING no hint text is visible to anyone, and validity reads
//     true so nobody can infer early duplicate verdicts;
//   - during GUESSING only valid hint text is visible;
//   - from RESULT on, everything is visible.
func ForPlayer(room models.Room, playerID string) RoomView {
	v := RoomView{
		ID:        room.ID,
		Players:   room.Players,
		GameType:  room.GameType,
		CreatedAt: room.CreatedAt,
	}
	if room.Game == nil {
		return v
	}
	g := room.Game

	gv := &GameView{
		Type:         room.GameType,
		Phase:        g.Phase,
		AnswererID:   g.AnswererID,
		Answer:       g.Answer,
		IsCorrect:    g.IsCorrect,
		Round:        g.Round,
		TotalRounds:  g.TotalRounds,
		RoundResults: g.RoundResults,
	}

	revealed := g.Phase == models.PhaseResult || g.Phase == models.PhaseFinished
	if playerID != g.AnswererID || revealed {
		topic := g.Topic
		gv.Topic = &topic
	}

	gv.Hints = make([]HintView, len(g.Hints))
	for i, h := range g.Hints {
		hv := HintView{
			PlayerID:   h.PlayerID,
			PlayerName: h.PlayerName,
			IsValid:    h.IsValid,
		}
		switch g.Phase {
		case models.PhaseHinting:
			// Hide verdicts along with text; a false here would tell the
			// table a duplicate landed before the reveal.
			hv.IsValid = true
		case models.PhaseGuessing:
			if h.IsValid {
				text := h.Text
				hv.Text = &text
			}
		default:
			text := h.Text
			hv.Text = &text
		}
		gv.Hints[i] = hv
	}

	v.Game = gv
	return v
}
