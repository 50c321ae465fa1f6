// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hintone/internal/models"
)

// GameArchive persists finished games. It satisfies service.Archiver.
type GameArchive struct{}

func NewGameArchive() *GameArchive {
	return &GameArchive{}
}

// SaveGameResults records a finished game and its per-round outcomes. The
// room snapshot goes in as JSON alongside one row per round result.
func (a *GameArchive) SaveGameResults(ctx context.Context, room models.Room) error {
	if room.Game == nil {
		return fmt.Errorf("room %s has no game to archive", room.ID)
	}

	snapshot, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		insertGame := `
			INSERT INTO games (room_id, game_type, total_rounds, final_state, finished_at)
			VALUES ($1, $2, $3, $4, NOW())
		`
		if _, e := tx.Exec(ctx, insertGame, room.ID, string(room.GameType), room.Game.TotalRounds, snapshot); e != nil {
			return e
		}

		for _, rr := range room.Game.RoundResults {
			q := `
				INSERT INTO round_results (room_id, round, topic, answerer_id, answerer_name, answer, is_correct)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`
			if _, e := tx.Exec(ctx, q, room.ID, rr.Round, rr.Topic, rr.AnswererID, rr.AnswererName, rr.Answer, rr.IsCorrect); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx archive game results: %w", err)
	}
	return nil
}
