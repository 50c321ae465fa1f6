// internal/service/errors.go
package service

import "errors"

// Command errors. All are recoverable and user-facing: they are returned to
// the originating client only, never broadcast, and never leave the room
// mutated. Judge-call failures are deliberately absent here; those degrade
// fail-open instead of surfacing.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrGameNotStarted    = errors.New("game has not started")
	ErrInvalidGameType   = errors.New("action is not supported for this game type")
	ErrNotHost           = errors.New("only the host can perform this action")
	ErrNotAnswerer       = errors.New("only the answerer can submit an answer")
	ErrInvalidPhase      = errors.New("cannot perform action in current phase")
	ErrNotEnoughPlayers  = errors.New("not enough players to start the game")
	ErrRoomFull          = errors.New("room is full")
	ErrHintNotSingleWord = errors.New("hint must be a single word")
	ErrHintContainsTopic = errors.New("hint must not reveal the topic")

	// ErrPlayerNotInRoom guards against a playerId with no Player record.
	// Normal join flow makes this unreachable; hitting it means a logic bug.
	ErrPlayerNotInRoom = errors.New("player not found in room")

	// ErrStateChanged is the soft failure for commands whose room advanced
	// past the expected phase while the command was awaiting a judge call.
	// The caller may simply retry against the fresh state.
	ErrStateChanged = errors.New("room state changed, retry")
)
