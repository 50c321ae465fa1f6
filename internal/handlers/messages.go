// internal/handlers/messages.go
package handlers

import "hintone/internal/view"

// ClientMessage is the envelope for every incoming WebSocket message. Fields
// beyond Type are populated per command; unused ones stay zero.
type ClientMessage struct {
	Type string `json:"type"`

	// PlayerName is required for create-room and join-room.
	PlayerName string `json:"playerName,omitempty"`

	// RoomID is required for join-room; every later command uses the room the
	// connection is already bound to.
	RoomID string `json:"roomId,omitempty"`

	// TotalRounds optionally overrides the round count on start-game.
	TotalRounds int `json:"totalRounds,omitempty"`

	Hint   string `json:"hint,omitempty"`
	Answer string `json:"answer,omitempty"`
}

// Incoming message types.
const (
	MsgCreateRoom      = "create-room"
	MsgJoinRoom        = "join-room"
	MsgStartGame       = "start-game"
	MsgSubmitHint      = "submit-hint"
	MsgSubmitAnswer    = "submit-answer"
	MsgNextRound       = "next-round"
	MsgRegenerateTopic = "regenerate-topic"
	MsgReturnToLobby   = "return-to-lobby"
	MsgPing            = "ping"
)

// RoomEvent is the server-to-client envelope for room acks and snapshots.
type RoomEvent struct {
	Type     string        `json:"type"`
	PlayerID string        `json:"playerId,omitempty"`
	Room     view.RoomView `json:"room"`
}

// Outgoing message types.
const (
	EvtRoomCreated = "room-created"
	EvtRoomJoined  = "room-joined"
	EvtRoomUpdated = "room-updated"
)
