package models

// Player is a room member. ID is a stable client-chosen identifier that
// survives reconnects; it is not a session id.
type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}

// NewPlayer builds a Player marked connected.
func NewPlayer(id, name string, isHost bool) Player {
	return Player{
		ID:          id,
		Name:        name,
		IsHost:      isHost,
		IsConnected: true,
	}
}
