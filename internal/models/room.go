package models

import (
	"math/rand"
	"time"
)

// GameType tags the game variant a room is playing.
type GameType string

const GameTypeJustOne GameType = "just-one"

// GameConfig holds per-variant lobby constraints.
type GameConfig struct {
	MinPlayers int
	MaxPlayers int
	Name       string
}

// GameConfigs maps each supported variant to its config.
var GameConfigs = map[GameType]GameConfig{
	GameTypeJustOne: {
		MinPlayers: 3,
		MaxPlayers: 10,
		Name:       "Just One",
	},
}

// Room is the sole unit of persistence. Players keeps join order with the
// host first; a player id appears at most once.
type Room struct {
	ID        string      `json:"id"`
	Players   []Player    `json:"players"`
	GameType  GameType    `json:"gameType"`
	Game      *JustOneGame `json:"game"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewRoom creates a room containing only the host.
func NewRoom(id string, host Player, gameType GameType) Room {
	return Room{
		ID:        id,
		Players:   []Player{host},
		GameType:  gameType,
		Game:      nil,
		CreatedAt: time.Now(),
	}
}

// AddPlayer appends a player unless their id is already present.
func AddPlayer(room Room, player Player) Room {
	for _, p := range room.Players {
		if p.ID == player.ID {
			return room
		}
	}
	players := make([]Player, len(room.Players), len(room.Players)+1)
	copy(players, room.Players)
	room.Players = append(players, player)
	return room
}

// SetPlayerConnection updates the connection flag for the matching player.
// Rooms are value types, so callers always receive a fresh copy.
func SetPlayerConnection(room Room, playerID string, isConnected bool) Room {
	players := make([]Player, len(room.Players))
	copy(players, room.Players)
	for i := range players {
		if players[i].ID == playerID {
			players[i].IsConnected = isConnected
		}
	}
	room.Players = players
	return room
}

// Host returns the room's host, or false if somehow absent.
func Host(room Room) (Player, bool) {
	for _, p := range room.Players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}

// FindPlayer looks a player up by id.
func FindPlayer(room Room, playerID string) (Player, bool) {
	for _, p := range room.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// ConnectedPlayers returns the connected subset in join order.
func ConnectedPlayers(room Room) []Player {
	var connected []Player
	for _, p := range room.Players {
		if p.IsConnected {
			connected = append(connected, p)
		}
	}
	return connected
}

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateRoomID returns a 4-letter uppercase room code. Collision handling
// is the caller's responsibility (retry against the store).
func GenerateRoomID() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
	}
	return string(b)
}
