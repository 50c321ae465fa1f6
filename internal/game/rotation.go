// internal/game/rotation.go
package game

import (
	"math/rand"

	"hintone/internal/models"
)

// PickFirstAnswerer selects the opening answerer uniformly at random among
// connected players. Returns false if nobody is connected.
func PickFirstAnswerer(players []models.Player) (models.Player, bool) {
	var connected []models.Player
	for _, p := range players {
		if p.IsConnected {
			connected = append(connected, p)
		}
	}
	if len(connected) == 0 {
		return models.Player{}, false
	}
	return connected[rand.Intn(len(connected))], true
}

// NextAnswerer picks the successor for the following round: the first
// connected player strictly after the current answerer's position in room
// join order, wrapping around. Anchoring off the current answerer's
// last-known room position keeps the rotation deterministic even when they
// have since disconnected. Returns false if no connected player exists.
func NextAnswerer(players []models.Player, currentAnswererID string) (models.Player, bool) {
	anchor := -1
	for i, p := range players {
		if p.ID == currentAnswererID {
			anchor = i
			break
		}
	}
	// Unknown answerer id degenerates to "first connected after the end",
	// i.e. the first connected player in join order.
	n := len(players)
	if n == 0 {
		return models.Player{}, false
	}
	for step := 1; step <= n; step++ {
		candidate := players[((anchor+step)%n+n)%n]
		if candidate.IsConnected {
			return candidate, true
		}
	}
	return models.Player{}, false
}
