// internal/service/rooms.go
package service

import (
	"context"
	"fmt"

	"hintone/internal/models"
)

// CreateRoom generates a fresh room code, installs the caller as host, and
// persists the new room.
func (s *Service) CreateRoom(ctx context.Context, playerID, playerName string, gameType models.GameType) (models.Room, error) {
	if gameType == "" {
		gameType = models.GameTypeJustOne
	}
	if _, ok := models.GameConfigs[gameType]; !ok {
		return models.Room{}, fmt.Errorf("game type %s: %w", gameType, ErrInvalidGameType)
	}

	// Retry random codes until one is free, then claim it under its own
	// room lock so two concurrent creates cannot race on the same code.
	for {
		roomID := models.GenerateRoomID()
		exists, err := s.store.Exists(ctx, roomID)
		if err != nil {
			return models.Room{}, fmt.Errorf("check room id %s: %w", roomID, err)
		}
		if exists {
			continue
		}

		lock := s.roomLock(roomID)
		lock.Lock()
		exists, err = s.store.Exists(ctx, roomID)
		if err != nil {
			lock.Unlock()
			return models.Room{}, fmt.Errorf("check room id %s: %w", roomID, err)
		}
		if exists {
			lock.Unlock()
			continue
		}

		host := models.NewPlayer(playerID, playerName, true)
		room := models.NewRoom(roomID, host, gameType)
		err = s.persist(ctx, room)
		lock.Unlock()
		if err != nil {
			return models.Room{}, err
		}

		s.logger.WithFields(map[string]interface{}{
			"room":   room.ID,
			"player": playerID,
		}).Info("room created")
		return room, nil
	}
}

// JoinRoom adds the player to the room, or reconnects them if their id is
// already a member. Idempotent with respect to player identity.
func (s *Service) JoinRoom(ctx context.Context, roomID, playerID, playerName string) (models.Room, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}

	if _, ok := models.FindPlayer(room, playerID); ok {
		room = models.SetPlayerConnection(room, playerID, true)
	} else {
		cfg := models.GameConfigs[room.GameType]
		if cfg.MaxPlayers > 0 && len(room.Players) >= cfg.MaxPlayers {
			return models.Room{}, fmt.Errorf("room %s: %w", roomID, ErrRoomFull)
		}
		room = models.AddPlayer(room, models.NewPlayer(playerID, playerName, false))
	}

	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithFields(map[string]interface{}{
		"room":   room.ID,
		"player": playerID,
	}).Info("player joined room")
	return room, nil
}

// SetPlayerConnection records a transport connect or disconnect. The player
// stays a room member either way so they can reconnect and resume.
func (s *Service) SetPlayerConnection(ctx context.Context, roomID, playerID string, connected bool) (models.Room, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	room = models.SetPlayerConnection(room, playerID, connected)
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ReturnToLobby clears a FINISHED game so the room can start a new one.
// Host only.
func (s *Service) ReturnToLobby(ctx context.Context, roomID, playerID string) (models.Room, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		return models.Room{}, err
	}
	if err := requireHost(room, playerID); err != nil {
		return models.Room{}, err
	}
	if err := requirePhase(g, models.PhaseFinished); err != nil {
		return models.Room{}, err
	}

	room.Game = nil
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithField("room", room.ID).Info("room returned to lobby")
	return room, nil
}
