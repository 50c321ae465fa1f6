// internal/handlers/game_server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hintone/internal/models"
	"hintone/internal/service"
	"hintone/internal/view"
)

// session tracks one live WebSocket connection and the identity bound to it.
// RoomID is empty until the connection creates or joins a room.
type session struct {
	conn     *websocket.Conn
	playerID string
	roomID   string
}

// GameServer owns the session registry and fans room snapshots out to
// connected clients. It is the service's OnRoomChanged subscriber.
type GameServer struct {
	Service *service.Service
	logger  *logrus.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewGameServer(svc *service.Service, logger *logrus.Logger) *GameServer {
	gs := &GameServer{
		Service:  svc,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
	}
	svc.OnRoomChanged = gs.broadcastRoom
	return gs
}

// register adds a connection to the registry and returns its id.
func (gs *GameServer) register(conn *websocket.Conn, playerID string) uuid.UUID {
	connID := uuid.New()
	gs.mu.Lock()
	gs.sessions[connID] = &session{conn: conn, playerID: playerID}
	gs.mu.Unlock()
	return connID
}

// unregister removes a connection and returns the room it was bound to, if
// any, so the caller can mark the player disconnected.
func (gs *GameServer) unregister(connID uuid.UUID) (playerID, roomID string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	s, ok := gs.sessions[connID]
	if !ok {
		return "", ""
	}
	delete(gs.sessions, connID)
	return s.playerID, s.roomID
}

// bindRoom records which room a connection is acting in. Later commands on
// the same connection target this room.
func (gs *GameServer) bindRoom(connID uuid.UUID, roomID string) {
	gs.mu.Lock()
	if s, ok := gs.sessions[connID]; ok {
		s.roomID = roomID
	}
	gs.mu.Unlock()
}

// boundRoom returns the room a connection is bound to.
func (gs *GameServer) boundRoom(connID uuid.UUID) string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if s, ok := gs.sessions[connID]; ok {
		return s.roomID
	}
	return ""
}

// broadcastRoom pushes a per-player snapshot of room to every connection
// bound to it. Each player gets their own projection, so the answerer never
// receives the topic mid-round.
func (gs *GameServer) broadcastRoom(room models.Room) {
	type target struct {
		conn     *websocket.Conn
		playerID string
	}
	var targets []target

	gs.mu.Lock()
	for _, s := range gs.sessions {
		if s.roomID == room.ID {
			targets = append(targets, target{conn: s.conn, playerID: s.playerID})
		}
	}
	gs.mu.Unlock()

	for _, t := range targets {
		ev := RoomEvent{
			Type: EvtRoomUpdated,
			Room: view.ForPlayer(room, t.playerID),
		}
		data, err := json.Marshal(ev)
		if err != nil {
			gs.logger.Errorf("failed to marshal room snapshot for room %s: %v", room.ID, err)
			return
		}
		go func(conn *websocket.Conn, data []byte, playerID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				gs.logger.Warnf("failed to push room snapshot to player %s in room %s: %v", playerID, room.ID, err)
			}
		}(t.conn, data, t.playerID)
	}
}
