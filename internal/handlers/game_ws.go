// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hintone/internal/models"
	"hintone/internal/service"
	"hintone/internal/view"
)

// GameWSHandler upgrades the HTTP connection to WebSocket on /game/ws.
// It authenticates (or mints) a player identity, registers the connection,
// and runs the read loop routing commands into the service. The same player
// id survives reconnects via the auth cookie, so a dropped client can rejoin
// its room as itself.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The identity cookie must be set before the upgrade response.
		playerID, err := EnsurePlayerToken(w, r)
		if err != nil {
			logger.Warnf("player authentication failed: %v", err)
			http.Error(w, "Authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			logger.Warnf("Client connected with invalid subprotocol: %s", c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'game' subprotocol.")
			return
		}
		logger.Infof("WebSocket connection established for player %s from %s", playerID, r.RemoteAddr)

		connID := gs.register(c, playerID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readGameMessages(ctx, c, gs, connID, playerID, logger)

		// Cleanup after the read loop exits (error, closure, or cancellation).
		_, roomID := gs.unregister(connID)
		if roomID != "" {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := gs.Service.SetPlayerConnection(dctx, roomID, playerID, false); err != nil {
				logger.Warnf("failed to mark player %s disconnected in room %s: %v", playerID, roomID, err)
			}
			dcancel()
		}
		logger.Infof("Player %s WebSocket read loop exited.", playerID)
	}
}

// readGameMessages continuously reads messages from a client's connection,
// unmarshals them, and routes them to the service. It exits on read error or
// context cancellation.
func readGameMessages(ctx context.Context, c *websocket.Conn, gs *GameServer, connID uuid.UUID, playerID string, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for player %s.", playerID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for player %s.", playerID)
			} else {
				logger.Warnf("Error reading from WebSocket for player %s: %v (Status: %d)", playerID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from player %s. Ignoring.", msgType, playerID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from player %s: %v. Data: %s", playerID, err, string(data))
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received command '%s' from player %s.", msg.Type, playerID)
		handleGameMessage(ctx, c, gs, connID, playerID, msg, logger)

		select {
		case <-ctx.Done():
			logger.Infof("Context canceled after processing message for player %s.", playerID)
			return
		default:
		}
	}
}

// handleGameMessage dispatches one client command. Service errors are
// reported to the offending client only; successful mutations reach everyone
// through the broadcast subscriber.
func handleGameMessage(ctx context.Context, c *websocket.Conn, gs *GameServer, connID uuid.UUID, playerID string, msg ClientMessage, logger *logrus.Logger) {
	svc := gs.Service

	switch msg.Type {
	case MsgCreateRoom:
		if strings.TrimSpace(msg.PlayerName) == "" {
			sendWsError(ctx, c, "playerName is required.")
			return
		}
		room, err := svc.CreateRoom(ctx, playerID, msg.PlayerName, models.GameTypeJustOne)
		if err != nil {
			sendServiceError(ctx, c, err)
			return
		}
		gs.bindRoom(connID, room.ID)
		sendWsMessage(ctx, c, RoomEvent{
			Type:     EvtRoomCreated,
			PlayerID: playerID,
			Room:     view.ForPlayer(room, playerID),
		})

	case MsgJoinRoom:
		if strings.TrimSpace(msg.PlayerName) == "" || msg.RoomID == "" {
			sendWsError(ctx, c, "playerName and roomId are required.")
			return
		}
		room, err := svc.JoinRoom(ctx, strings.ToUpper(msg.RoomID), playerID, msg.PlayerName)
		if err != nil {
			sendServiceError(ctx, c, err)
			return
		}
		gs.bindRoom(connID, room.ID)
		sendWsMessage(ctx, c, RoomEvent{
			Type:     EvtRoomJoined,
			PlayerID: playerID,
			Room:     view.ForPlayer(room, playerID),
		})

	case MsgStartGame:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.StartGame(ctx, roomID, playerID, msg.TotalRounds, nil); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgSubmitHint:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.SubmitHint(ctx, roomID, playerID, msg.Hint); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgSubmitAnswer:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.SubmitAnswer(ctx, roomID, playerID, msg.Answer); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgNextRound:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.NextRound(ctx, roomID, playerID); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgRegenerateTopic:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.RegenerateTopic(ctx, roomID, playerID); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgReturnToLobby:
		roomID := gs.boundRoom(connID)
		if roomID == "" {
			sendWsError(ctx, c, "Join a room first.")
			return
		}
		if _, err := svc.ReturnToLobby(ctx, roomID, playerID); err != nil {
			sendServiceError(ctx, c, err)
		}

	case MsgPing:
		logger.Tracef("Received ping from player %s, sending pong.", playerID)
		sendWsMessage(ctx, c, map[string]string{"type": "pong"})

	default:
		logger.Warnf("Unknown command type '%s' from player %s.", msg.Type, playerID)
		sendWsError(ctx, c, fmt.Sprintf("Unknown command type: %s", msg.Type))
	}
}

// sendServiceError translates a service error into a client-facing message.
func sendServiceError(ctx context.Context, c *websocket.Conn, err error) {
	switch {
	case errors.Is(err, service.ErrStateChanged):
		sendWsError(ctx, c, "The room changed while your request was in flight. Please retry.")
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrGameNotStarted),
		errors.Is(err, service.ErrInvalidGameType),
		errors.Is(err, service.ErrNotHost),
		errors.Is(err, service.ErrNotAnswerer),
		errors.Is(err, service.ErrInvalidPhase),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrRoomFull),
		errors.Is(err, service.ErrHintNotSingleWord),
		errors.Is(err, service.ErrHintContainsTopic),
		errors.Is(err, service.ErrPlayerNotInRoom):
		sendWsError(ctx, c, err.Error())
	default:
		sendWsError(ctx, c, "Internal server error.")
	}
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
// Includes logging for errors and uses a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.Write(writeCtx, websocket.MessageText, msgBytes)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		} else if strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Timeout writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
