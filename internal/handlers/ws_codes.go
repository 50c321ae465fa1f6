// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handlers. These provide more
// specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidPlayerIDError  = 3002 // Player ID derived from token was malformed.
)
