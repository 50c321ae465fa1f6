// internal/handlers/identity.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hintone/internal/auth"
)

const authCookieName = "auth_token"

// EnsurePlayerToken resolves the player identity for a request. A valid auth
// cookie yields the existing player id, so reconnecting clients keep their
// seat; otherwise a fresh id is minted and a signed cookie is set on the
// response. Must run before the WebSocket upgrade writes headers.
func EnsurePlayerToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := extractCookieToken(r.Header.Get("Cookie"), authCookieName); token != "" {
		playerID, err := auth.AuthenticateJWT(token)
		if err == nil {
			if _, perr := uuid.Parse(playerID); perr == nil {
				return playerID, nil
			}
		}
		// Fall through and mint a new identity on any validation failure.
	}

	playerID := uuid.NewString()
	token, err := auth.CreateJWT(playerID)
	if err != nil {
		return "", fmt.Errorf("failed to create player token: %w", err)
	}

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if auth.TOKEN_EXPIRE_TIME_SEC > 0 {
		cookie.MaxAge = auth.TOKEN_EXPIRE_TIME_SEC
	}
	http.SetCookie(w, cookie)
	return playerID, nil
}

// extractCookieToken extracts a named cookie value from a "Cookie" header, or
// returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
