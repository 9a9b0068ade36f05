package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/auth"
)

type guestResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Token    string    `json:"token"`
}

// GuestHandler issues a fresh player id and session token. A caller that already holds a
// valid token gets a new token for the same player.
func (s *Server) GuestHandler(w http.ResponseWriter, r *http.Request) {
	playerID := uuid.Nil
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		if id, err := s.Auth.AuthenticateJWT(cookie.Value); err == nil {
			playerID = id
		}
	}
	if playerID == uuid.Nil {
		playerID = uuid.New()
	}

	token, err := s.Auth.CreateJWT(playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, guestResponse{PlayerID: playerID, Token: token})
}
