package middleware

import (
	"net/http"
	"strings"

	"github.com/jason-s-yu/codeduel/internal/auth"
)

// TokenFromRequest returns the session token from the auth cookie, falling back to a
// Bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth rejects requests without a valid session token and stores the
// player id on the request context.
func RequireAuth(a *auth.Authority) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, "missing auth token", http.StatusUnauthorized)
				return
			}
			id, err := a.AuthenticateJWT(token)
			if err != nil {
				http.Error(w, "invalid auth token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPlayer(r.Context(), id)))
		})
	}
}
