// internal/handlers/server.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/codeduel/internal/auth"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Server exposes the battle engine over HTTP and websockets.
type Server struct {
	Engine *battle.Engine
	Auth   *auth.Authority
	Logger logrus.FieldLogger

	// SubmitTimeout bounds a submission once accepted; it outlives the client connection.
	SubmitTimeout time.Duration
	// SecureCookies marks issued auth cookies Secure.
	SecureCookies bool
	// AllowedOrigins feeds both CORS and the websocket origin check.
	AllowedOrigins []string
}

// NewRouter mounts every route on a chi router.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: !anyOrigin(s.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Post("/auth/guest", s.GuestHandler)

	r.Route("/battles", func(r chi.Router) {
		// the socket authenticates itself so it can report failures with a close code
		r.Get("/{id}/ws", s.BattleSocketHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.Auth))

			r.Post("/", s.CreateBattleHandler)
			r.Post("/join", s.JoinBattleHandler)
			r.Get("/{id}", s.GetBattleHandler)
			r.Post("/{id}/cancel", s.CancelBattleHandler)
			r.Get("/{id}/round", s.CurrentRoundHandler)
			r.Post("/{id}/advance", s.AdvanceRoundHandler)
			r.Post("/{id}/submissions", s.SubmitHandler)
			r.Get("/{id}/attempts", s.ListAttemptsHandler)
		})
	})
	return r
}

// anyOrigin reports whether origins admit every site, which go-chi/cors also assumes for
// an empty list. Credentials are never shared with such a list.
func anyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
