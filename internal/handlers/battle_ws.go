// internal/handlers/battle_ws.go
package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/middleware"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/sirupsen/logrus"
)

const battleSubprotocol = "battle"

// BattleEvent is the only server-to-client frame: the full authoritative battle.
type BattleEvent struct {
	Type   string         `json:"type"`
	Battle *models.Battle `json:"battle"`
}

// BattleSocketHandler streams battle snapshots to a participant. The current state is
// sent on connect and again after every change; the socket closes normally once the
// battle reaches a terminal state. The socket is send-only; a client data frame closes it.
func (s *Server) BattleSocketHandler(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	logger := s.Logger.WithFields(logrus.Fields{"battle_id": rawID, "remote": r.RemoteAddr})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{battleSubprotocol},
		OriginPatterns: originPatterns(s.AllowedOrigins),
	})
	if err != nil {
		logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

	if c.Subprotocol() != battleSubprotocol {
		c.Close(BadSubprotocolError, "client must use the 'battle' subprotocol")
		return
	}

	token := middleware.TokenFromRequest(r)
	if token == "" {
		// browsers cannot set headers on a websocket handshake
		token = r.URL.Query().Get("token")
	}
	player, err := s.Auth.AuthenticateJWT(token)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}

	battleID, err := uuid.Parse(rawID)
	if err != nil {
		c.Close(InvalidBattleIDError, "invalid battle id")
		return
	}
	b, err := s.Engine.GetBattle(r.Context(), battleID)
	if err != nil {
		if battle.KindOf(err) == battle.KindNotFound {
			c.Close(InvalidBattleIDError, "battle not found")
			return
		}
		logger.WithError(err).Error("failed to load battle for socket")
		return
	}
	if _, ok := b.SlotOf(player); !ok {
		c.Close(NotParticipantError, "you are not a player in this battle")
		return
	}

	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	// CloseRead cancels ctx when the client goes away
	ctx, cancel := context.WithCancel(c.CloseRead(r.Context()))
	defer cancel()

	finished := make(chan struct{})
	var finishOnce sync.Once

	unsubscribe, err := s.Engine.Watch(ctx, battleID, func(b *models.Battle) {
		writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
		defer writeCancel()
		if err := wsjson.Write(writeCtx, c, BattleEvent{Type: "battle", Battle: b}); err != nil {
			cancel()
			return
		}
		if b.IsTerminal() {
			finishOnce.Do(func() { close(finished) })
		}
	})
	if err != nil {
		logger.WithError(err).Error("failed to watch battle")
		return
	}
	defer unsubscribe()

	select {
	case <-finished:
		c.Close(websocket.StatusNormalClosure, "battle finished")
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	case <-ctx.Done():
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, context.Cause(ctx))
	}
}

// originPatterns turns configured origins into the host patterns websocket.Accept expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}
