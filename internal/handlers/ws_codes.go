// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the battle socket.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Auth token missing, invalid or expired.
	NotParticipantError   websocket.StatusCode = 3002 // The authenticated player does not play in the battle.
	InvalidBattleIDError  websocket.StatusCode = 3003 // Battle id in the URL is malformed or unknown.
)
