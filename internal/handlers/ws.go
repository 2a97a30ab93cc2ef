package handlers

import (
	"net/http"

	"github.com/studyhive/studyhive/internal/chat"
)

// ServeWS authenticates the connection and hands it to the chat service.
// The token travels as a query parameter because browsers cannot set headers
// on WebSocket upgrades.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.Error(w, http.StatusUnauthorized, "token required")
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := chat.NewClient(conn, h.chat, identity.UserID, identity.DisplayName, h.logger)
	if err := client.Run(); err != nil {
		h.logger.Error().Err(err).Msg("client session failed")
		conn.Close()
	}
}
