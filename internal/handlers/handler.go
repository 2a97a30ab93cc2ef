package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/studyhive/studyhive/internal/auth"
	"github.com/studyhive/studyhive/internal/chat"
	"github.com/studyhive/studyhive/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.Store
	cache    *store.RedisCache
	chat     *chat.Service
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. The origin
// list gates WebSocket upgrades; "*" allows any browser origin.
func NewHandler(st store.Store, cache *store.RedisCache, chatSvc *chat.Service, verifier *auth.Verifier, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    st,
		cache:    cache,
		chat:     chatSvc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger,
	}
}

// checkOrigin allows non-browser clients (no Origin header) and any origin on
// the allowlist. The CORS middleware cannot do this job for WebSockets: the
// handshake is a plain GET with no preflight, so the gate has to live in the
// upgrader itself.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
