package realtime

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests to websockets registered with a Hub.
type Handler struct {
	hub      *Hub
	userID   func(*http.Request) string
	upgrader websocket.Upgrader
}

// NewHandler returns a handler. userID extracts the authenticated caller
// from the request and returns "" when there is none.
func NewHandler(hub *Hub, userID func(*http.Request) string) *Handler {
	return &Handler{
		hub:    hub,
		userID: userID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user", userID, "error", err)
		return
	}

	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	if !h.hub.attach(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h.hub)

	if hello, err := Encode("connected", map[string]string{"client_id": c.ID}); err == nil {
		h.hub.Push(r.Context(), userID, hello)
	}
}
