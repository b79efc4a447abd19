package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"suntheme/internal/history"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// Local tools (editor plugins, status bars) connect from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventTypeMode is the event type for an applied mode change
const EventTypeMode = "mode"

// Event is the envelope written to websocket clients
type Event struct {
	Type string        `json:"type"`
	Data history.Entry `json:"data"`
}

// Hub broadcasts mode changes to connected websocket clients. Publishing
// the mode that was last broadcast is a no-op, so the scheduler and the
// state file watcher can both publish the same change.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    *history.Entry
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger.Named("hub"),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Publish sends e to every client when its mode differs from the last event
func (h *Hub) Publish(e history.Entry) {
	data, err := json.Marshal(Event{Type: EventTypeMode, Data: e})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	// Writes happen under the lock: a gorilla conn allows one writer at a time.
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil && h.last.Mode == e.Mode {
		return
	}
	h.last = &e

	sent := 0
	for conn := range h.clients {
		if err := h.write(conn, data); err != nil {
			h.logger.Debug("Failed to send event", zap.Error(err))
			// The read loop cleans up the connection.
			continue
		}
		sent++
	}

	h.logger.Info("Broadcast mode change",
		zap.Stringer("mode", e.Mode),
		zap.String("source", string(e.Source)),
		zap.Int("clients", sent))
}

// Last returns the most recently broadcast event
func (h *Hub) Last() (history.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return history.Entry{}, false
	}
	return *h.last, true
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the client. A newly
// connected client immediately receives the last event, if any.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if h.last != nil {
		if data, err := json.Marshal(Event{Type: EventTypeMode, Data: *h.last}); err == nil {
			if err := h.write(conn, data); err != nil {
				h.logger.Debug("Failed to send initial event", zap.Error(err))
			}
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("Client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("clients", count))

	go h.readLoop(conn)
}

// readLoop discards client messages and unregisters the client on error.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug("Client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
