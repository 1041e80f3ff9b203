// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Alert is the push payload for security notifications.
type Alert struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	At       time.Time              `json:"at"`
}

// Hub fans security alerts out to a user's connected clients. It is
// push-only: clients never send application messages, so a dropped or slow
// connection simply misses alerts and the persisted notification row remains
// the durable copy.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, processing connection churn.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// Push delivers an alert to every live connection of the user. Best-effort:
// a full send buffer drops the alert for that connection.
func (h *Hub) Push(userID int64, alert *Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		h.logger.Error("failed to marshal alert", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping alert for slow client", zap.Int64("user_id", userID))
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]bool)
	}
	h.clients[c.userID][c] = true
	h.logger.Info("websocket client connected", zap.Int64("user_id", c.userID), zap.String("session_id", c.sessionID))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.userID]; ok {
		if conns[c] {
			delete(conns, c)
			close(c.send)
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// shutdown closes every client and releases anyone still trying to hand a
// connection back; after done closes, register and unregister no longer
// block.
func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for c := range conns {
			close(c.send)
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
