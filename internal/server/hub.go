package server

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/chatroom/internal/chat"
	"github.com/MarcoPoloResearchLab/chatroom/internal/metrics"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
	"go.uber.org/zap"
)

var (
	errConnectionNotFound = errors.New("connection not registered")
	errConnectionBusy     = errors.New("connection send buffer full")
)

// Hub tracks live WebSocket clients and delivers encoded events to them. Delivery
// never blocks: a client whose buffer is full loses the event and the rest proceed.
type Hub struct {
	mu      sync.RWMutex
	clients map[presence.ConnectionID]*client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[presence.ConnectionID]*client),
		logger:  logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", zap.String("connection_id", c.id.String()), zap.Int("clients", count))
}

func (h *Hub) unregister(id presence.ConnectionID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	h.logger.Debug("client unregistered", zap.String("connection_id", id.String()), zap.Int("clients", count))
}

// Broadcast delivers the event to every client registered at call time.
func (h *Hub) Broadcast(event chat.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode broadcast event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			metrics.DeliveriesDropped.Inc()
			h.logger.Warn("dropped broadcast event",
				zap.String("connection_id", c.id.String()),
				zap.String("event", event.Name))
		}
	}
}

// Send delivers the event to a single client.
func (h *Hub) Send(id presence.ConnectionID, event chat.Event) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return errConnectionNotFound
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !c.enqueue(payload) {
		metrics.DeliveriesDropped.Inc()
		return errConnectionBusy
	}
	return nil
}

// Len reports the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client connection; their handlers then run the normal
// disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.closeConn()
	}
	h.logger.Info("closed client connections", zap.Int("clients", len(targets)))
}
