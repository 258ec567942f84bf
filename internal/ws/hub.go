package ws

import (
	"encoding/json"
	"sync"
	"time"

	"nxfs_api/internal/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Open websocket connections",
	})
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_events_dropped_total",
		Help: "Events dropped because a client buffer was full",
	})
)

func init() {
	prometheus.MustRegister(wsConnections, wsDropped)
}

// Hub tracks connected clients per user and fans events out to them.
// It satisfies service.Publisher. Chat rooms joined over the socket are
// tracked here as well, guarded by the same mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	rooms   map[uuid.UUID]*Room
	chat    ChatBackend
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		rooms:   make(map[uuid.UUID]*Room),
		now:     time.Now,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	wsConnections.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	for roomID := range c.rooms {
		h.handleDisconnect(c, roomID)
	}
	close(c.Send)
	wsConnections.Dec()
}

// Count returns the number of open connections of a user.
func (h *Hub) Count(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) encode(eventType string, data any) []byte {
	msg, err := json.Marshal(Event{Type: eventType, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		logger.Error("ws event encode failed", "type", eventType, "error", err)
		return nil
	}
	return msg
}

// PublishToUser sends an event to every connection of userID. Slow clients
// whose buffer is full miss the event.
func (h *Hub) PublishToUser(userID int64, eventType string, data any) {
	msg := h.encode(eventType, data)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		h.deliver(c, msg)
	}
}

// PublishToStaff sends an event to every connection of a staff user.
func (h *Hub) PublishToStaff(eventType string, data any) {
	msg := h.encode(eventType, data)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			if c.Staff {
				h.deliver(c, msg)
			}
		}
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(eventType string, data any) {
	msg := h.encode(eventType, data)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			h.deliver(c, msg)
		}
	}
}

// deliver must be called with h.mu held; unregister closes Send under the
// write lock so the channel is never closed mid-send.
func (h *Hub) deliver(c *Client, msg []byte) {
	select {
	case c.Send <- msg:
	default:
		wsDropped.Inc()
		logger.Warn("ws client buffer full, event dropped", "user_id", c.UserID)
	}
}
