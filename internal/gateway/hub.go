package gateway

import (
	"log/slog"
	"sync"
)

// Hub is the connection registry and the poker package's Broadcaster. It
// maps sessions to their live connections and fans server events out to
// them. Sends happen against a snapshot taken under the lock, so a
// mid-broadcast join or leave never corrupts the fan-out.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]Conn
	conns map[string]Conn
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "hub"),
		rooms:  make(map[string]map[string]Conn),
		conns:  make(map[string]Conn),
	}
}

// Register binds a connection to a session room.
func (h *Hub) Register(sessionID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[sessionID] = room
	}
	room[c.ID()] = c
	h.conns[c.ID()] = c
}

// Unregister drops a connection. Empty rooms are removed.
func (h *Hub) Unregister(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	delete(h.conns, connID)
}

// Broadcast sends an event to every connection in a session.
func (h *Hub) Broadcast(sessionID, event string, payload any) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[sessionID]))
	for _, c := range h.rooms[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	msg := &ServerMessage{Event: event, Data: payload}
	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			h.logger.Warn("broadcast send failed", "conn_id", c.ID(), "event", event, "error", err)
		}
	}
}

// SendTo sends an event to one connection, wherever it is registered.
func (h *Hub) SendTo(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.Send(&ServerMessage{Event: event, Data: payload}); err != nil {
		h.logger.Warn("send failed", "conn_id", connID, "event", event, "error", err)
	}
}

// ConnCount reports live connections, for health and metrics surfaces.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
