package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a real-time activity notification pushed to GP dashboards:
// document uploads, capital-call status changes, investor sign-ins.
type Event struct {
	Type   string         `json:"type"`
	OrgID  int64          `json:"org_id"`
	Actor  string         `json:"actor,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Hub maintains the set of active dashboard connections, grouped by
// organization, and fans events out to the right tenant only.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to its organization's group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	group, ok := h.clients[c.orgID]
	if !ok {
		group = make(map[*Client]struct{})
		h.clients[c.orgID] = group
	}
	group[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if group, ok := h.clients[c.orgID]; ok {
		if _, present := group[c]; present {
			delete(group, c)
			close(c.send)
		}
		if len(group) == 0 {
			delete(h.clients, c.orgID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client watching the event's org.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[ev.OrgID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop rather than block the broadcaster
		}
	}
}

// ClientCount returns the number of connected clients for an org.
func (h *Hub) ClientCount(orgID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[orgID])
}
