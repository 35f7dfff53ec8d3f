package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time sync notification sent to every connected member of
// the affected team.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	TeamID int64  `json:"team_id"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id, teamID int64) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		TeamID: teamID,
	}
}

// Hub maintains the set of active WebSocket clients grouped by team.
type Hub struct {
	mu     sync.RWMutex
	teams  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		teams:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its team's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.teams[c.teamID]
	if !ok {
		room = make(map[*Client]struct{})
		h.teams[c.teamID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from its team's room and closes its send
// channel. Empty rooms are dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.teams[c.teamID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.teams, c.teamID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client in the message's team room.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.teams[msg.TeamID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients for a team.
func (h *Hub) ClientCount(teamID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.teams[teamID])
}
