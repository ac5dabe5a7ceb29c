package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/suitecal/internal/model"
)

// Change feed entities and actions.
const (
	EntitySchedule   = "schedule"
	EntityOccurrence = "occurrence"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionDue     = "due"
)

// Message is one change notification pushed to every open grid.
type Message struct {
	Type        string             `json:"type"`
	Entity      string             `json:"entity"`
	Action      string             `json:"action"`
	ID          string             `json:"id,omitempty"`
	GroupID     string             `json:"group_id,omitempty"`
	Occurrences []model.Occurrence `json:"occurrences,omitempty"`
}

// NewMessage builds a Message whose Type is entity_action.
func NewMessage(entity, action string, occs ...model.Occurrence) Message {
	msg := Message{
		Type:        entity + "_" + action,
		Entity:      entity,
		Action:      action,
		Occurrences: occs,
	}
	if len(occs) == 1 {
		msg.ID = occs[0].ID
	}
	if len(occs) > 0 && occs[0].GroupID != nil {
		msg.GroupID = *occs[0].GroupID
	}
	return msg
}

// ScheduleCreated announces a new group of occurrences.
func ScheduleCreated(groupID string, occs []model.Occurrence) Message {
	msg := NewMessage(EntitySchedule, ActionCreated, occs...)
	msg.ID = ""
	msg.GroupID = groupID
	return msg
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", h.ClientCount())
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every client and reports how many received it.
// Clients with a full buffer miss the message.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
		}
	}
	if dropped := len(h.clients) - sent; dropped > 0 {
		h.logger.Warn("broadcast dropped", "type", msg.Type, "dropped", dropped)
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
