package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Entities that change on a family channel.
const (
	EntityMessage       = "message"
	EntityShoppingItem  = "shopping_item"
	EntityTask          = "task"
	EntityFamily        = "family"
	EntityCalendarEvent = "calendar_event"
	EntityBill          = "bill"
	EntityRoutine       = "routine"
)

// Actions carried by an Event.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is a change notification pushed to every client watching a family.
// Record holds the full row after the change; it is omitted for deletes.
type Event struct {
	Type     string `json:"type"`
	Entity   string `json:"entity"`
	Action   string `json:"action"`
	FamilyID string `json:"family_id"`
	ID       int64  `json:"id"`
	Record   any    `json:"record,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(familyID, entity, action string, id int64, record any) Event {
	return Event{
		Type:     fmt.Sprintf("%s_%s", entity, action),
		Entity:   entity,
		Action:   action,
		FamilyID: familyID,
		ID:       id,
		Record:   record,
	}
}

// Hub tracks connected clients per family and fans events out to them.
type Hub struct {
	mu       sync.RWMutex
	families map[string]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		families: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client to its family's channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.families[c.familyID]
	if !ok {
		set = make(map[*Client]struct{})
		h.families[c.familyID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.families[c.familyID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.families, c.familyID)
	}
}

// Broadcast sends ev to every client of ev.FamilyID. A client whose buffer
// is full is dropped: its connection closes once the buffer drains, so the
// subscriber reconnects and re-reads instead of silently missing ev.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.families[ev.FamilyID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		h.logger.Warn("client buffer full, dropping client", "family_id", ev.FamilyID, "user_id", c.userID, "type", ev.Type)
		h.removeLocked(c)
	}
	h.mu.Unlock()
}

// Disconnect drops every connection userID holds on familyID's channel.
func (h *Hub) Disconnect(familyID string, userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.families[familyID] {
		if c.userID == userID {
			h.removeLocked(c)
			n++
		}
	}
	return n
}

// ClientCount returns the number of connected clients across all families.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.families {
		n += len(set)
	}
	return n
}

// FamilyClientCount returns the number of clients watching familyID.
func (h *Hub) FamilyClientCount(familyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.families[familyID])
}
