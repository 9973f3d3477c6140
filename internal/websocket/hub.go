package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

const (
	TypeActionCompleted   = "action_completed"
	TypeCompletionDeleted = "completion_deleted"
	TypeBadgeEarned       = "badge_earned"
	TypeChallengeJoined   = "challenge_joined"
	TypeChallengeDayDone  = "challenge_day_completed"
	TypeSurveySubmitted   = "survey_submitted"
	TypePartnerLinked     = "partner_linked"
	TypePartnerUnlinked   = "partner_unlinked"
)

// Message is a live update pushed to a user's open connections.
type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message about something userID did.
func NewMessage(typ string, userID int64, data any) Message {
	return Message{Type: typ, UserID: userID, Data: data}
}

// Hub tracks open connections per user.
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

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// BroadcastTo sends msg to every connection belonging to the given users.
// Slow clients whose buffer is full miss the message.
func (h *Hub) BroadcastTo(userIDs []int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for c := range h.clients[id] {
			select {
			case c.send <- data:
			default:
				h.logger.Warn("dropping message for slow client", "user_id", id, "type", msg.Type)
			}
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
