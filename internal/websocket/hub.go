package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to a user's open connections.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message whose Type is "<entity>_<action>".
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub routes messages to the connections of each signed-in user.
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
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister forgets c. It is a no-op if the hub already dropped it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c, false)
}

// detach must be called with mu held.
func (h *Hub) detach(c *Client, revoked bool) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	c.revoked = revoked
	close(c.send)
	return true
}

// Publish sends msg to every connection opened by username.
func (h *Hub) Publish(username string, msg Message) {
	h.fanout(msg, func(c *Client) bool { return c.username == username })
}

// Broadcast sends msg to every connection.
func (h *Hub) Broadcast(msg Message) {
	h.fanout(msg, func(*Client) bool { return true })
}

// Disconnect ends every stream opened by username and reports how many
// were closed.
func (h *Hub) Disconnect(username string) int {
	return h.revoke(func(c *Client) bool { return c.username == username })
}

// DisconnectSession ends the streams opened with token.
func (h *Hub) DisconnectSession(token string) int {
	return h.revoke(func(c *Client) bool { return c.token == token })
}

func (h *Hub) revoke(match func(*Client) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var n int
	for c := range h.clients {
		if match(c) && h.detach(c, true) {
			n++
		}
	}
	return n
}

func (h *Hub) fanout(msg Message, match func(*Client) bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode event", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("event dropped, client buffer full", "username", c.username, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of open streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
