package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/abtests"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains creator_id -> set of connections and broadcasts test events
// to every dashboard session on that team. Uses Redis pub/sub for horizontal
// scaling: events are published to Redis and the subscriber callback performs
// the local broadcast, so each event is delivered exactly once per client.
type Hub struct {
	// team owner creatorID -> map[clientID]*Client
	teams  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel Redis subscription per team
	mu     sync.RWMutex
	logger *zap.Logger
	pub    RedisPublisher
	sub    RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishTeamEvent(creatorID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to team channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeTeam(creatorID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub RedisPublisher, sub RedisSubscriber) *Hub {
	return &Hub{
		teams:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its team room. Starts the Redis subscription for
// the team when the first client connects.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.teams[c.CreatorID] == nil {
		h.teams[c.CreatorID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeTeam(c.CreatorID, func(event string, payload []byte) {
				h.BroadcastToTeam(c.CreatorID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.CreatorID] = cancel
			}
		}
	}
	h.teams[c.CreatorID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", zap.String("client_id", c.ID), zap.String("creator_id", c.CreatorID.String()))
}

// Unregister removes a client from its team room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.teams[c.CreatorID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.teams, c.CreatorID)
			if cancel, ok := h.subs[c.CreatorID]; ok {
				cancel()
				delete(h.subs, c.CreatorID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard client disconnected", zap.String("client_id", c.ID), zap.String("creator_id", c.CreatorID.String()))
}

// BroadcastToTeam sends a message to all clients on a team (local only).
func (h *Hub) BroadcastToTeam(creatorID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// The read lock stays held while ranging: Register and Unregister
	// mutate the same inner map. Sends never block, so the lock is cheap.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.teams[creatorID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToTeam publishes to Redis only; the subscriber callback broadcasts
// once for all instances, including this one, avoiding duplicate delivery to
// local clients. Falls back to a local broadcast when Redis is not wired.
func (h *Hub) PublishToTeam(creatorID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishTeamEvent(creatorID, event, data); err == nil {
			return
		}
	}
	h.BroadcastToTeam(creatorID, event, json.RawMessage(data))
}

// PublishTestEvent delivers an A/B test event to every dashboard on the
// test's team. Implements abtests.EventPublisher.
func (h *Hub) PublishTestEvent(_ context.Context, creatorID uuid.UUID, event abtests.TestEvent) {
	h.PublishToTeam(creatorID, event.Type, event)
}

// SessionCount returns the number of connected clients for a team.
func (h *Hub) SessionCount(creatorID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.teams[creatorID])
}
