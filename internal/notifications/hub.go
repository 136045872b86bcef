// Package notifications delivers realtime events to connected websocket
// clients. A Hub owns the local connections for one process; Redis pub/sub
// carries events between processes, and a ConnectionManager mirrors presence.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"kinship/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// Connection ceilings. The per-user cap bounds one account opening tabs; the
// total cap bounds the process.
const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

// Hub indexes live websocket clients by user ID.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*Client]struct{}
	total    int
	shutdown chan struct{}
	done     chan struct{}
	presence *ConnectionManager
}

// NewHub builds a hub. Passing a Redis client enables cross-process presence;
// without one, presence falls back to local connection counts.
func NewHub(redisClients ...*redis.Client) *Hub {
	var rdb *redis.Client
	if len(redisClients) > 0 {
		rdb = redisClients[0]
	}

	return &Hub{
		clients:  make(map[uint]map[*Client]struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: NewConnectionManager(rdb, ConnectionManagerConfig{}),
	}
}

func (h *Hub) Name() string { return "notification hub" }

// Register attaches a new websocket connection for userID and returns its
// Client. Fails when either connection ceiling is hit.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.total >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	if len(set) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		if h.presence != nil {
			h.presence.Touch(context.Background(), uid)
		}
	}

	set[client] = struct{}{}
	h.total++
	h.mu.Unlock()

	observability.PresenceConnections.Inc()
	if h.presence != nil {
		h.presence.Register(context.Background(), userID)
	}

	return client, nil
}

// UnregisterClient detaches a client and updates presence accounting.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if set, ok := h.clients[client.UserID]; ok {
		if _, exists := set[client]; exists {
			delete(set, client)
			h.total--
			removed = true
		}
		if len(set) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.PresenceConnections.Dec()
		if h.presence != nil {
			h.presence.Unregister(context.Background(), client.UserID)
		}
	}
}

// SetPresenceCallbacks installs hooks fired on online/offline transitions.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	if h.presence != nil {
		h.presence.SetCallbacks(onOnline, onOffline)
	}
}

// Broadcast delivers message to every local connection held by userID.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.clients[userID] {
		c.TrySend(data)
	}
}

// BroadcastAll delivers message to every local connection.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, set := range h.clients {
		for c := range set {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether userID has a live connection anywhere, consulting
// shared presence when available.
func (h *Hub) IsOnline(userID uint) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), userID)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// StartWiring subscribes the hub to the notifier's Redis channels so events
// published by any process reach this process's local clients. Blocks until
// ctx is done.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		if !strings.HasPrefix(channel, userChannelPrefix) {
			log.Printf("unknown notification channel: %s", channel)
			return
		}
		var userID uint
		if _, err := fmt.Sscanf(channel, userChannelPrefix+"%d", &userID); err != nil {
			log.Printf("unknown notification channel: %s", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown closes every connection with a going-away frame and stops the
// presence manager.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	if h.presence != nil {
		h.presence.Stop()
	}

	h.mu.Lock()
	for userID, set := range h.clients {
		for client := range set {
			if client.Conn == nil {
				continue
			}
			goingAway := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
			if err := client.Conn.WriteMessage(websocket.CloseMessage, goingAway); err != nil {
				log.Printf("close frame write failed for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("websocket close failed for user %d: %v", userID, err)
			}
		}
	}
	h.clients = make(map[uint]map[*Client]struct{})
	h.mu.Unlock()

	close(h.done)
	return nil
}
