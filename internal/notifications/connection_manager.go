package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey    = "presence:online"
	presenceLastSeenPrefix  = "presence:last_seen:"
	presenceLastSeenTTL     = 90 * time.Second
	presenceOfflineGrace    = 5 * time.Second
	presenceReaperFrequency = 60 * time.Second
)

// ConnectionManagerConfig overrides presence defaults. Zero values keep the
// package defaults.
type ConnectionManagerConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
	OnUserOnline       func(userID uint)
	OnUserOffline      func(userID uint)
}

// ConnectionManager tracks which users hold live websocket connections. Local
// connection counts are authoritative for this process; Redis mirrors
// presence so other processes can answer IsOnline. A short grace period
// swallows reconnect flaps before a user is announced offline.
type ConnectionManager struct {
	rdb *redis.Client

	mu             sync.RWMutex
	conns          map[uint]int
	pendingOffline map[uint]*time.Timer
	wentOffline    map[uint]bool

	onlineSetKey   string
	lastSeenPrefix string
	lastSeenTTL    time.Duration
	offlineGrace   time.Duration
	reaperEvery    time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	done     chan struct{}
}

// NewConnectionManager builds a manager. With a Redis client it also starts a
// background reaper that evicts entries whose last-seen key has expired,
// which catches processes that died without unregistering their users.
func NewConnectionManager(rdb *redis.Client, cfg ConnectionManagerConfig) *ConnectionManager {
	cm := &ConnectionManager{
		rdb:            rdb,
		conns:          make(map[uint]int),
		pendingOffline: make(map[uint]*time.Timer),
		wentOffline:    make(map[uint]bool),
		onlineSetKey:   presenceOnlineSetKey,
		lastSeenPrefix: presenceLastSeenPrefix,
		lastSeenTTL:    presenceLastSeenTTL,
		offlineGrace:   presenceOfflineGrace,
		reaperEvery:    presenceReaperFrequency,
		onOnline:       cfg.OnUserOnline,
		onOffline:      cfg.OnUserOffline,
		done:           make(chan struct{}),
	}

	if cfg.OnlineSetKey != "" {
		cm.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		cm.lastSeenPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		cm.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		cm.offlineGrace = cfg.OfflineGracePeriod
	}
	if cfg.ReaperInterval > 0 {
		cm.reaperEvery = cfg.ReaperInterval
	}

	if cm.rdb != nil {
		go cm.runReaper()
	}

	return cm
}

// SetCallbacks replaces the online/offline transition hooks.
func (cm *ConnectionManager) SetCallbacks(onOnline, onOffline func(userID uint)) {
	cm.mu.Lock()
	cm.onOnline = onOnline
	cm.onOffline = onOffline
	cm.mu.Unlock()
}

// SetOfflineGracePeriod shortens or lengthens the reconnect grace window.
func (cm *ConnectionManager) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	cm.mu.Lock()
	cm.offlineGrace = d
	cm.mu.Unlock()
}

// Stop halts the reaper and cancels pending offline announcements.
func (cm *ConnectionManager) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.done)
		cm.mu.Lock()
		for userID, timer := range cm.pendingOffline {
			timer.Stop()
			delete(cm.pendingOffline, userID)
		}
		cm.mu.Unlock()
	})
}

// Register records a new connection for userID. The first connection of a
// previously offline user fires the online callback.
func (cm *ConnectionManager) Register(ctx context.Context, userID uint) {
	wasOnline := cm.IsOnline(ctx, userID)

	cm.mu.Lock()
	if t, ok := cm.pendingOffline[userID]; ok {
		t.Stop()
		delete(cm.pendingOffline, userID)
	}
	cm.conns[userID]++
	cm.wentOffline[userID] = false
	cm.mu.Unlock()

	cm.Touch(ctx, userID)
	if !wasOnline {
		cm.announceOnline(userID)
	}
}

// Touch refreshes the user's Redis presence. Called on register and on every
// inbound ping so the last-seen key outlives idle but healthy connections.
func (cm *ConnectionManager) Touch(ctx context.Context, userID uint) {
	if cm.rdb == nil {
		return
	}
	member := strconv.FormatUint(uint64(userID), 10)
	if err := cm.rdb.SAdd(ctx, cm.onlineSetKey, member).Err(); err != nil {
		log.Printf("presence: SADD failed for user %d: %v", userID, err)
	}
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := cm.rdb.SetEx(ctx, cm.lastSeenKey(userID), stamp, cm.lastSeenTTL).Err(); err != nil {
		log.Printf("presence: SETEX failed for user %d: %v", userID, err)
	}
}

// Unregister drops one connection. When the last one goes, the offline
// announcement is deferred by the grace period so a quick reconnect cancels
// it.
func (cm *ConnectionManager) Unregister(ctx context.Context, userID uint) {
	cm.mu.Lock()
	if n := cm.conns[userID]; n > 1 {
		cm.conns[userID] = n - 1
		cm.mu.Unlock()
		return
	}
	delete(cm.conns, userID)

	if t, ok := cm.pendingOffline[userID]; ok {
		t.Stop()
	}
	cm.pendingOffline[userID] = time.AfterFunc(cm.offlineGrace, func() {
		cm.confirmOffline(context.Background(), userID)
	})
	cm.mu.Unlock()
}

// IsOnline reports presence, preferring local knowledge and falling back to
// the Redis last-seen key for users connected to other processes.
func (cm *ConnectionManager) IsOnline(ctx context.Context, userID uint) bool {
	cm.mu.RLock()
	local := cm.conns[userID] > 0
	cm.mu.RUnlock()
	if local {
		return true
	}

	if cm.rdb == nil {
		return false
	}
	exists, err := cm.rdb.Exists(ctx, cm.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// reapOnce sweeps the online set, removing members whose last-seen key has
// expired and announcing them offline if this process holds no connection.
func (cm *ConnectionManager) reapOnce(ctx context.Context) {
	if cm.rdb == nil {
		return
	}

	members, err := cm.rdb.SMembers(ctx, cm.onlineSetKey).Result()
	if err != nil {
		return
	}

	for _, raw := range members {
		id64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		userID := uint(id64)

		exists, err := cm.rdb.Exists(ctx, cm.lastSeenKey(userID)).Result()
		if err != nil || exists > 0 {
			continue
		}
		_ = cm.rdb.SRem(ctx, cm.onlineSetKey, raw).Err()

		cm.mu.RLock()
		local := cm.conns[userID] > 0
		cm.mu.RUnlock()
		if !local {
			cm.announceOffline(userID)
		}
	}
}

func (cm *ConnectionManager) runReaper() {
	ticker := time.NewTicker(cm.reaperEvery)
	defer ticker.Stop()
	for {
		select {
		case <-cm.done:
			return
		case <-ticker.C:
			cm.reapOnce(context.Background())
		}
	}
}

func (cm *ConnectionManager) confirmOffline(ctx context.Context, userID uint) {
	cm.mu.Lock()
	delete(cm.pendingOffline, userID)
	reconnected := cm.conns[userID] > 0
	cm.mu.Unlock()
	if reconnected {
		return
	}

	if cm.rdb != nil {
		// A fresh last-seen key means another process still has the user.
		exists, err := cm.rdb.Exists(ctx, cm.lastSeenKey(userID)).Result()
		if err == nil && exists > 0 {
			return
		}
		_ = cm.rdb.SRem(ctx, cm.onlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}

	cm.announceOffline(userID)
}

func (cm *ConnectionManager) announceOnline(userID uint) {
	cm.mu.Lock()
	cm.wentOffline[userID] = false
	cb := cm.onOnline
	cm.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (cm *ConnectionManager) announceOffline(userID uint) {
	cm.mu.Lock()
	if cm.wentOffline[userID] {
		cm.mu.Unlock()
		return
	}
	cm.wentOffline[userID] = true
	cb := cm.onOffline
	cm.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (cm *ConnectionManager) lastSeenKey(userID uint) string {
	return cm.lastSeenPrefix + strconv.FormatUint(uint64(userID), 10)
}
