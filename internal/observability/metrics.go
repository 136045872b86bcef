package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kinship_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AccountDeletionSteps counts completed account-deletion cascade steps.
	AccountDeletionSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_account_deletion_steps_total",
		Help: "Total completed account deletion cascade steps by step name",
	}, []string{"step"})

	// AccountDeletionFailures counts cascade runs that stopped mid-way.
	AccountDeletionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_account_deletion_failures_total",
		Help: "Total account deletion cascades that failed, by failing step",
	}, []string{"step"})

	// AssetDestroyFailures counts media destroy calls that failed after the
	// owning record was already committed. Each one is a leaked asset until
	// an operator reconciles the store.
	AssetDestroyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kinship_asset_destroy_failures_total",
		Help: "Total failed asset destroy calls (leaked assets)",
	})

	// PresenceConnections is the gauge of active presence WebSocket connections.
	PresenceConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kinship_presence_connections",
		Help: "Number of active presence WebSocket connections",
	})

	// NotificationDrops counts realtime messages dropped before delivery.
	NotificationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_notification_drops_total",
		Help: "Total realtime messages dropped before delivery, by reason",
	}, []string{"reason"})

	// NotificationEventsTotal counts realtime events published by type.
	NotificationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_notification_events_total",
		Help: "Total realtime notification events by type",
	}, []string{"event_type"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
