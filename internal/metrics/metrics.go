package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_request_transitions_total",
			Help: "Workflow transitions by action and resulting status",
		},
		[]string{"action", "from", "to"},
	)

	conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_request_conflicts_total",
			Help: "Workflow operations refused because the request changed underneath",
		},
		[]string{"action"},
	)

	availabilityFailOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_fail_open_total",
			Help: "Availability checks that reported available because the query failed",
		},
		[]string{"kind"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)

	databaseConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_open",
			Help: "Number of open database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(conflictsTotal)
	prometheus.MustRegister(availabilityFailOpenTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(databaseConnectionsOpen)
	prometheus.MustRegister(databaseConnectionsIdle)

	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAPIRequest(method, path string, status int, duration float64) {
	apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransition(action, from, to string) {
	transitionsTotal.WithLabelValues(action, from, to).Inc()
}

func RecordConflict(action string) {
	conflictsTotal.WithLabelValues(action).Inc()
}

func RecordAvailabilityFailOpen(kind string) {
	availabilityFailOpenTotal.WithLabelValues(kind).Inc()
}

func RecordNotification(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(sink, result).Inc()
}

// UpdateDatabaseConnections samples the pool behind db.
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	databaseConnectionsOpen.Set(float64(stats.OpenConnections))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}
