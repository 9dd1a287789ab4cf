// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the Prometheus instruments exposed by an agentmail server.
type Collector struct {
	// HTTP transport
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Tool dispatcher
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	// Mail / acknowledgement / reservation / contact domain events
	mailDeliveriesTotal    *prometheus.CounterVec
	ackOverdueTotal        *prometheus.CounterVec
	reservationEventsTotal *prometheus.CounterVec
	contactEventsTotal     *prometheus.CounterVec

	// Event bus
	eventBusPublishedTotal *prometheus.CounterVec
	eventBusDroppedTotal   *prometheus.CounterVec

	// Database
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector registers all instruments under namespace and returns the
// collector used by the transport and engine layers to record activity.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tools/call invocations handled by the dispatcher",
		},
		[]string{"tool", "status"}, // status: ok, error
	)

	c.toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call handler duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"tool"},
	)

	c.mailDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_deliveries_total",
			Help:      "Total number of deliveries by terminal state transition",
		},
		[]string{"state"}, // delivered, read, acknowledged
	)

	c.ackOverdueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ack_overdue_total",
			Help:      "Total number of deliveries the acknowledgement sweep found overdue",
		},
		[]string{"project"},
	)

	c.reservationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_events_total",
			Help:      "Total number of file reservation lifecycle events",
		},
		[]string{"action"}, // granted, released, expired, conflict
	)

	c.contactEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_events_total",
			Help:      "Total number of contact graph events",
		},
		[]string{"action"}, // requested, approved, declined
	)

	c.eventBusPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_published_total",
			Help:      "Total number of events published to the in-process bus, by topic",
		},
		[]string{"topic"},
	)

	c.eventBusDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_dropped_total",
			Help:      "Total number of events dropped because a subscriber's buffer was full",
		},
		[]string{"topic"},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one completed HTTP request/response cycle.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordToolCall records one tools/call dispatch, successful or not.
func (c *Collector) RecordToolCall(tool string, isError bool, duration time.Duration) {
	status := "ok"
	if isError {
		status = "error"
	}
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordMailDelivery records a delivery reaching delivered, read, or acknowledged.
func (c *Collector) RecordMailDelivery(state string) {
	c.mailDeliveriesTotal.WithLabelValues(state).Inc()
}

// RecordAckOverdue records the acknowledgement sweep marking deliveries overdue for a project.
func (c *Collector) RecordAckOverdue(project string, count int) {
	if count <= 0 {
		return
	}
	c.ackOverdueTotal.WithLabelValues(project).Add(float64(count))
}

// RecordReservationEvent records a file reservation granted, released, expired, or refused for conflict.
func (c *Collector) RecordReservationEvent(action string) {
	c.reservationEventsTotal.WithLabelValues(action).Inc()
}

// RecordContactEvent records a contact graph request, approval, or decline.
func (c *Collector) RecordContactEvent(action string) {
	c.contactEventsTotal.WithLabelValues(action).Inc()
}

// RecordEventPublished records a successful publish to the in-process event bus.
func (c *Collector) RecordEventPublished(topic string) {
	c.eventBusPublishedTotal.WithLabelValues(topic).Inc()
}

// RecordEventDropped records an event dropped because a subscriber's channel was full.
func (c *Collector) RecordEventDropped(topic string) {
	c.eventBusDroppedTotal.WithLabelValues(topic).Inc()
}

// RecordDBConnections records the current open/idle connection counts for database.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery records the duration of one database operation.
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// statusCode buckets an HTTP status into its class, e.g. 404 -> "4xx".
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
