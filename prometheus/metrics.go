package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPrefix = "crm"

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Status code category counters
	StatusCodeCategoryCounter *prometheus.CounterVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Tenant context metrics
	TenantContextMissingCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Entity operations, labelled by entity (client, worker, service, work_order) and operation
	EntityOperationsCounter *prometheus.CounterVec

	// Work order totals as saved by the reconciler
	WorkOrderTotalHistogram prometheus.Histogram

	// Events published, labelled by event type and outcome
	EventsPublishedCounter *prometheus.CounterVec
)

func init() {
	// Unregistered until InitMetrics runs, so packages using the metrics work in tests
	build(promauto.With(nil), defaultPrefix)
}

// InitMetrics builds the metrics with the configured prefix and registers them with reg
func InitMetrics(prefix string, reg prometheus.Registerer) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	build(promauto.With(reg), prefix)
}

func build(f promauto.Factory, prefix string) {
	HttpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	StatusCodeCategoryCounter = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"category", "method", "path"},
	)

	AuthAttemptsCounter = f.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = f.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = f.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	TenantContextMissingCounter = f.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Total number of requests without tenant context",
		},
	)

	DbOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	EntityOperationsCounter = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of entity operations",
		},
		[]string{"entity", "operation"},
	)

	WorkOrderTotalHistogram = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_work_order_total_amount",
			Help:    "Total amount of saved work orders",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	EventsPublishedCounter = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_events_published_total",
			Help: "Total number of work order events published",
		},
		[]string{"type", "result"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordOperation increments the counter for an entity operation
func RecordOperation(entity, operation string) {
	EntityOperationsCounter.WithLabelValues(entity, operation).Inc()
}

// ObserveWorkOrderTotal records a saved work order total
func ObserveWorkOrderTotal(total float64) {
	WorkOrderTotalHistogram.Observe(total)
}

// RecordEventPublished counts a publish attempt
func RecordEventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublishedCounter.WithLabelValues(eventType, result).Inc()
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// MetricsMiddleware records request count, duration and status category
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		duration := time.Since(start).Seconds()
		method := c.Request().Method
		path := c.Path()
		status := c.Response().Status

		HttpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		HttpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration)
		if category := statusCategory(status); category != "" {
			StatusCodeCategoryCounter.WithLabelValues(category, method, path).Inc()
		}

		return err
	}
}

// Handler exposes the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
