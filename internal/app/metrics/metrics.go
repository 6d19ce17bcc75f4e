// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created.",
		},
	)

	ordersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "orders",
			Name:      "completed_total",
			Help:      "Total number of orders checked out.",
		},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pos",
			Subsystem: "ws",
			Name:      "connected_clients",
			Help:      "Currently connected push-channel subscribers.",
		},
	)

	wsBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "ws",
			Name:      "broadcasts_total",
			Help:      "Events broadcast on the push channel.",
		},
		[]string{"type"},
	)

	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "ws",
			Name:      "dropped_clients_total",
			Help:      "Subscribers dropped because their send queue was full.",
		},
	)
)

func init() {
	Registry.MustRegister(httpRequests, httpDuration, ordersCreated, ordersCompleted,
		wsClients, wsBroadcasts, wsDropped)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one handled request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncOrderCreated counts a created order.
func IncOrderCreated() { ordersCreated.Inc() }

// IncOrderCompleted counts a checked-out order.
func IncOrderCompleted() { ordersCompleted.Inc() }

// SetConnectedClients records the current subscriber count.
func SetConnectedClients(n int) { wsClients.Set(float64(n)) }

// IncBroadcast counts one broadcast event by type.
func IncBroadcast(eventType string) { wsBroadcasts.WithLabelValues(eventType).Inc() }

// IncDroppedClient counts a subscriber dropped for falling behind.
func IncDroppedClient() { wsDropped.Inc() }
