// Package metrics exposes Prometheus collectors for the HTTP layer and the
// webhook pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saleorhook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saleorhook_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "saleorhook_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saleorhook_webhook_deliveries_total",
			Help: "Webhook deliveries by registration and outcome",
		},
		[]string{"webhook", "outcome"},
	)

	webhookHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saleorhook_webhook_handler_duration_seconds",
			Help:    "Time spent in webhook handlers in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"webhook"},
	)

	jwksRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saleorhook_jwks_refreshes_total",
			Help: "JWKS refetches triggered by signature failures",
		},
		[]string{"result"},
	)
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

// RecordWebhookDelivery counts one pipeline run.
func RecordWebhookDelivery(webhook, outcome string) {
	webhookDeliveries.WithLabelValues(webhook, outcome).Inc()
}

func ObserveHandlerDuration(webhook string, d time.Duration) {
	webhookHandlerDuration.WithLabelValues(webhook).Observe(d.Seconds())
}

// RecordJWKSRefresh counts a refetch; result is "ok", "error" or "throttled".
func RecordJWKSRefresh(result string) {
	jwksRefreshes.WithLabelValues(result).Inc()
}

// DeliveryCount returns the current value of the delivery counter. Used by tests.
func DeliveryCount(webhook, outcome string) float64 {
	m := &dto.Metric{}
	if err := webhookDeliveries.WithLabelValues(webhook, outcome).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
