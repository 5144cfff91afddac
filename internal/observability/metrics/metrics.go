package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides application and HTTP metrics.
var Module = fx.Provide(New, NewHTTPMetrics)

// Metrics carries the settlement pipeline counters.
type Metrics struct {
	WebhookEvents      *prometheus.CounterVec
	LedgerApplications *prometheus.CounterVec
	Fulfillments       *prometheus.CounterVec
	CheckoutSessions   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftpact",
			Name:      "webhook_events_total",
			Help:      "Inbound payment webhook events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		LedgerApplications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftpact",
			Name:      "ledger_applications_total",
			Help:      "Ledger batch applications by outcome.",
		}, []string{"outcome"}),
		Fulfillments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftpact",
			Name:      "fulfillments_total",
			Help:      "Gift card fulfillment attempts by outcome.",
		}, []string{"outcome"}),
		CheckoutSessions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "giftpact",
			Name:      "checkout_sessions_total",
			Help:      "Checkout sessions opened with the payment provider.",
		}),
	}
}

func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordLedgerApplication(outcome string) {
	if m == nil {
		return
	}
	m.LedgerApplications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordFulfillment(outcome string) {
	if m == nil {
		return
	}
	m.Fulfillments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCheckoutSession() {
	if m == nil {
		return
	}
	m.CheckoutSessions.Inc()
}

// HTTPMetrics measures inbound request latency.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "giftpact",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// GinMiddleware records request duration per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.duration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
