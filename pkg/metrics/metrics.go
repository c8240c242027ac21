package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

const namespace = "fitmeter"

// Metrics holds the service collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	gateDecisions      *prometheus.CounterVec
	usageDegraded      *prometheus.CounterVec
	subscriptionLookup prometheus.Counter
	httpDuration       *prometheus.HistogramVec
}

// New registers the collectors with reg. Passing nil returns nil, which disables metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Gate verdicts by action and outcome.",
		}, []string{"action", "outcome"}),
		usageDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "degraded_total",
			Help:      "Usage store calls that failed and were degraded.",
		}, []string{"op"}),
		subscriptionLookup: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "lookup_failures_total",
			Help:      "Subscription lookups that failed and fell back to the free tier.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.gateDecisions, m.usageDegraded, m.subscriptionLookup, m.httpDuration)
	return m
}

// Decided implements gate.Observer.
func (m *Metrics) Decided(action usage.Action, outcome gate.Outcome) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(normalizeLabel(string(action)), outcome.String()).Inc()
}

// Degraded implements usage.Observer.
func (m *Metrics) Degraded(op string, _ usage.Action) {
	if m == nil {
		return
	}
	m.usageDegraded.WithLabelValues(normalizeLabel(op)).Inc()
}

// SubscriptionLookupFailed implements entitlement.Observer.
func (m *Metrics) SubscriptionLookupFailed() {
	if m == nil {
		return
	}
	m.subscriptionLookup.Inc()
}

// ObserveHTTP records one served request. route should be the route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
