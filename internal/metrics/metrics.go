package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sahara"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	MatchRequests *prometheus.CounterVec
	MatchDuration *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	AIErrors      *prometheus.CounterVec
	SessionWrites *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MatchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "match_requests_total",
				Help:      "Total number of match requests by outcome and strategy",
			},
			[]string{"outcome", "strategy"},
		),
		MatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_duration_seconds",
				Help:      "Duration of match processing in seconds",
				Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"strategy"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by result",
			},
			[]string{"result"},
		),
		AIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_errors_total",
				Help:      "AI matcher failures recovered by keyword fallback",
			},
			[]string{"code"},
		),
		SessionWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_writes_total",
				Help:      "Session recorder writes by result",
			},
			[]string{"result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
			},
			[]string{"route", "method"},
		),
	}
}

func (m *Metrics) ObserveMatch(outcome, strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.MatchRequests.WithLabelValues(outcome, strategy).Inc()
	if strategy != "" {
		m.MatchDuration.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AIError(code string) {
	if m == nil {
		return
	}
	m.AIErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) SessionWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SessionWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
