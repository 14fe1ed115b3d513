// Package metrics exposes Prometheus collectors for the session lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/jrsteele09/gov-console/controller"
	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gov_console"

// Session records controller transitions and exchange calls.
type Session struct {
	transitions     *prometheus.CounterVec
	exchangeCalls   *prometheus.CounterVec
	exchangeLatency *prometheus.HistogramVec
	authenticated   prometheus.Gauge
}

// NewSession creates the collectors and registers them on reg.
func NewSession(reg prometheus.Registerer) (*Session, error) {
	m := &Session{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by resulting status and cause.",
		}, []string{"status", "cause"}),
		exchangeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_calls_total",
			Help:      "Credential exchange calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Latency of credential exchange calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_authenticated",
			Help:      "1 while a session is held, 0 otherwise.",
		}),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.exchangeCalls, m.exchangeLatency, m.authenticated} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "[metrics.NewSession] register")
		}
	}
	return m, nil
}

// ObserveTransition is a controller.Subscriber.
func (m *Session) ObserveTransition(ev controller.Event) {
	m.transitions.WithLabelValues(ev.State.Status.String(), string(ev.Cause)).Inc()
	if ev.State.IsAuthenticated() {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}

// ObserveExchange is an exchange.Observer.
func (m *Session) ObserveExchange(op string, err error, elapsed time.Duration) {
	m.exchangeCalls.WithLabelValues(op, Outcome(err)).Inc()
	m.exchangeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Outcome turns an exchange error into a label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch session.KindOf(err) {
	case session.KindInvalidCredentials:
		return "invalid_credentials"
	case session.KindNetwork:
		return "network"
	case session.KindProtocolViolation:
		return "protocol_violation"
	case session.KindSessionExpired:
		return "session_expired"
	case session.KindForcedInvalidation:
		return "forced_invalidation"
	}
	return "error"
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
