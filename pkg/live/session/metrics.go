package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the session controller. A
// nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EvaluationsTotal prometheus.Counter
	ReconnectsTotal  *prometheus.CounterVec
	ReconnectAborts  prometheus.Counter
	GreetingsTotal   prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors registered
// on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vai_live"
	}

	registry := prometheus.NewRegistry()

	evaluations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Total session lifecycle evaluations",
	})
	reconnects := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total completed reconnect sequences",
		},
		[]string{"outcome"},
	)
	aborts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnect_aborts_total",
		Help:      "Reconnect sequences aborted because a settings modal opened mid-sequence",
	})
	greetings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "greetings_total",
		Help:      "Greeting messages sent on connection establishment",
	})

	registry.MustRegister(evaluations, reconnects, aborts, greetings)

	return &Metrics{
		registry:         registry,
		EvaluationsTotal: evaluations,
		ReconnectsTotal:  reconnects,
		ReconnectAborts:  aborts,
		GreetingsTotal:   greetings,
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordEvaluation() {
	if m == nil {
		return
	}
	m.EvaluationsTotal.Inc()
}

func (m *Metrics) recordReconnect(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.ReconnectsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordReconnectAbort() {
	if m == nil {
		return
	}
	m.ReconnectAborts.Inc()
}

func (m *Metrics) recordGreeting() {
	if m == nil {
		return
	}
	m.GreetingsTotal.Inc()
}
