// Package metrics provides Prometheus metrics for the project assistant.
// There is no listener; the registry is written to a textfile on exit for a
// node exporter style collector to pick up.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	GatewayCallsTotal *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec
	GatewayRetries    *prometheus.CounterVec
	ActionsByStatus   *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_turns_total",
				Help: "Total turns by phase and outcome.",
			},
			[]string{"phase", "outcome"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_phase_transitions_total",
				Help: "Total phase transitions by source and target phase.",
			},
			[]string{"from", "to"},
		),
		GatewayCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_gateway_calls_total",
				Help: "Total gateway operations by op and result.",
			},
			[]string{"op", "result"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_gateway_duration_seconds",
				Help:    "Gateway operation duration including retries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		GatewayRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_gateway_retries_total",
				Help: "Total gateway retry attempts by op.",
			},
			[]string{"op"},
		),
		ActionsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assistant_actions",
				Help: "Number of action items by status for the active project.",
			},
			[]string{"status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.TurnsTotal)
	reg.MustRegister(m.TransitionsTotal)
	reg.MustRegister(m.GatewayCallsTotal)
	reg.MustRegister(m.GatewayDuration)
	reg.MustRegister(m.GatewayRetries)
	reg.MustRegister(m.ActionsByStatus)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordTurn increments the turn counter.
func (m *Metrics) RecordTurn(phase, outcome string) {
	m.TurnsTotal.WithLabelValues(phase, outcome).Inc()
}

// RecordTransition increments the transition counter.
func (m *Metrics) RecordTransition(from, to string) {
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// SetActionCounts replaces the per-status action gauges.
func (m *Metrics) SetActionCounts(counts map[string]int) {
	for status, n := range counts {
		m.ActionsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// ObserveGatewayCall records one gateway operation.
func (m *Metrics) ObserveGatewayCall(op string, attempts int, elapsed time.Duration, err error) {
	m.GatewayCallsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	m.GatewayDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if attempts > 1 {
		m.GatewayRetries.WithLabelValues(op).Add(float64(attempts - 1))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, perrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, perrors.ErrMalformedResponse):
		return "malformed"
	case perrors.IsRetryable(err):
		return "transient"
	}
	return "error"
}
