// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// story runs.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"agentic-storywriter/provider"
)

const namespace = "storywriter"

// Run outcomes recorded by ObserveRun.
const (
	RunCompleted = "completed"
	RunDegraded  = "degraded"
	RunFailed    = "failed"
)

// Metrics holds the collectors for one process. Each instance owns its own
// registry, so several can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	revisions    prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "calls_total",
				Help:      "Total number of provider calls made by agents",
			},
			[]string{"agent", "provider", "outcome"},
		),
		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "call_duration_seconds",
				Help:      "Provider call duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent", "provider"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "story",
				Name:      "runs_total",
				Help:      "Total number of story runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "story",
				Name:      "run_duration_seconds",
				Help:      "Story run duration in seconds",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
			},
		),
		revisions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "story",
				Name:      "revisions_total",
				Help:      "Total number of completed revision iterations",
			},
		),
	}
}

// ObserveCall records one provider call. It satisfies agent.Observer.
func (m *Metrics) ObserveCall(agentName string, _ provider.Request, c provider.Completion) {
	outcome := "ok"
	if c.Failed() {
		outcome = "error"
	}
	m.calls.WithLabelValues(agentName, c.Provider, outcome).Inc()
	m.callDuration.WithLabelValues(agentName, c.Provider).Observe(c.Duration.Seconds())
}

// ObserveRevision counts one finished critique/revise iteration.
func (m *Metrics) ObserveRevision() {
	m.revisions.Inc()
}

// ObserveRun records the outcome and duration of a story run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
