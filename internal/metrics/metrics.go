// Package metrics provides the Prometheus implementation of the engine's
// Metrics interface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foreman"

// Prometheus implements engine.Metrics backed by a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
	dispatched   *prometheus.CounterVec
	completed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	conflicts    prometheus.Counter
	circuitOpens *prometheus.CounterVec
	currentPhase prometheus.Gauge
	overall      prometheus.Gauge
}

// New creates a Prometheus metrics sink with its own registry.
func New() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control-loop ticks started.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Control-loop tick wall time.",
			Buckets:   prometheus.DefBuckets,
		}),
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dispatched_total",
			Help:      "Tasks handed to agents.",
		}, []string{"role"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks that completed.",
		}, []string{"role"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Tasks that failed.",
		}, []string{"role"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time including retries.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		}, []string{"role"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Results carrying a conflict marker.",
		}),
		circuitOpens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_opens_total",
			Help:      "Circuit-break decisions per key.",
		}, []string{"key"}),
		currentPhase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_phase",
			Help:      "Current phase number.",
		}),
		overall: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_progress",
			Help:      "Overall workflow progress in [0,1].",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// TickStarted increments the tick counter.
func (p *Prometheus) TickStarted() {
	p.ticksTotal.Inc()
}

// TickCompleted observes the tick duration.
func (p *Prometheus) TickCompleted(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}

// TaskDispatched counts a dispatch for the role.
func (p *Prometheus) TaskDispatched(role string) {
	p.dispatched.WithLabelValues(role).Inc()
}

// TaskCompleted counts a completion and observes its duration.
func (p *Prometheus) TaskCompleted(role string, d time.Duration) {
	p.completed.WithLabelValues(role).Inc()
	p.taskDuration.WithLabelValues(role).Observe(d.Seconds())
}

// TaskFailed counts a failure for the role.
func (p *Prometheus) TaskFailed(role string) {
	p.failed.WithLabelValues(role).Inc()
}

// ConflictDetected counts a conflict marker.
func (p *Prometheus) ConflictDetected() {
	p.conflicts.Inc()
}

// CircuitOpened counts a circuit-break decision for the key.
func (p *Prometheus) CircuitOpened(key string) {
	p.circuitOpens.WithLabelValues(key).Inc()
}

// PhaseChanged sets the current-phase gauge.
func (p *Prometheus) PhaseChanged(phase int) {
	p.currentPhase.Set(float64(phase))
}

// ProgressUpdated sets the overall-progress gauge.
func (p *Prometheus) ProgressUpdated(overall float64) {
	p.overall.Set(overall)
}
