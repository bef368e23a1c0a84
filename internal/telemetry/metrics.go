// Package telemetry provides structured logging and Prometheus metrics for
// the orchestrator.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects orchestrator metrics on a private registry so tests can
// create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	reusedTotal   *prometheus.CounterVec
	packagesBuilt prometheus.Histogram
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_turns_total",
			Help: "Conversation turns processed, by outcome.",
		}, []string{"status"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripweaver_turn_duration_seconds",
			Help:    "End-to-end turn processing duration.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_tasks_total",
			Help: "Search tasks dispatched, by domain and outcome.",
		}, []string{"domain", "status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripweaver_task_duration_seconds",
			Help:    "Search task duration, by domain.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"domain"}),
		reusedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_results_reused_total",
			Help: "Searches skipped because the task fingerprint was unchanged.",
		}, []string{"domain"}),
		packagesBuilt: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripweaver_packages_per_turn",
			Help:    "Ranked packages returned per responded turn.",
			Buckets: []float64{0, 1, 2, 3},
		}),
	}
}

// RecordTurn records a completed conversation turn.
func (m *Metrics) RecordTurn(status string, duration time.Duration) {
	m.turnsTotal.WithLabelValues(status).Inc()
	m.turnDuration.Observe(duration.Seconds())
}

// RecordTask records a dispatched search task.
func (m *Metrics) RecordTask(domain, status string, duration time.Duration) {
	m.tasksTotal.WithLabelValues(domain, status).Inc()
	m.taskDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordReuse records a search skipped via fingerprint match.
func (m *Metrics) RecordReuse(domain string) {
	m.reusedTotal.WithLabelValues(domain).Inc()
}

// RecordPackages records how many packages a turn produced.
func (m *Metrics) RecordPackages(n int) {
	m.packagesBuilt.Observe(float64(n))
}

// Handler returns an HTTP handler serving the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
