package backup

import (
	"github.com/haierkeys/db-backup-service/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "db_backup"

// Collector is a prometheus.Collector for backup runs.
// A nil *Collector is valid and records nothing.
// Collector 备份运行指标，nil 时不记录
type Collector struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	bytesWritten prometheus.Counter
	activeRuns   prometheus.Gauge
	filesSwept   prometheus.Counter
}

// NewMetricsCollector returns a new Collector. Register it with a prometheus.Registerer.
func NewMetricsCollector() *Collector {
	return &Collector{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "The number of finished backup runs by status.",
			}, []string{"status", "trigger"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "The wall-clock duration of backup runs.",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
			},
		),
		bytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "artifact_bytes_total",
				Help:      "The total size of artifacts written by successful runs.",
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_runs",
				Help:      "The number of backup runs currently executing.",
			},
		),
		filesSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "retention_deleted_files_total",
				Help:      "The number of backup files deleted by retention.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.runsTotal.Describe(ch)
	c.runDuration.Describe(ch)
	c.bytesWritten.Describe(ch)
	c.activeRuns.Describe(ch)
	c.filesSwept.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.runsTotal.Collect(ch)
	c.runDuration.Collect(ch)
	c.bytesWritten.Collect(ch)
	c.activeRuns.Collect(ch)
	c.filesSwept.Collect(ch)
}

func (c *Collector) runStarted() {
	if c == nil {
		return
	}
	c.activeRuns.Inc()
}

func (c *Collector) runFinished(run *domain.Run) {
	if c == nil {
		return
	}
	trigger := "scheduled"
	if run.IsManual {
		trigger = "manual"
	}
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(string(run.Status), trigger).Inc()
	c.runDuration.Observe(run.DurationSeconds)
	if run.Status == domain.RunStatusSuccess && run.FileSize > 0 {
		c.bytesWritten.Add(float64(run.FileSize))
	}
}

func (c *Collector) swept(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.filesSwept.Add(float64(n))
}

var _ prometheus.Collector = (*Collector)(nil)
