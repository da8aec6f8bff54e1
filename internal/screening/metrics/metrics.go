package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the screening pipeline.
type Metrics struct {
	// Raw records read from the source
	RecordsLoaded prometheus.Counter

	// Classification outcomes by status
	Outcomes *prometheus.CounterVec

	// Raw records dropped during cleaning by reason
	Dropped *prometheus.CounterVec

	// Stage latency (load, clean, classify, save)
	StageLatency *prometheus.HistogramVec

	// Memo cache lookups by result
	CacheLookups *prometheus.CounterVec

	// Completed runs by outcome
	Runs *prometheus.CounterVec

	LastSuccess prometheus.Gauge
}

// New creates the screening metrics and registers them with reg. A batch job
// usually passes its own registry so the values can be written to a textfile
// on exit.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "panval_records_loaded_total",
			Help: "Total raw records read from the input source",
		}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panval_classifications_total",
			Help: "Total classified identifiers by status",
		}, []string{"status"}),

		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panval_records_dropped_total",
			Help: "Total raw records dropped during cleaning by reason",
		}, []string{"reason"}), // reason: "null", "blank", "duplicate"

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panval_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panval_cache_lookups_total",
			Help: "Classification cache lookups by result",
		}, []string{"result"}),

		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panval_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "panval_last_success_timestamp_seconds",
			Help: "Unix time of the last successful pipeline run",
		}),
	}
}

func (m *Metrics) AddLoaded(n int) {
	if m != nil {
		m.RecordsLoaded.Add(float64(n))
	}
}

func (m *Metrics) AddOutcome(status string, n int) {
	if m != nil {
		m.Outcomes.WithLabelValues(status).Add(float64(n))
	}
}

func (m *Metrics) AddDropped(reason string, n int) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) AddCacheLookups(hits, misses int) {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Add(float64(hits))
		m.CacheLookups.WithLabelValues("miss").Add(float64(misses))
	}
}

// RecordRun counts a finished run and stamps the success gauge.
func (m *Metrics) RecordRun(err error, at time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.Runs.WithLabelValues("failure").Inc()
		return
	}
	m.Runs.WithLabelValues("success").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}
