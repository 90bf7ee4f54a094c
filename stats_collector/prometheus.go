package stats_collector

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_count",
			Help: "Total number of snapshots received on the ingest endpoint",
		},
		[]string{"kind", "status"},
	)

	landingSquashed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landing_squashed",
			Help: "Total number of enqueues coalesced into an existing pending task",
		},
		[]string{"kind"},
	)
	landingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "landing_queue_depth",
			Help: "Current number of pending tasks in the landing queue",
		},
	)
	landingMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "landing_mode",
			Help: "Active landing mode severity (0=idle 1=normal 2=peak 3=extreme)",
		},
	)
	landingModeSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landing_mode_switches",
			Help: "Total number of landing mode switches",
		},
		[]string{"mode"},
	)
	landingWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landing_writes",
			Help: "Total number of tasks durably written",
		},
		[]string{"kind"},
	)
	landingRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landing_retries",
			Help: "Total number of failed tasks requeued for retry",
		},
		[]string{"kind"},
	)
	landingDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landing_dropped",
			Help: "Total number of tasks dropped past the retry ceiling",
		},
		[]string{"kind"},
	)
	landingBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landing_batches",
			Help: "Total number of batch writes attempted",
		},
	)
	landingBatchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "landing_batch_errors",
			Help: "Total number of batch writes that failed wholesale",
		},
	)
	landingBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landing_batch_size",
			Help:    "Distribution of batch sizes",
			Buckets: []float64{1, 10, 50, 100, 200, 500, 1000, 2000},
		},
	)
	landingBatchTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landing_batch_time",
			Help:    "Batch write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	landingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landing_latency",
			Help:    "Seconds between enqueue and durable write",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	dbQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries",
			Help: "Total number of database queries by outcome",
		},
		[]string{"query", "status"},
	)
)

var registerOnce sync.Once

type prometheusCollector struct{}

var _ StatsCollector = (*prometheusCollector)(nil)

// NewPrometheusCollector registers the landing metrics with the default
// registry (once) and returns the collector.
func NewPrometheusCollector() StatsCollector {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ingestCount,
			landingSquashed,
			landingQueueDepth,
			landingMode,
			landingModeSwitches,
			landingWrites,
			landingRetries,
			landingDropped,
			landingBatches,
			landingBatchErrors,
			landingBatchSize,
			landingBatchTime,
			landingLatency,
			dbQueries,
		)
	})
	return &prometheusCollector{}
}

func (c *prometheusCollector) IncIngest(kind, status string) {
	ingestCount.WithLabelValues(kind, status).Inc()
}

func (c *prometheusCollector) IncLandingSquashed(kind string) {
	landingSquashed.WithLabelValues(kind).Inc()
}

func (c *prometheusCollector) SetLandingQueueDepth(depth float64) {
	landingQueueDepth.Set(depth)
}

func (c *prometheusCollector) SetLandingMode(severity float64) {
	landingMode.Set(severity)
}

func (c *prometheusCollector) IncLandingModeSwitches(mode string) {
	landingModeSwitches.WithLabelValues(mode).Inc()
}

func (c *prometheusCollector) IncLandingWrites(kind string) {
	landingWrites.WithLabelValues(kind).Inc()
}

func (c *prometheusCollector) IncLandingRetries(kind string) {
	landingRetries.WithLabelValues(kind).Inc()
}

func (c *prometheusCollector) IncLandingDropped(kind string) {
	landingDropped.WithLabelValues(kind).Inc()
}

func (c *prometheusCollector) IncLandingBatches() {
	landingBatches.Inc()
}

func (c *prometheusCollector) IncLandingBatchErrors() {
	landingBatchErrors.Inc()
}

func (c *prometheusCollector) ObserveLandingBatchSize(size float64) {
	landingBatchSize.Observe(size)
}

func (c *prometheusCollector) ObserveLandingBatchTime(seconds float64) {
	landingBatchTime.Observe(seconds)
}

func (c *prometheusCollector) ObserveLandingLatency(seconds float64) {
	landingLatency.Observe(seconds)
}

func (c *prometheusCollector) IncDbQuery(query string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	dbQueries.WithLabelValues(query, status).Inc()
}
