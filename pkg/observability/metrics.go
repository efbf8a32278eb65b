package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the hash index
type Metrics struct {
	// Training metrics
	TablesTrained    prometheus.Counter
	TrainingDuration prometheus.Histogram
	TrainingErrors   prometheus.Counter

	// Indexing metrics
	VectorsHashed prometheus.Counter
	HashDuration  prometheus.Histogram
	IndexBuckets  *prometheus.GaugeVec
	MaxBucketSize *prometheus.GaugeVec

	// Query metrics
	QueriesTotal      prometheus.Counter
	QueryLatency      prometheus.Histogram
	BucketsProbed     prometheus.Histogram
	CandidatesScanned prometheus.Histogram
	QueryRecall       prometheus.Histogram
}

// NewMetrics creates all metrics and registers them with reg. A nil
// registerer falls back to the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TablesTrained: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gqr_tables_trained_total",
				Help: "Total number of hash tables trained",
			},
		),
		TrainingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_training_duration_seconds",
				Help:    "Wall-clock duration of full index training",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		TrainingErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gqr_training_errors_total",
				Help: "Total number of failed training runs",
			},
		),
		VectorsHashed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gqr_vectors_hashed_total",
				Help: "Total number of vectors inserted into bucket maps",
			},
		),
		HashDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_hash_duration_seconds",
				Help:    "Wall-clock duration of bulk hashing",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
		),
		IndexBuckets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gqr_index_buckets",
				Help: "Number of non-empty buckets by table",
			},
			[]string{"table"},
		),
		MaxBucketSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gqr_index_max_bucket_size",
				Help: "Largest bucket size by table",
			},
			[]string{"table"},
		),
		QueriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gqr_queries_total",
				Help: "Total number of prober-driven queries",
			},
		),
		QueryLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_query_latency_seconds",
				Help:    "Query latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		BucketsProbed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_query_buckets_probed",
				Help:    "Buckets probed per query",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
			},
		),
		CandidatesScanned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_query_candidates_scanned",
				Help:    "Candidates scanned per query",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
		QueryRecall: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gqr_query_recall",
				Help:    "Recall against ground truth (0-1)",
				Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, .95, .99, 1},
			},
		),
	}
}

// RecordTraining records a completed training run
func (m *Metrics) RecordTraining(tables int, duration time.Duration) {
	m.TablesTrained.Add(float64(tables))
	m.TrainingDuration.Observe(duration.Seconds())
}

// RecordTrainingError records a failed training run
func (m *Metrics) RecordTrainingError() {
	m.TrainingErrors.Inc()
}

// RecordHash records a bulk hashing run
func (m *Metrics) RecordHash(vectors int, duration time.Duration) {
	m.VectorsHashed.Add(float64(vectors))
	m.HashDuration.Observe(duration.Seconds())
}

// UpdateTableStats updates per-table bucket gauges
func (m *Metrics) UpdateTableStats(table string, buckets, maxBucket int) {
	m.IndexBuckets.WithLabelValues(table).Set(float64(buckets))
	m.MaxBucketSize.WithLabelValues(table).Set(float64(maxBucket))
}

// RecordQuery records one prober-driven query
func (m *Metrics) RecordQuery(duration time.Duration, bucketsProbed, candidates int) {
	m.QueriesTotal.Inc()
	m.QueryLatency.Observe(duration.Seconds())
	m.BucketsProbed.Observe(float64(bucketsProbed))
	m.CandidatesScanned.Observe(float64(candidates))
}

// RecordRecall records one recall observation (0-1)
func (m *Metrics) RecordRecall(recall float64) {
	m.QueryRecall.Observe(recall)
}
