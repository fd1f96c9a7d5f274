// Package metrics holds the Prometheus instruments for ingestion, ranking and feedback.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yomu_ingest_cycles_total",
			Help: "Ingestion cycles by outcome (ok, partial, failed)",
		},
		[]string{"outcome"},
	)

	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yomu_ingest_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ArticlesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yomu_articles_upserted_total",
			Help: "Catalog upserts by result (created, updated)",
		},
		[]string{"result"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yomu_source_failures_total",
			Help: "Source adapter failures by source and kind",
		},
		[]string{"source", "kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yomu_source_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Feed serving
	FeedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yomu_feed_requests_total",
			Help: "Assembled feeds by algorithm (mtl, fallback, trending, search)",
		},
		[]string{"algorithm"},
	)

	FeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yomu_feed_duration_seconds",
			Help:    "Feed assembly duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	FeedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yomu_feed_cache_hits_total",
			Help: "Feed cache hits",
		},
	)

	FeedCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yomu_feed_cache_misses_total",
			Help: "Feed cache misses",
		},
	)

	InferenceBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yomu_inference_batch_duration_seconds",
			Help:    "Model scoring latency per batch in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	InferenceBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yomu_inference_batch_size",
			Help:    "Number of feature vectors per scoring batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Feedback
	InteractionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yomu_interaction_events_total",
			Help: "Recorded interaction events by kind and whether they were duplicates",
		},
		[]string{"kind", "duplicate"},
	)

	ActiveActors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yomu_feedback_active_actors",
			Help: "Number of running per-user preference actors",
		},
	)
)

// RecordIngestCycle records the outcome and duration of one ingestion cycle.
func RecordIngestCycle(outcome string, d time.Duration) {
	IngestCycles.WithLabelValues(outcome).Inc()
	IngestCycleDuration.Observe(d.Seconds())
}

// RecordFeed records one assembled feed.
func RecordFeed(algorithm string, d time.Duration) {
	FeedRequests.WithLabelValues(algorithm).Inc()
	FeedDuration.WithLabelValues(algorithm).Observe(d.Seconds())
}

// RecordInference records one scoring batch.
func RecordInference(batch int, d time.Duration) {
	InferenceBatchSize.Observe(float64(batch))
	InferenceBatchDuration.Observe(d.Seconds())
}

// RecordInteraction records one interaction event.
func RecordInteraction(kind string, duplicate bool) {
	dup := "false"
	if duplicate {
		dup = "true"
	}
	InteractionEvents.WithLabelValues(kind, dup).Inc()
}
