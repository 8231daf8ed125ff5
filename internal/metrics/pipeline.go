package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and retrieval Prometheus metrics.
var (
	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_ingested_total",
			Help:      "Ingestion requests by outcome",
		},
		[]string{"status"}, // ok, empty, error
	)

	ChunksWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunks_written_total",
			Help:      "Vector records upserted by ingestion",
		},
	)

	IngestStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ingest_stage_duration_seconds",
			Help:      "Duration of each ingestion stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	UpsertRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upsert_batch_retries_total",
			Help:      "Upsert batches retried after a failure",
		},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "retrieval_results",
			Help:      "Passages returned per query after score filtering",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval duration",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and retrieval metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsIngestedTotal)
	prometheus.MustRegister(ChunksWrittenTotal)
	prometheus.MustRegister(IngestStageDuration)
	prometheus.MustRegister(UpsertRetriesTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(RetrievalDuration)
	pipelineMetricsRegistered = true
}
