// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide registry served by Handler.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		IngestionsTotal, IngestionDuration,
		ChunksUpserted, UpsertBatches,
		SearchesTotal, SearchDuration,
		EmbeddingRequests,
	)
}

// IngestionsTotal counts finished ingestion runs by final state.
var IngestionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragindex_ingestions_total",
		Help: "Finished ingestion runs by final state.",
	},
	[]string{"state"}, // done | failed
)

// IngestionDuration observes ingestion wall time in seconds.
var IngestionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ragindex_ingestion_duration_seconds",
		Help:    "Ingestion wall time in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	},
)

// ChunksUpserted counts chunks written per collection.
var ChunksUpserted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragindex_chunks_upserted_total",
		Help: "Chunks written to the vector store.",
	},
	[]string{"collection"},
)

// UpsertBatches counts store write batches per collection.
var UpsertBatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragindex_upsert_batches_total",
		Help: "Write batches sent to the vector store.",
	},
	[]string{"collection"},
)

// SearchesTotal counts tiered searches by tier and outcome.
var SearchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragindex_searches_total",
		Help: "Similarity searches by permission tier and outcome.",
	},
	[]string{"tier", "result"},
)

// SearchDuration observes per-tier search latency in seconds.
var SearchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ragindex_search_duration_seconds",
		Help:    "Similarity search latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tier"},
)

// EmbeddingRequests counts calls to the embedding provider by outcome.
var EmbeddingRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragindex_embedding_requests_total",
		Help: "Embedding provider calls by outcome.",
	},
	[]string{"result"}, // ok | error | rejected
)

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
