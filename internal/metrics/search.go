package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "birdsearch",
			Name:      "searches_total",
			Help:      "Total number of searches served, labelled by engine path",
		},
		[]string{"engine"},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "birdsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	indexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "birdsearch",
			Name:      "indexed_documents",
			Help:      "Number of documents currently in the search index",
		},
	)

	syncFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "birdsearch",
			Name:      "sync_failures_total",
			Help:      "Total number of record events that failed to index",
		},
	)
)

func init() {
	prometheus.MustRegister(searchesTotal)
	prometheus.MustRegister(searchDuration)
	prometheus.MustRegister(indexedDocuments)
	prometheus.MustRegister(syncFailuresTotal)
}

// ObserveSearch records one served search.
func ObserveSearch(engine string, elapsed time.Duration) {
	searchesTotal.WithLabelValues(engine).Inc()
	searchDuration.Observe(elapsed.Seconds())
}

// SetIndexedDocuments updates the indexed document gauge.
func SetIndexedDocuments(n uint64) {
	indexedDocuments.Set(float64(n))
}

// RecordSyncFailure counts a record event that could not be indexed.
func RecordSyncFailure() {
	syncFailuresTotal.Inc()
}
