package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vector store Prometheus metrics.
var (
	VectorDBOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbase",
			Name:      "vectordb_operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"backend", "op", "status"}, // status: ok / not_implemented / connection / failed
	)

	VectorDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbase",
			Name:      "vectordb_operation_duration_seconds",
			Help:      "Vector store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)

	VectorDBDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbase",
			Name:      "vectordb_documents_total",
			Help:      "Documents written to or returned by vector stores",
		},
		[]string{"backend", "op"},
	)
)

// RegisterVectorDBMetrics registers the vector store collectors once.
func RegisterVectorDBMetrics() {
	vectordbOnce.Do(func() {
		register(VectorDBOperationsTotal, VectorDBOperationDuration, VectorDBDocumentsTotal)
	})
}
