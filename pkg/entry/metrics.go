package entry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics are registered once per process, mirroring the
// sync.Once + prometheus.MustRegister idiom used throughout
// pkg/blobstore/local in the teacher repository.
var (
	metricsOnce sync.Once

	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tsblobstore",
			Subsystem: "entry",
			Name:      "writes_total",
			Help:      "Number of Write() calls, labeled by classification (latest, belated_first, belated).",
		},
		[]string{"case"})

	recordSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tsblobstore",
			Subsystem: "entry",
			Name:      "record_size_bytes",
			Help:      "Size in bytes of the encoded record frame written per Write() call.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		})

	blockRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tsblobstore",
			Subsystem: "entry",
			Name:      "block_rollovers_total",
			Help:      "Number of times a Latest-case write allocated a new tail block.",
		})
)

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(writesTotal, recordSizeBytes, blockRolloversTotal)
	})
}

func init() {
	registerMetrics()
}

func (wc writeCase) metricLabel() string {
	switch wc {
	case caseLatest:
		return "latest"
	case caseBelatedFirst:
		return "belated_first"
	case caseBelated:
		return "belated"
	default:
		return "unknown"
	}
}
