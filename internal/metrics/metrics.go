// Package metrics exposes Prometheus counters and gauges for the
// ingest pipeline's health (frame throughput, batch flushes, queue
// depth, directory/database failures).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge the pipeline updates. A nil
// *Metrics is never passed around; callers always get one from New.
type Metrics struct {
	FramesReceived       prometheus.Counter
	FramesDecodeFail     prometheus.Counter
	RecordsEnqueued      *prometheus.CounterVec
	BatchesFlushed       *prometheus.CounterVec
	BatchFlushErrors     *prometheus.CounterVec
	DirectoryErrors      prometheus.Counter
	DirectoryCacheHits   prometheus.Counter
	DirectoryCacheMisses prometheus.Counter
	ReconnectCount       prometheus.Counter
	ProcessingQueue      prometheus.Gauge
	PersistenceQueue     prometheus.Gauge
}

// New registers and returns the pipeline's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_firehose_frames_received_total",
			Help: "Binary frames received from the upstream firehose connection.",
		}),
		FramesDecodeFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_firehose_frames_decode_failed_total",
			Help: "Frames that failed header or commit decoding.",
		}),
		RecordsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "widesky_records_enqueued_total",
			Help: "Records handed to the persistence queue, by kind.",
		}, []string{"kind"}),
		BatchesFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "widesky_batches_flushed_total",
			Help: "Batches flushed to PostgreSQL, by kind.",
		}, []string{"kind"}),
		BatchFlushErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "widesky_batch_flush_errors_total",
			Help: "Batch flushes that failed and were discarded, by kind.",
		}, []string{"kind"}),
		DirectoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_directory_lookup_errors_total",
			Help: "PLC directory lookups that gave up without a result.",
		}),
		DirectoryCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_directory_cache_hits_total",
			Help: "Directory lookups served from the in-process TTL cache.",
		}),
		DirectoryCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_directory_cache_misses_total",
			Help: "Directory lookups that required a PLC directory request.",
		}),
		ReconnectCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "widesky_firehose_reconnects_total",
			Help: "Times the firehose supervisor has reconnected after a dropped connection.",
		}),
		ProcessingQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "widesky_processing_queue_depth",
			Help: "Current depth of the raw-frame processing queue.",
		}),
		PersistenceQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "widesky_persistence_queue_depth",
			Help: "Current depth of the tagged-request persistence queue.",
		}),
	}
}
