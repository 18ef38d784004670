// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSentTotal counts frames handed to the device
	PacketsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otus_inject_packets_sent_total",
			Help: "Total number of frames written to the device",
		},
	)

	// BytesSentTotal counts frame bytes handed to the device
	BytesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otus_inject_bytes_sent_total",
			Help: "Total number of frame bytes written to the device",
		},
	)

	// BatchesGeneratedTotal counts batches pushed to the injection queue
	BatchesGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otus_inject_batches_generated_total",
			Help: "Total number of frame batches pushed to the injection queue",
		},
	)

	// BatchSize tracks the number of frames per generated batch
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "otus_inject_batch_size",
			Help:    "Number of frames per generated batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1, 2, 4, ..., 8192
		},
	)

	// QueueDepth tracks batches waiting in the injection queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "otus_inject_queue_depth",
			Help: "Number of batches waiting in the injection queue",
		},
	)

	// RunErrorsTotal counts failed runs by failure stage
	RunErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_inject_run_errors_total",
			Help: "Total number of failed injection runs",
		},
		[]string{"stage"},
	)

	// RunState tracks the state of the current injection run
	RunState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "otus_inject_run_state",
			Help: "State of the injection run (0=idle, 1=running, 2=draining, 3=completed, 4=failed)",
		},
	)
)
