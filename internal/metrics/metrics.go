package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "relay"

// Registry holds every relay metric. It is separate from the default
// registry so tests and binaries get the same set.
var Registry = prometheus.NewRegistry()

var (
	QueuePushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_pushed_total",
			Help:      "Items pushed into a bounded queue.",
		},
		[]string{"queue"},
	)
	QueueDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Items evicted from a bounded queue to admit a newer one.",
		},
		[]string{"queue"},
	)
	DatagramsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Datagrams written to the transport.",
		},
		[]string{"publisher"},
	)
	DatagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams the transport did not accept.",
		},
		[]string{"publisher", "reason"},
	)
	DatagramBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_bytes_total",
			Help:      "Payload bytes written to the transport.",
		},
		[]string{"publisher"},
	)
	FramesEncoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_encoded_total",
			Help:      "Frames compressed by the encode stage.",
		},
	)
	EncodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_encode_errors_total",
			Help:      "Frames discarded because encoding failed.",
		},
	)
	EncodeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_encode_seconds",
			Help:      "Time spent converting and compressing one frame.",
			Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
		},
	)
	HeartbeatTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_ticks_total",
			Help:      "Fixed-rate control publisher ticks by outcome.",
		},
		[]string{"result"},
	)
	ControlChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_state_changes_total",
			Help:      "Distinct control states emitted by the input adapter.",
		},
	)
	IngestMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Messages received by the frame ingest by outcome.",
		},
		[]string{"result"},
	)
)

var registerMetrics sync.Once

// Register adds every metric to Registry. Safe to call more than once.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(
			QueuePushed,
			QueueDropped,
			DatagramsSent,
			DatagramsDropped,
			DatagramBytes,
			FramesEncoded,
			EncodeErrors,
			EncodeSeconds,
			HeartbeatTicks,
			ControlChanges,
			IngestMessages,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// ObservePush records one queue push and whether it evicted an item.
func ObservePush(queue string, evicted bool) {
	QueuePushed.WithLabelValues(queue).Inc()
	if evicted {
		QueueDropped.WithLabelValues(queue).Inc()
	}
}
