package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric exported by metackpt.
const Namespace = "metackpt"

// Operation status label values.
const (
	StatusSuccess   = "success"
	StatusInternal  = "internal"
	StatusCorrupted = "corrupted"
	StatusCanceled  = "canceled"
)

// Checkpoint holds the checkpoint protocol metrics.
// A nil *Checkpoint is valid and records nothing.
type Checkpoint struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bytes       *prometheus.CounterVec
	corruptions prometheus.Counter
}

// NewCheckpoint creates the checkpoint metrics and registers them with reg.
func NewCheckpoint(reg prometheus.Registerer) (*Checkpoint, error) {
	m := &Checkpoint{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "operations_total",
			Help:      "Checkpoint write/restore operations by outcome",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Time spent writing or restoring a checkpoint",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "bytes_total",
			Help:      "Payload bytes written or read by checkpoint operations",
		}, []string{"op"}),
		corruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "corruptions_total",
			Help:      "Restores rejected because of a digest mismatch or missing sidecar",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.bytes, m.corruptions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished operation.
func (m *Checkpoint) Observe(op, status string, n int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if n > 0 {
		m.bytes.WithLabelValues(op).Add(float64(n))
	}
	if status == StatusCorrupted {
		m.corruptions.Inc()
	}
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
