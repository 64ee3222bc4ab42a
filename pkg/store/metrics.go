package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for snapshot storage.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pruned      prometheus.Counter
	lastEntries prometheus.Gauge
	lastSize    prometheus.Gauge
}

// NewMetrics registers the store collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_store_operations_total",
				Help: "Snapshot store operations by backend, operation and result.",
			},
			[]string{"backend", "operation", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_store_operation_duration_seconds",
				Help:    "Snapshot store operation latency.",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"backend", "operation"},
		),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_store_generations_pruned_total",
			Help: "Snapshot generations deleted by pruning.",
		}),
		lastEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_store_last_checkpoint_entries",
			Help: "Intent count of the most recently saved generation.",
		}),
		lastSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_store_last_checkpoint_bytes",
			Help: "Encoded size of the most recently saved generation.",
		}),
	}
}

func (m *Metrics) recordOp(backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(backend, op, result).Inc()
	m.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordSave(gen Generation) {
	if m == nil {
		return
	}
	m.lastEntries.Set(float64(gen.Entries))
	m.lastSize.Set(float64(gen.Size))
}

func (m *Metrics) recordPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
