package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nsc-hq/arbiter/pkg/arbiter"
)

// Metrics contains Prometheus metrics for the supervisor package.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ingest throughput
	batches  prometheus.Counter
	signals  prometheus.Counter
	evidence prometheus.Counter

	// Decisions
	actions     *prometheus.CounterVec
	freezeFlags *prometheus.CounterVec

	// Snapshot restore
	restoreEntries *prometheus.CounterVec

	// Batch latency
	ingestDuration prometheus.Histogram
}

// NewMetrics creates the supervisor collectors and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		batches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_batches_total",
				Help: "Total number of signal batches ingested",
			},
		),

		signals: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_signals_total",
				Help: "Total number of signals ingested",
			},
		),

		evidence: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_evidence_total",
				Help: "Total number of evidence records built from signals",
			},
		),

		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_actions_total",
				Help: "Total number of per-intent decisions by escalation level",
			},
			[]string{"escalation"},
		),

		freezeFlags: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_freeze_flags_total",
				Help: "Total number of freeze flags raised on decided intents",
			},
			[]string{"flag"},
		),

		restoreEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_supervisor_restore_entries_total",
				Help: "Total number of intent states written by restore operations",
			},
			[]string{"mode", "result"},
		),

		ingestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arbiter_supervisor_ingest_duration_seconds",
				Help:    "Duration of batch ingestion in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
			},
		),
	}
}

// RecordBatch records one ingested batch.
func (m *Metrics) RecordBatch(signals, evidence int, duration time.Duration) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.signals.Add(float64(signals))
	m.evidence.Add(float64(evidence))
	m.ingestDuration.Observe(duration.Seconds())
}

// RecordAction records one per-intent decision.
func (m *Metrics) RecordAction(a *Action) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(a.Escalation.String()).Inc()
	if a.FreezeFlags == nil {
		return
	}
	recordFlags(m.freezeFlags, *a.FreezeFlags)
}

func recordFlags(vec *prometheus.CounterVec, ff arbiter.FreezeFlags) {
	if ff.Rep3p {
		vec.WithLabelValues("rep3p").Inc()
	}
	if ff.Stall {
		vec.WithLabelValues("stall").Inc()
	}
	if ff.AITell {
		vec.WithLabelValues("ai_tell").Inc()
	}
}

// RecordRestore records the outcome of a restore.
func (m *Metrics) RecordRestore(mode string, stats RestoreStats) {
	if m == nil {
		return
	}
	m.restoreEntries.WithLabelValues(mode, "applied").Add(float64(stats.Applied))
	m.restoreEntries.WithLabelValues(mode, "overwritten").Add(float64(stats.Overwritten))
}
