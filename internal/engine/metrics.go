package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the ingestor's Prometheus collectors.
type Metrics struct {
	BlocksApplied       prometheus.Counter
	Rollbacks           prometheus.Counter
	TipSlot             prometheus.Gauge
	BlockApplySeconds   prometheus.Histogram
	TransactionsSkipped prometheus.Counter
	ProjectorRows       *prometheus.CounterVec
}

// NewMetrics registers the ingestor collectors with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BlocksApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: "govsync",
			Name:      "blocks_applied_total",
			Help:      "Blocks committed to the store",
		}),
		Rollbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "govsync",
			Name:      "rollbacks_total",
			Help:      "Chain rollbacks applied to the store",
		}),
		TipSlot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "govsync",
			Name:      "tip_slot",
			Help:      "Slot of the last stored block",
		}),
		BlockApplySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "govsync",
			Name:      "block_apply_seconds",
			Help:      "Time to apply one block",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TransactionsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "govsync",
			Name:      "transactions_skipped_total",
			Help:      "Transactions whose projector effects were skipped for unsupported ledger features",
		}),
		ProjectorRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govsync",
			Name:      "projector_rows_total",
			Help:      "State versions and transitions written per projector",
		}, []string{"projector"}),
	}
}
