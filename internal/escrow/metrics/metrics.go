package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the escrow ledger.
type Metrics struct {
	// Operation outcomes by operation and result code
	Operations *prometheus.CounterVec

	// Operation latencies by operation
	OperationLatency *prometheus.HistogramVec

	// Idempotency cache hits by operation
	IdempotentHits *prometheus.CounterVec

	// Row lease contention by operation
	LockContention *prometheus.CounterVec

	// Escrows transitioned to expired per sweep run
	ExpiredSwept prometheus.Counter
}

// New creates a Metrics instance with all escrow ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftvault_escrow_operations_total",
			Help: "Total escrow ledger operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "giftvault_escrow_operation_duration_seconds",
			Help:    "Duration of escrow ledger operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		IdempotentHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftvault_escrow_idempotent_hits_total",
			Help: "Release/refund calls answered from the idempotency cache",
		}, []string{"operation"}),

		LockContention: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftvault_escrow_lock_contention_total",
			Help: "Operations rejected because the row lease was held",
		}, []string{"operation"}),

		ExpiredSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftvault_escrow_expired_total",
			Help: "Escrows transitioned to expired by the sweep",
		}),
	}
}

// RecordOperation records an operation outcome and latency.
func (m *Metrics) RecordOperation(op, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(op, outcome).Inc()
		m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// RecordIdempotentHit records a cache-served response.
func (m *Metrics) RecordIdempotentHit(op string) {
	if m != nil {
		m.IdempotentHits.WithLabelValues(op).Inc()
	}
}

// RecordLockContention records a lease rejection.
func (m *Metrics) RecordLockContention(op string) {
	if m != nil {
		m.LockContention.WithLabelValues(op).Inc()
	}
}

// RecordExpired adds to the expiry sweep counter.
func (m *Metrics) RecordExpired(n int) {
	if m != nil && n > 0 {
		m.ExpiredSwept.Add(float64(n))
	}
}
