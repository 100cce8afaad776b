package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	PendingComments     prometheus.Gauge
	SnapshotsApplied    prometheus.Counter
	Reconciled          prometheus.Counter
	ReconcileMismatches prometheus.Counter
	RateLimited         prometheus.Counter
	WriteFailures       *prometheus.CounterVec
	Requests            *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PendingComments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "pending",
			Help:      "Optimistic comments waiting for confirmation.",
		}),
		SnapshotsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "snapshots_applied_total",
			Help:      "Thread snapshots merged into sessions.",
		}),
		Reconciled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "reconciled_total",
			Help:      "Pending comments replaced by their confirmed record.",
		}),
		ReconcileMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "reconcile_mismatches_total",
			Help:      "Acknowledged writes never seen in a snapshot in time.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "rate_limited_total",
			Help:      "Submissions rejected by the cooldown.",
		}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "comments",
			Name:      "write_failures_total",
			Help:      "Failed store writes by operation.",
		}, []string{"op"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairway",
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Handled gRPC requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) AddPending(delta int) {
	if m == nil {
		return
	}
	m.PendingComments.Add(float64(delta))
}

func (m *Metrics) SnapshotApplied(reconciled int) {
	if m == nil {
		return
	}
	m.SnapshotsApplied.Inc()
	if reconciled > 0 {
		m.Reconciled.Add(float64(reconciled))
	}
}

func (m *Metrics) ReconcileMismatch() {
	if m == nil {
		return
	}
	m.ReconcileMismatches.Inc()
}

func (m *Metrics) RateLimitedSubmission() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) WriteFailed(op string) {
	if m == nil {
		return
	}
	m.WriteFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) Request(method string, code string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, code).Inc()
}
