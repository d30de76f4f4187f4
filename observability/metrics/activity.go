package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ActivityMetrics struct {
	opsApplied *prometheus.CounterVec
	opsFailed  *prometheus.CounterVec
	claimsPaid prometheus.Counter
	feeCut     prometheus.Counter
	custody    *prometheus.GaugeVec
}

var (
	activityOnce     sync.Once
	activityRegistry *ActivityMetrics
)

func Activity() *ActivityMetrics {
	activityOnce.Do(func() {
		activityRegistry = &ActivityMetrics{
			opsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "activity_operations_applied_total",
				Help: "Count of ledger operations applied by operation name.",
			}, []string{"op"}),
			opsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "activity_operations_failed_total",
				Help: "Count of ledger operations rejected by operation name.",
			}, []string{"op"}),
			claimsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "activity_claims_paid_total",
				Help: "Gross token units paid out through reward claims.",
			}),
			feeCut: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "activity_fee_collected_total",
				Help: "Token units routed to the platform fee collector.",
			}),
			custody: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "activity_custody_balance",
				Help: "Current custody balance per (project, token) pair.",
			}, []string{"project", "token"}),
		}
		prometheus.MustRegister(
			activityRegistry.opsApplied,
			activityRegistry.opsFailed,
			activityRegistry.claimsPaid,
			activityRegistry.feeCut,
			activityRegistry.custody,
		)
	})
	return activityRegistry
}

func (m *ActivityMetrics) OpApplied(op string) {
	if m == nil {
		return
	}
	m.opsApplied.WithLabelValues(op).Inc()
}

func (m *ActivityMetrics) OpFailed(op string) {
	if m == nil {
		return
	}
	m.opsFailed.WithLabelValues(op).Inc()
}

func (m *ActivityMetrics) ClaimPaid(gross, fee uint64) {
	if m == nil {
		return
	}
	m.claimsPaid.Add(float64(gross))
	m.feeCut.Add(float64(fee))
}

func (m *ActivityMetrics) CustodySet(project, token string, balance uint64) {
	if m == nil {
		return
	}
	m.custody.WithLabelValues(project, token).Set(float64(balance))
}
