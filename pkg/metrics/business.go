package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Business aggregates the ledger-side counters. Result labels are "ok" or a
// short failure reason so dashboards can split success/failure without
// unbounded cardinality.
type Business struct {
	Deductions  *prometheus.CounterVec
	Topups      *prometheus.CounterVec
	Callbacks   *prometheus.CounterVec
	SweptOrders prometheus.Counter
	QuotaResets prometheus.Counter
}

func NewBusiness() *Business {
	b := &Business{
		Deductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "ledger",
			Name:      "deductions_total",
			Help:      "App-use deductions, partitioned by result.",
		}, []string{"result"}),
		Topups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "ledger",
			Name:      "topups_total",
			Help:      "Confirmed balance top-ups, partitioned by result.",
		}, []string{"result"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payment",
			Name:      "callbacks_total",
			Help:      "Provider callbacks received, partitioned by result.",
		}, []string{"result"}),
		SweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "payment",
			Name:      "swept_orders_total",
			Help:      "Pending top-up orders failed by the expiry sweeper.",
		}),
		QuotaResets: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "quota",
			Name:      "daily_resets_total",
			Help:      "Cards whose daily free quota was reset.",
		}),
	}
	for _, c := range []prometheus.Collector{b.Deductions, b.Topups, b.Callbacks, b.SweptOrders, b.QuotaResets} {
		// duplicate registration only happens in tests constructing several
		// instances; ignore it there
		_ = prometheus.Register(c)
	}
	return b
}

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var Module = fx.Options(
	fx.Provide(NewBusiness),
)
