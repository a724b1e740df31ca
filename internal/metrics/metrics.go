package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

var Module = fx.Provide(Default)

// Metrics carries the workflow engine's prometheus instruments.
type Metrics struct {
	Submissions       prometheus.Counter
	Decisions         *prometheus.CounterVec
	AutoApprovals     prometheus.Counter
	CurrencyFallbacks prometheus.Counter
	DecisionConflicts prometheus.Counter
}

// Default registers against the global registry for the /metrics endpoint.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_submissions_total",
			Help: "Expenses submitted into an approval workflow.",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expenseflow_decisions_total",
			Help: "Approval decisions recorded, by action.",
		}, []string{"action"}),
		AutoApprovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_auto_approvals_total",
			Help: "Submissions auto-approved because no ledger row could be materialized.",
		}),
		CurrencyFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_currency_fallbacks_total",
			Help: "Currency conversions that fell back to a 1:1 rate.",
		}),
		DecisionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_decision_conflicts_total",
			Help: "Decisions rejected because the ledger row or expense was already decided.",
		}),
	}
}
