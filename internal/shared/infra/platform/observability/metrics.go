package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promolab_outbox_events_total",
			Help: "Outbox events processed by the relayer, by result.",
		},
		[]string{"result"},
	)
	WorkflowOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promolab_workflow_outcomes_total",
			Help: "Terminal outcomes of transaction.posted processing.",
		},
		[]string{"outcome"},
	)
	CreditCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promolab_credit_call_duration_seconds",
			Help:    "Duration of cashback credit calls to the ledger service.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)
