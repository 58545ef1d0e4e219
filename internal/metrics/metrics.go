// README: Prometheus collectors for stage claims and payment webhooks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type StageMetrics struct {
	ClaimsTotal         *prometheus.CounterVec
	ClaimConflictsTotal *prometheus.CounterVec
	CompletionsTotal    *prometheus.CounterVec
	ReleasesTotal       *prometheus.CounterVec

	OrdersCreatedTotal *prometheus.CounterVec

	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration prometheus.Histogram
}

func NewStageMetrics() *StageMetrics {
	return &StageMetrics{
		ClaimsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_stage_claims_total", Help: "Successful stage claims"},
			[]string{"stage"},
		),
		ClaimConflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_stage_claim_conflicts_total", Help: "Rejected claims by reason"},
			[]string{"stage", "reason"},
		),
		CompletionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_stage_completions_total", Help: "Completed stages"},
			[]string{"stage"},
		),
		ReleasesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_stage_releases_total", Help: "Released stage claims"},
			[]string{"stage"},
		),
		OrdersCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_orders_created_total", Help: "Orders created by channel"},
			[]string{"type"},
		),
		WebhooksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "kilap_payment_webhooks_total", Help: "Payment notifications by result"},
			[]string{"result"},
		),
		WebhookDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kilap_payment_webhook_duration_seconds",
				Help:    "Payment notification handling duration",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
