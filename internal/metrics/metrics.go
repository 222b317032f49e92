// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess  = "success"
	ResultFailed   = "failed"
	ResultDegraded = "degraded"
	ResultSkipped  = "skipped"
)

var (
	// SyncRunsTotal counts tenant sync cycles by outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_sync_runs_total",
			Help: "Tenant sync cycles by result",
		},
		[]string{"result"},
	)

	// SyncDuration tracks wall time of one tenant sync cycle.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "callsync_sync_duration_seconds",
			Help:    "Duration of one tenant sync cycle",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ProviderPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callsync_provider_pages_total",
			Help: "Provider pages requested",
		},
	)

	RecordsFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callsync_records_fetched_total",
			Help: "Call records received from the provider",
		},
	)

	RetentionFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callsync_retention_fallbacks_total",
			Help: "Fetches restarted with the retention-safe window",
		},
	)

	RetentionDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callsync_retention_degraded_total",
			Help: "Fetches cut short by a second retention rejection",
		},
	)

	// WebhookDeliveriesTotal counts webhook POST attempts by outcome.
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsync_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result",
		},
		[]string{"result"},
	)

	TenantUsedMinutes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callsync_tenant_used_minutes",
			Help: "Reconciled minutes used in the current billing cycle",
		},
		[]string{"tenant_id"},
	)
)
