package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/railzwaylabs/callsync/internal/integration/domain"
	"github.com/railzwaylabs/callsync/internal/metrics"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultInitialBackoff = 30 * time.Second
	defaultMaxBackoff     = time.Hour
	backoffMultiplier     = 2

	// the schedule is flat once MaxBackoff is reached, so deeper attempts
	// reuse this step
	maxBackoffSteps = 32
)

type DispatcherParam struct {
	fx.In

	Log      *zap.Logger
	Config   domain.Config
	Provider domain.NotificationProvider
}

type Dispatcher struct {
	log      *zap.Logger
	cfg      domain.Config
	provider domain.NotificationProvider
}

func NewDispatcher(p DispatcherParam) *Dispatcher {
	cfg := p.Config
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.InitialBackoff)
	}
	return &Dispatcher{
		log:      p.Log.Named("integration.dispatcher"),
		cfg:      cfg,
		provider: p.Provider,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, tenant tenantdomain.Tenant, n *tenantdomain.Notification, now time.Time) bool {
	if n.Delivered {
		return true
	}
	if tenant.WebhookURL == "" {
		return false
	}

	err := d.provider.Send(ctx, domain.NotificationInput{
		URL:            tenant.WebhookURL,
		IdempotencyKey: n.ID,
		Envelope:       domain.NewEnvelope(tenant, *n),
	})
	n.Attempts++

	if err != nil {
		next := now.Add(d.Backoff(n.Attempts))
		n.NextAttemptAt = &next
		n.LastError = err.Error()
		metrics.WebhookDeliveriesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		d.log.Warn("webhook delivery failed",
			zap.String("tenant_id", tenant.ID),
			zap.String("notification_id", n.ID),
			zap.Int("attempts", n.Attempts),
			zap.Time("next_attempt_at", next),
			zap.Error(err))
		return false
	}

	n.Delivered = true
	n.NextAttemptAt = nil
	n.LastError = ""
	metrics.WebhookDeliveriesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	d.log.Info("webhook delivered",
		zap.String("tenant_id", tenant.ID),
		zap.String("notification_id", n.ID),
		zap.Int("attempts", n.Attempts))
	return true
}

func (d *Dispatcher) RetryPending(ctx context.Context, states []*tenantdomain.TenantState, now time.Time) domain.RetryResult {
	var res domain.RetryResult
	for _, state := range states {
		if state.Tenant.WebhookURL == "" {
			continue
		}
		for i := range state.Notifications {
			if ctx.Err() != nil {
				return res
			}
			n := &state.Notifications[i]
			if n.Delivered {
				continue
			}
			if n.NextAttemptAt != nil && n.NextAttemptAt.After(now) {
				continue
			}

			res.Attempted++
			if d.Dispatch(ctx, state.Tenant, n, now) {
				res.Delivered++
			}
		}
	}
	return res
}

// Backoff returns the delay before the next attempt after the given number
// of failed attempts: capped exponential growth from InitialBackoff with
// Jitter as the randomization factor.
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.MaxInterval = d.cfg.MaxBackoff
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = d.cfg.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < min(attempts, maxBackoffSteps); i++ {
		delay = b.NextBackOff()
	}
	return delay
}
