package domain

import (
	"context"
	"errors"
	"time"

	"github.com/railzwaylabs/callsync/internal/config"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

var (
	ErrMissingWebhookURL = errors.New("missing_webhook_url")
	ErrDeliveryFailed    = errors.New("webhook_delivery_failed")
)

const EventNotification = "notification"

// Envelope is the JSON body POSTed to a tenant webhook. ID is stable across
// retries and receivers must use it to de-duplicate.
type Envelope struct {
	Event            string                        `json:"event"`
	NotificationType tenantdomain.NotificationKind `json:"notification_type"`
	TenantID         string                        `json:"tenant_id"`
	TenantName       string                        `json:"tenant_name"`
	ID               string                        `json:"id"`
	Timestamp        time.Time                     `json:"timestamp"`
	Title            string                        `json:"title"`
	Message          string                        `json:"message"`
	Read             bool                          `json:"read"`
}

func NewEnvelope(tenant tenantdomain.Tenant, n tenantdomain.Notification) Envelope {
	return Envelope{
		Event:            EventNotification,
		NotificationType: n.Kind,
		TenantID:         tenant.ID,
		TenantName:       tenant.Name,
		ID:               n.ID,
		Timestamp:        n.CreatedAt,
		Title:            n.Title,
		Message:          n.Message,
		Read:             n.Read,
	}
}

type Config struct {
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
}

func FromConfig(cfg config.Config) Config {
	return Config{
		Timeout:        cfg.Webhook.Timeout,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
		Jitter:         cfg.Webhook.Jitter,
	}
}

// RetryResult summarises one retry sweep. Attempted counts POSTs made, so a
// non-zero value means notifications were mutated.
type RetryResult struct {
	Attempted int
	Delivered int
}

type Service interface {
	// Dispatch makes one delivery attempt for n and records the outcome on
	// it. It never returns an error; false means n is still pending.
	Dispatch(ctx context.Context, tenant tenantdomain.Tenant, n *tenantdomain.Notification, now time.Time) bool

	// RetryPending re-attempts every undelivered notification whose backoff
	// has elapsed, for tenants that have a webhook URL.
	RetryPending(ctx context.Context, states []*tenantdomain.TenantState, now time.Time) RetryResult
}
