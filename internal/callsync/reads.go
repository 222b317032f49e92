package callsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/railzwaylabs/callsync/internal/callcache"
	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/metrics"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	usagedomain "github.com/railzwaylabs/callsync/internal/usage/domain"
	"go.uber.org/zap"
)

var ErrInvalidNotification = errors.New("invalid_notification")

// Calls returns the cached history of a tenant, newest first. With refresh
// the tenant is synced first; a failed fetch still serves the cache.
func (o *Orchestrator) Calls(ctx context.Context, tenantID string, refresh bool) ([]callsdomain.CallRecord, error) {
	if refresh {
		if _, err := o.SyncTenant(ctx, tenantID); err != nil {
			return nil, err
		}
	}

	entry, err := o.entry(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return entry.Records, nil
}

// AllCalls merges the histories of every tenant, newest first, keeping calls
// that started at or after since when it is set.
func (o *Orchestrator) AllCalls(ctx context.Context, since *time.Time, refresh bool) ([]callsdomain.CallRecord, error) {
	if refresh {
		if _, err := o.SyncAll(ctx); err != nil {
			o.log.Warn("refresh before listing all calls was incomplete", zap.Error(err))
		}
	}

	doc, err := o.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var out []callsdomain.CallRecord
	for _, state := range doc.Tenants {
		for _, rec := range state.Cache.Records {
			if since != nil && rec.StartedAt.Before(*since) {
				continue
			}
			out = append(out, rec)
		}
	}
	callcache.SortNewestFirst(out)
	return out, nil
}

// Stats summarises the current billing cycle of a tenant from its cache.
func (o *Orchestrator) Stats(ctx context.Context, tenantID string) (usagedomain.Stats, error) {
	state, err := o.store.Load(ctx, tenantID)
	if err != nil {
		return usagedomain.Stats{}, err
	}
	return o.reconciler.CycleStats(state.Tenant, state.Cache.Records, o.clock.Now()), nil
}

func (o *Orchestrator) Notifications(ctx context.Context, tenantID string) ([]tenantdomain.Notification, error) {
	state, err := o.store.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return state.Notifications, nil
}

// Notify raises a notification for a tenant outside the threshold rule and
// makes one immediate delivery attempt. The notification is persisted either
// way; undelivered ones are retried by later sync cycles.
func (o *Orchestrator) Notify(ctx context.Context, tenantID, title, message string, kind tenantdomain.NotificationKind) (tenantdomain.Notification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return tenantdomain.Notification{}, ErrInvalidNotification
	}
	if kind == "" {
		kind = tenantdomain.NotificationInfo
	}

	var created tenantdomain.Notification
	err := o.withTenantLock(ctx, tenantID, func() error {
		state, err := o.store.Load(ctx, tenantID)
		if err != nil {
			return err
		}

		now := o.clock.Now()
		n := o.notifier.Add(state, title, message, kind, now)
		o.dispatcher.Dispatch(ctx, state.Tenant, n, now)
		created = *n

		return o.store.Save(ctx, state)
	})
	if err != nil {
		return tenantdomain.Notification{}, err
	}

	o.log.Info("notification raised",
		zap.String("tenant_id", tenantID),
		zap.String("notification_id", created.ID),
		zap.String("title", created.Title),
		zap.Bool("delivered", created.Delivered))
	return created, nil
}

// DeleteTenant removes a tenant together with its cached calls and
// notifications.
func (o *Orchestrator) DeleteTenant(ctx context.Context, tenantID string) error {
	return o.withTenantLock(ctx, tenantID, func() error {
		if err := o.store.DeleteTenant(ctx, tenantID); err != nil {
			return err
		}
		o.cache.Invalidate(tenantID)
		metrics.TenantUsedMinutes.DeleteLabelValues(tenantID)
		return nil
	})
}

func (o *Orchestrator) entry(ctx context.Context, tenantID string) (callsdomain.CacheEntry, error) {
	if entry, ok := o.cache.Get(tenantID); ok {
		return entry, nil
	}

	// filled under the tenant lock so a concurrent delete cannot be undone
	var entry callsdomain.CacheEntry
	err := o.withTenantLock(ctx, tenantID, func() error {
		if cached, ok := o.cache.Get(tenantID); ok {
			entry = cached
			return nil
		}
		state, err := o.store.Load(ctx, tenantID)
		if err != nil {
			return err
		}
		o.cache.Put(state.Cache)
		entry = state.Cache
		return nil
	})
	return entry, err
}
