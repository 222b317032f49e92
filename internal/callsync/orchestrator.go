package callsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/callsync/internal/callcache"
	"github.com/railzwaylabs/callsync/internal/clock"
	integrationdomain "github.com/railzwaylabs/callsync/internal/integration/domain"
	"github.com/railzwaylabs/callsync/internal/metrics"
	"github.com/railzwaylabs/callsync/internal/provider/paginator"
	quotadomain "github.com/railzwaylabs/callsync/internal/quota/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	usagedomain "github.com/railzwaylabs/callsync/internal/usage/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/railzwaylabs/callsync/internal/callsync")

// Fetcher pulls call records from the provider.
type Fetcher interface {
	Fetch(ctx context.Context, apiKey string, totalLimit int, since time.Time) (paginator.FetchResult, error)
}

type Params struct {
	fx.In

	Config     Config
	Log        *zap.Logger
	Clock      clock.Clock
	Store      tenantdomain.Store
	Fetcher    Fetcher
	Reconciler usagedomain.Reconciler
	Notifier   quotadomain.Service
	Dispatcher integrationdomain.Service
	Cache      *callcache.Cache
	Locker     Locker
}

// Orchestrator runs sync cycles: fetch, merge, reconcile, notify, persist.
// Cycles of one tenant never overlap; different tenants run in parallel.
type Orchestrator struct {
	cfg        Config
	log        *zap.Logger
	clock      clock.Clock
	store      tenantdomain.Store
	fetcher    Fetcher
	reconciler usagedomain.Reconciler
	notifier   quotadomain.Service
	dispatcher integrationdomain.Service
	cache      *callcache.Cache
	locker     Locker
}

func NewOrchestrator(p Params) *Orchestrator {
	return &Orchestrator{
		cfg:        p.Config.withDefaults(),
		log:        p.Log.Named("callsync.orchestrator"),
		clock:      p.Clock,
		store:      p.Store,
		fetcher:    p.Fetcher,
		reconciler: p.Reconciler,
		notifier:   p.Notifier,
		dispatcher: p.Dispatcher,
		cache:      p.Cache,
		locker:     p.Locker,
	}
}

// SyncTenant runs one cycle for tenantID. The returned error is reserved for
// infrastructure failures (unknown tenant, lock, store); provider failures
// are reported through SyncResult.Err.
func (o *Orchestrator) SyncTenant(ctx context.Context, tenantID string) (SyncResult, error) {
	res := SyncResult{
		TenantID: tenantID,
		RunID:    ulid.Make().String(),
		Final:    StateIdle,
	}
	started := time.Now()

	ctx, span := tracer.Start(ctx, "callsync.SyncTenant", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("run.id", res.RunID),
	))
	defer span.End()

	if o.cfg.TenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TenantTimeout)
		defer cancel()
	}

	log := o.log.With(zap.String("tenant_id", tenantID), zap.String("run_id", res.RunID))

	err := o.withTenantLock(ctx, tenantID, func() error {
		return o.runCycle(ctx, log, span, &res)
	})

	res.Duration = time.Since(started)
	metrics.SyncDuration.Observe(res.Duration.Seconds())
	metrics.SyncRunsTotal.WithLabelValues(resultLabel(res, err)).Inc()

	if err != nil {
		res.Final = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("sync cycle aborted", zap.Error(err))
		return res, err
	}
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}

	log.Info("sync cycle finished",
		zap.String("final", string(res.Final)),
		zap.Int("fetched", res.Fetched),
		zap.Int("cached", res.CacheSize),
		zap.Float64("used_minutes", res.UsedMinutes),
		zap.Bool("degraded", res.Degraded),
		zap.Int("delivered", res.Delivered),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (o *Orchestrator) runCycle(ctx context.Context, log *zap.Logger, span trace.Span, res *SyncResult) error {
	state, err := o.store.Load(ctx, res.TenantID)
	if err != nil {
		return err
	}
	now := o.clock.Now()
	res.UsedMinutes = state.Tenant.UsedMinutes

	retry := o.dispatcher.RetryPending(ctx, []*tenantdomain.TenantState{state}, now)
	res.Retried = retry.Attempted
	res.Delivered += retry.Delivered
	dirty := retry.Attempted > 0

	enter := func(s State) {
		res.enter(s)
		span.AddEvent("state", trace.WithAttributes(attribute.String("state", string(s))))
	}

	if !state.Tenant.HasProviderKey() {
		log.Debug("tenant has no provider api key, skipping fetch")
	} else {
		enter(StateFetching)
		since := callcache.FetchSince(state.Cache, o.cfg.Overlap, o.cfg.EpochFloor)
		fetched, err := o.fetcher.Fetch(ctx, state.Tenant.ProviderAPIKey, o.cfg.TotalLimit, since)
		res.Pages = fetched.Pages
		metrics.ProviderPagesTotal.Add(float64(fetched.Pages))
		metrics.RecordsFetchedTotal.Add(float64(len(fetched.Records)))
		if fetched.Retried {
			metrics.RetentionFallbacksTotal.Inc()
		}

		if err != nil {
			enter(StateFailed)
			res.Final = StateFailed
			res.Err = err
			log.Error("fetch failed, keeping cached calls",
				zap.Time("since", since),
				zap.Int("discarded", len(fetched.Records)),
				zap.Error(err))
		} else {
			res.Fetched = len(fetched.Records)
			if fetched.Degraded {
				res.Degraded = true
				metrics.RetentionDegradedTotal.Inc()
				log.Warn("fetch degraded by retention limit, merging partial result",
					zap.Int("records", len(fetched.Records)))
			}

			enter(StateMerging)
			merged, changed := callcache.Merge(state.Cache, fetched.Records, now)
			state.Cache = merged
			res.CacheChanged = changed
			dirty = dirty || changed

			enter(StateReconciling)
			used, usageChanged := o.reconciler.Reconcile(&state.Tenant, state.Cache.Records, now)
			res.UsedMinutes = used
			res.UsageChanged = usageChanged
			dirty = dirty || usageChanged
			metrics.TenantUsedMinutes.WithLabelValues(res.TenantID).Set(used)

			enter(StateNotifying)
			if n, ok := o.notifier.Evaluate(state, now); ok {
				dirty = true
				if o.dispatcher.Dispatch(ctx, state.Tenant, n, now) {
					res.Delivered++
				}
				created := *n
				res.Notification = &created
			}
		}
	}
	res.CacheSize = len(state.Cache.Records)

	if dirty {
		enter(StatePersisting)
		if err := o.store.Save(ctx, state); err != nil {
			return fmt.Errorf("persist tenant state: %w", err)
		}
		res.Persisted = true
	}
	o.cache.Put(state.Cache)

	if res.Final != StateFailed {
		enter(StateIdle)
	}
	return nil
}

// SyncAll runs SyncTenant for every tenant on a bounded worker pool. One
// tenant's failure never stops the others; infrastructure errors are joined
// into the returned error.
func (o *Orchestrator) SyncAll(ctx context.Context) (SweepResult, error) {
	sweep := SweepResult{RunID: ulid.Make().String()}

	ctx, span := tracer.Start(ctx, "callsync.SyncAll", trace.WithAttributes(
		attribute.String("run.id", sweep.RunID),
	))
	defer span.End()

	tenants, err := o.store.ListTenants(ctx)
	if err != nil {
		return sweep, fmt.Errorf("list tenants: %w", err)
	}
	sweep.Tenants = len(tenants)
	sweep.Results = make([]SyncResult, len(tenants))

	errs := make([]error, len(tenants))
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for i, t := range tenants {
		g.Go(func() error {
			res, err := o.SyncTenant(ctx, t.ID)
			sweep.Results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("tenant %s: %w", t.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range sweep.Results {
		if errs[i] != nil || res.Final == StateFailed {
			sweep.Failed++
		} else {
			sweep.Succeeded++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.tenants", sweep.Tenants),
		attribute.Int("sweep.failed", sweep.Failed),
	)
	return sweep, errors.Join(errs...)
}

func (o *Orchestrator) withTenantLock(ctx context.Context, tenantID string, fn func() error) error {
	unlock, err := o.locker.Lock(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("lock tenant %s: %w", tenantID, err)
	}
	defer unlock()
	return fn()
}

func resultLabel(res SyncResult, err error) string {
	switch {
	case err != nil, res.Final == StateFailed:
		return metrics.ResultFailed
	case res.Degraded:
		return metrics.ResultDegraded
	case len(res.States) == 1:
		// only Idle: nothing to fetch
		return metrics.ResultSkipped
	default:
		return metrics.ResultSuccess
	}
}
