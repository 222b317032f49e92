package callsync

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	quotadomain "github.com/railzwaylabs/callsync/internal/quota/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycleCalls() []callsdomain.CallRecord {
	return []callsdomain.CallRecord{
		call("c3", testNow.Add(-time.Hour), 3000),
		call("c2", testNow.Add(-24*time.Hour), 1800),
		call("c1", time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC), 300),
		call("old", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), 6000),
	}
}

func TestSyncTenant_FirstSyncRunsFullCycle(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(cycleCalls()...), nil
	}

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, []State{StateFetching, StateMerging, StateReconciling, StateNotifying, StatePersisting, StateIdle}, res.States)
	assert.Equal(t, StateIdle, res.Final)
	assert.Equal(t, 4, res.Fetched)
	assert.True(t, res.CacheChanged)
	assert.Equal(t, 85.0, res.UsedMinutes)
	assert.True(t, res.UsageChanged)
	assert.True(t, res.Persisted)
	assert.NotEmpty(t, res.RunID)

	reqs := h.provider.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].StartedAfter)
	assert.True(t, reqs[0].StartedAfter.Equal(testFloor))
	assert.Nil(t, reqs[0].StartedBefore)

	require.NotNil(t, res.Notification)
	assert.Equal(t, quotadomain.TitleUsageWarning, res.Notification.Title)
	assert.Equal(t, "You have used 85% of your monthly minute limit. Please top up.", res.Notification.Message)
	assert.True(t, res.Notification.Delivered)
	assert.Equal(t, 1, res.Delivered)
	assert.EqualValues(t, 1, h.hooks.hits.Load())

	state, err := h.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 85.0, state.Tenant.UsedMinutes)
	assert.True(t, state.Cache.LastSyncWatermark.Equal(testNow))
	require.Len(t, state.Cache.Records, 4)
	assert.Equal(t, "c3", state.Cache.Records[0].ID)
	assert.Equal(t, "t1", state.Cache.Records[0].TenantID)
	require.Len(t, state.Notifications, 1)
	assert.True(t, state.Notifications[0].Delivered)
	assert.EqualValues(t, 1, state.Version)
}

func TestSyncTenant_IncrementalEmptyFetchLeavesStateAlone(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(cycleCalls()...), nil
	}
	_, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(), nil
	}

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []State{StateFetching, StateMerging, StateReconciling, StateNotifying, StateIdle}, res.States)
	assert.False(t, res.CacheChanged)
	assert.False(t, res.UsageChanged)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.Notification, "warning is deduplicated within 24h")

	reqs := h.provider.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[1].StartedAfter.Equal(testNow.Add(-time.Hour)))

	state, err := h.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, state.Version)
	assert.True(t, state.Cache.LastSyncWatermark.Equal(testNow))
	assert.Len(t, state.Notifications, 1)
}

func TestSyncTenant_FetchFailureKeepsCache(t *testing.T) {
	h := newHarness(t, 2, 10)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}
	_, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)

	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		if req.StartedBefore == nil {
			return page(call("b", testNow.Add(-time.Minute), 60), call("c", testNow.Add(-2*time.Minute), 60)), nil
		}
		return providerdomain.Page{}, providerdomain.ErrRequestFailed
	}

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, providerdomain.ErrRequestFailed)
	assert.Equal(t, StateFailed, res.Final)
	assert.Equal(t, []State{StateFetching, StateFailed}, res.States)
	assert.False(t, res.Persisted)

	calls, err := h.orch.Calls(context.Background(), "t1", false)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].ID)
}

func TestSyncTenant_FailedCyclePersistsRetriedWebhooks(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)

	h.hooks.status.Store(http.StatusInternalServerError)
	_, err := h.orch.Notify(context.Background(), "t1", "Payment Verified", "Thanks", tenantdomain.NotificationSuccess)
	require.NoError(t, err)

	state, err := h.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, state.Notifications, 1)
	assert.False(t, state.Notifications[0].Delivered)
	assert.Equal(t, 1, state.Notifications[0].Attempts)

	h.hooks.status.Store(http.StatusOK)
	h.clock.Advance(time.Minute)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return providerdomain.Page{}, providerdomain.ErrRequestFailed
	}

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []State{StateFetching, StateFailed, StatePersisting}, res.States)
	assert.Equal(t, StateFailed, res.Final)
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, 1, res.Delivered)

	state, err = h.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, state.Notifications[0].Delivered)
	assert.EqualValues(t, 2, h.hooks.hits.Load())

	// delivered notifications are never re-sent
	_, err = h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, h.hooks.hits.Load())
}

func TestSyncTenant_WithoutAPIKeySkipsFetch(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", false)

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []State{StateIdle}, res.States)
	assert.Empty(t, h.provider.Requests())
	assert.Equal(t, "skipped", resultLabel(res, nil))
}

func TestSyncTenant_RetentionDegradedMergesPartial(t *testing.T) {
	h := newHarness(t, 2, 4)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		switch {
		case req.StartedAfter != nil && req.StartedAfter.Equal(testFloor):
			return providerdomain.Page{}, providerdomain.ErrRetentionLimit
		case req.StartedBefore == nil:
			return page(call("x", testNow.Add(-time.Hour), 60), call("y", testNow.Add(-2*time.Hour), 60)), nil
		default:
			return providerdomain.Page{}, providerdomain.ErrRetentionLimit
		}
	}

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.True(t, res.Degraded)
	assert.Equal(t, StateIdle, res.Final)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2.0, res.UsedMinutes)
	assert.Equal(t, "degraded", resultLabel(res, nil))

	reqs := h.provider.Requests()
	require.Len(t, reqs, 3)
	assert.True(t, reqs[1].StartedAfter.Equal(testNow.Add(-14*24*time.Hour)))
}

func TestSyncTenant_UnknownTenant(t *testing.T) {
	h := newHarness(t, 500, 5000)

	res, err := h.orch.SyncTenant(context.Background(), "nope")
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
	assert.Equal(t, StateFailed, res.Final)
}

func TestSyncTenant_SameTenantNeverOverlaps(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.delay = 20 * time.Millisecond
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.SyncTenant(context.Background(), "t1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, h.provider.maxInFlight.Load())
	assert.Len(t, h.provider.Requests(), 4)
}

func TestSyncTenant_ContendedLockTimesOut(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.orch.cfg.TenantTimeout = 50 * time.Millisecond
	h.provider.delay = 300 * time.Millisecond
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.SyncTenant(context.Background(), "t1")
	}()
	require.Eventually(t, func() bool { return h.provider.inFlight.Load() == 1 },
		time.Second, time.Millisecond)

	res, err := h.orch.SyncTenant(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, StateFailed, res.Final)
	<-done

	assert.Len(t, h.provider.Requests(), 1)
}

func TestSyncAll_RunsEveryTenant(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.addTenant(t, "t2", true)
	h.addTenant(t, "t3", false)
	h.provider.delay = 20 * time.Millisecond
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}

	sweep, err := h.orch.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sweep.Tenants)
	assert.Equal(t, 3, sweep.Succeeded)
	assert.Zero(t, sweep.Failed)
	assert.NotEmpty(t, sweep.RunID)
	assert.LessOrEqual(t, h.provider.maxInFlight.Load(), int32(2))

	for _, id := range []string{"t1", "t2"} {
		state, err := h.store.Load(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, state.Cache.Records, 1)
		assert.Equal(t, id, state.Cache.Records[0].TenantID)
	}
}

func TestSyncAll_CountsFailures(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.addTenant(t, "t2", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return providerdomain.Page{}, providerdomain.ErrRequestFailed
	}

	sweep, err := h.orch.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sweep.Failed)
	assert.Zero(t, sweep.Succeeded)
}
