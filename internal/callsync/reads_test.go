package callsync

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/metrics"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalls_RefreshSyncsFirst(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60), call("b", testNow.Add(-time.Minute), 60)), nil
	}

	calls, err := h.orch.Calls(context.Background(), "t1", false)
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Empty(t, h.provider.Requests())

	calls, err = h.orch.Calls(context.Background(), "t1", true)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "b", calls[0].ID)

	// callers get copies
	calls[0].ID = "mutated"
	again, err := h.orch.Calls(context.Background(), "t1", false)
	require.NoError(t, err)
	assert.Equal(t, "b", again[0].ID)
}

func TestAllCalls_SinceFilterAndOrder(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.addTenant(t, "t2", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("recent", testNow.Add(-time.Hour), 60), call("older", testNow.Add(-48*time.Hour), 60)), nil
	}

	all, err := h.orch.AllCalls(context.Background(), nil, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "recent", all[0].ID)
	assert.Equal(t, "recent", all[1].ID)
	assert.NotEqual(t, all[0].TenantID, all[1].TenantID)

	since := testNow.Add(-24 * time.Hour)
	recent, err := h.orch.AllCalls(context.Background(), &since, false)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, rec := range recent {
		assert.Equal(t, "recent", rec.ID)
	}
}

func TestStats_CurrentCycle(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		records := cycleCalls()
		records[1].EndReason = callsdomain.EndReasonSilenceTimeout
		return page(records...), nil
	}
	_, err := h.orch.SyncTenant(context.Background(), "t1")
	require.NoError(t, err)

	stats, err := h.orch.Stats(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCalls)
	assert.Equal(t, 85.0, stats.TotalMinutes)
	assert.Equal(t, 2, stats.ReasonCounts[callsdomain.EndReasonCustomerEnded])
	assert.Equal(t, 1, stats.ReasonCounts[callsdomain.EndReasonSilenceTimeout])
}

func TestNotify_PersistsAndDelivers(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)

	n, err := h.orch.Notify(context.Background(), "t1", "Overages Enabled", "Calls continue past your limit.", tenantdomain.NotificationInfo)
	require.NoError(t, err)
	assert.True(t, n.Delivered)
	assert.EqualValues(t, 1, h.hooks.hits.Load())

	list, err := h.orch.Notifications(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)

	_, err = h.orch.Notify(context.Background(), "t1", "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidNotification)

	_, err = h.orch.Notify(context.Background(), "missing", "x", "", "")
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}

func TestNotify_FailedDeliveryStaysPending(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.hooks.status.Store(http.StatusBadGateway)

	n, err := h.orch.Notify(context.Background(), "t1", "Overages Enabled", "", tenantdomain.NotificationInfo)
	require.NoError(t, err)
	assert.False(t, n.Delivered)
	require.NotNil(t, n.NextAttemptAt)
	assert.True(t, n.NextAttemptAt.Equal(testNow.Add(30*time.Second)))
}

func TestDeleteTenant_DropsCache(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}
	_, err := h.orch.Calls(context.Background(), "t1", true)
	require.NoError(t, err)

	require.NoError(t, h.orch.DeleteTenant(context.Background(), "t1"))

	_, err = h.orch.Calls(context.Background(), "t1", false)
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}

func TestDeleteTenant_DropsUsageGauge(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "gauge-t1", true)
	h.provider.respond = func(req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
		return page(call("a", testNow.Add(-time.Hour), 60)), nil
	}
	_, err := h.orch.SyncTenant(context.Background(), "gauge-t1")
	require.NoError(t, err)

	require.NoError(t, h.orch.DeleteTenant(context.Background(), "gauge-t1"))

	// false means the series was already gone
	assert.False(t, metrics.TenantUsedMinutes.DeleteLabelValues("gauge-t1"))
}

// gatedStore parks the first Load until release is closed.
type gatedStore struct {
	tenantdomain.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, tenantID string) (*tenantdomain.TenantState, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Store.Load(ctx, tenantID)
}

func TestDeleteTenant_RacingReadCannotRefillCache(t *testing.T) {
	h := newHarness(t, 500, 5000)
	h.addTenant(t, "t1", true)
	gated := &gatedStore{Store: h.store, entered: make(chan struct{}), release: make(chan struct{})}
	h.orch.store = gated

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = h.orch.Calls(context.Background(), "t1", false)
	}()
	<-gated.entered

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- h.orch.DeleteTenant(context.Background(), "t1") }()
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	<-readDone
	require.NoError(t, <-deleteDone)

	_, cached := h.orch.cache.Get("t1")
	assert.False(t, cached)
	_, err := h.orch.Calls(context.Background(), "t1", false)
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}
