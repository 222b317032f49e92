package callsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/callsync/internal/callcache"
	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/clock"
	integrationdomain "github.com/railzwaylabs/callsync/internal/integration/domain"
	"github.com/railzwaylabs/callsync/internal/integration/provider/webhook"
	integrationservice "github.com/railzwaylabs/callsync/internal/integration/service"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	"github.com/railzwaylabs/callsync/internal/provider/paginator"
	quotadomain "github.com/railzwaylabs/callsync/internal/quota/domain"
	quotaservice "github.com/railzwaylabs/callsync/internal/quota/service"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"github.com/railzwaylabs/callsync/internal/tenant/repository"
	usageservice "github.com/railzwaylabs/callsync/internal/usage/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow   = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	testFloor = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// fakeProvider answers ListCalls with a scripted function and records every
// request it receives.
type fakeProvider struct {
	mu       sync.Mutex
	requests []providerdomain.ListCallsRequest
	respond  func(req providerdomain.ListCallsRequest) (providerdomain.Page, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeProvider) ListCalls(ctx context.Context, apiKey string, req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return providerdomain.Page{}, nil
	}
	return respond(req)
}

func (f *fakeProvider) Requests() []providerdomain.ListCallsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providerdomain.ListCallsRequest(nil), f.requests...)
}

func page(records ...callsdomain.CallRecord) providerdomain.Page {
	return providerdomain.Page{Calls: records, Received: len(records)}
}

type hookServer struct {
	*httptest.Server
	hits   atomic.Int32
	status atomic.Int32
}

func newHookServer(t *testing.T) *hookServer {
	t.Helper()
	h := &hookServer{}
	h.status.Store(http.StatusOK)
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		w.WriteHeader(int(h.status.Load()))
	}))
	t.Cleanup(h.Close)
	return h
}

type harness struct {
	orch     *Orchestrator
	store    *repository.MemoryStore
	provider *fakeProvider
	clock    *clock.Mock
	hooks    *hookServer
}

func newHarness(t *testing.T, pageSize, totalLimit int) *harness {
	t.Helper()

	log := zap.NewNop()
	clk := clock.NewMock(testNow)
	store := repository.NewMemoryStore(clk)
	provider := &fakeProvider{}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	quotaCfg := quotadomain.DefaultConfig()

	cache, err := callcache.New(16)
	require.NoError(t, err)

	dispatcher := integrationservice.NewDispatcher(integrationservice.DispatcherParam{
		Log:      log,
		Config:   integrationdomain.Config{InitialBackoff: 30 * time.Second, MaxBackoff: time.Hour},
		Provider: webhook.NewProvider(integrationdomain.Config{Timeout: 2 * time.Second}),
	})

	orch := NewOrchestrator(Params{
		Config: Config{
			TotalLimit: totalLimit,
			Overlap:    time.Hour,
			EpochFloor: testFloor,
			Workers:    2,
		},
		Log:        log,
		Clock:      clk,
		Store:      store,
		Fetcher:    paginator.New(provider, clk, paginator.Config{PageSize: pageSize}, log),
		Reconciler: usageservice.NewReconciler(log),
		Notifier:   quotaservice.NewService(quotaservice.ServiceParam{Log: log, Config: &quotaCfg, GenID: node}),
		Dispatcher: dispatcher,
		Cache:      cache,
		Locker:     NewLocker(nil, time.Minute, log),
	})

	return &harness{
		orch:     orch,
		store:    store,
		provider: provider,
		clock:    clk,
		hooks:    newHookServer(t),
	}
}

func (h *harness) addTenant(t *testing.T, id string, withKey bool) {
	t.Helper()
	tenant := tenantdomain.Tenant{
		ID:          id,
		Name:        "Tenant " + id,
		CreatedAt:   time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
		MinuteLimit: 100,
		WebhookURL:  h.hooks.URL,
	}
	if withKey {
		tenant.ProviderAPIKey = "key-" + id
	}
	require.NoError(t, h.store.UpsertTenant(context.Background(), tenant))
}

func call(id string, startedAt time.Time, seconds float64) callsdomain.CallRecord {
	return callsdomain.CallRecord{
		ID:              id,
		StartedAt:       startedAt,
		DurationSeconds: seconds,
		EndReason:       callsdomain.EndReasonCustomerEnded,
		Status:          callsdomain.CallStatusCompleted,
	}
}
