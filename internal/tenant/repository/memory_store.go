package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/clock"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

// MemoryStore is a process-local Store. Every read returns a deep copy, so
// callers may mutate what they get back.
type MemoryStore struct {
	mu     sync.RWMutex
	clock  clock.Clock
	states map[string]*tenantdomain.TenantState
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:  clk,
		states: make(map[string]*tenantdomain.TenantState),
	}
}

func (s *MemoryStore) ListTenants(ctx context.Context) ([]tenantdomain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tenantdomain.Tenant, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.Tenant)
	}
	sortTenants(out)
	return out, nil
}

func (s *MemoryStore) Load(ctx context.Context, tenantID string) (*tenantdomain.TenantState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[tenantID]
	if !ok {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, state *tenantdomain.TenantState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[state.Tenant.ID]
	if !ok {
		return tenantdomain.ErrTenantNotFound
	}
	if current.Version != state.Version {
		return tenantdomain.ErrVersionConflict
	}

	next := state.Clone()
	// admin-owned fields stay as stored
	usage := next.Tenant.UsedMinutes
	next.Tenant = current.Tenant
	next.Tenant.UsedMinutes = usage
	next.Cache.TenantID = current.Tenant.ID
	next.Version = current.Version + 1

	s.states[state.Tenant.ID] = next
	state.Version = next.Version
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context) (*tenantdomain.Document, error) {
	tenants, _ := s.ListTenants(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := &tenantdomain.Document{}
	for _, t := range tenants {
		if st, ok := s.states[t.ID]; ok {
			doc.Tenants = append(doc.Tenants, st.Clone())
		}
	}
	return doc, nil
}

func (s *MemoryStore) UpsertTenant(ctx context.Context, tenant tenantdomain.Tenant) error {
	if err := validateTenant(tenant); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.states[tenant.ID]; ok {
		tenant.CreatedAt = current.Tenant.CreatedAt
		tenant.UsedMinutes = current.Tenant.UsedMinutes
		current.Tenant = tenant
		return nil
	}

	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = s.clock.Now()
	}
	tenant.CreatedAt = tenant.CreatedAt.UTC()
	s.states[tenant.ID] = &tenantdomain.TenantState{
		Tenant: tenant,
		Cache:  callsdomain.CacheEntry{TenantID: tenant.ID},
	}
	return nil
}

func (s *MemoryStore) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[tenantID]; !ok {
		return tenantdomain.ErrTenantNotFound
	}
	delete(s.states, tenantID)
	return nil
}

func sortTenants(ts []tenantdomain.Tenant) {
	slices.SortFunc(ts, func(a, b tenantdomain.Tenant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
