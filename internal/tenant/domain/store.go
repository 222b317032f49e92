package domain

import (
	"context"
	"errors"
)

var (
	ErrTenantNotFound  = errors.New("tenant_not_found")
	ErrVersionConflict = errors.New("tenant_version_conflict")
	ErrInvalidTenant   = errors.New("invalid_tenant")
)

// Store persists tenant aggregates. Save writes the complete state of one
// tenant atomically and fails with ErrVersionConflict when the stored
// version no longer matches state.Version.
type Store interface {
	ListTenants(ctx context.Context) ([]Tenant, error)
	Load(ctx context.Context, tenantID string) (*TenantState, error)
	Save(ctx context.Context, state *TenantState) error
	Snapshot(ctx context.Context) (*Document, error)

	UpsertTenant(ctx context.Context, tenant Tenant) error
	DeleteTenant(ctx context.Context, tenantID string) error
}
