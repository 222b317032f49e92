package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railzwaylabs/callsync/internal/clock"
	"github.com/railzwaylabs/callsync/internal/security/vault"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recordBatchSize = 200

type StoreParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Vault vault.Provider
	Clock clock.Clock
}

// GormStore keeps each tenant in its own rows: the tenant row carries the
// usage, the watermark and the optimistic version; call records and
// notifications hang off it by tenant_id.
type GormStore struct {
	db    *gorm.DB
	log   *zap.Logger
	vault vault.Provider
	clock clock.Clock
}

func NewGormStore(p StoreParam) *GormStore {
	return &GormStore{
		db:    p.DB,
		log:   p.Log.Named("tenant.repository"),
		vault: p.Vault,
		clock: p.Clock,
	}
}

// Migrate creates or updates the tables backing the store.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&tenantRow{}, &callRecordRow{}, &notificationRow{})
}

func (s *GormStore) ListTenants(ctx context.Context) ([]tenantdomain.Tenant, error) {
	var rows []tenantRow
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]tenantdomain.Tenant, 0, len(rows))
	for _, row := range rows {
		t, err := s.toTenant(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *GormStore) Load(ctx context.Context, tenantID string) (*tenantdomain.TenantState, error) {
	return s.load(s.db.WithContext(ctx), tenantID)
}

func (s *GormStore) load(tx *gorm.DB, tenantID string) (*tenantdomain.TenantState, error) {
	var row tenantRow
	if err := tx.Where("id = ?", tenantID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenantdomain.ErrTenantNotFound
		}
		return nil, err
	}

	tenant, err := s.toTenant(row)
	if err != nil {
		return nil, err
	}

	var records []callRecordRow
	if err := tx.Where("tenant_id = ?", tenantID).
		Order("started_at DESC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	var notifications []notificationRow
	if err := tx.Where("tenant_id = ?", tenantID).
		Order("position ASC").
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	state := &tenantdomain.TenantState{
		Tenant:  tenant,
		Version: row.Version,
	}
	state.Cache.TenantID = tenantID
	if row.LastSyncWatermark != nil {
		state.Cache.LastSyncWatermark = row.LastSyncWatermark.UTC()
	}
	for _, r := range records {
		state.Cache.Records = append(state.Cache.Records, r.toDomain())
	}
	for _, n := range notifications {
		state.Notifications = append(state.Notifications, n.toDomain())
	}
	return state, nil
}

// Save writes usage, watermark, call records and notifications of one tenant
// in a single transaction. Admin-owned tenant fields are never written here.
func (s *GormStore) Save(ctx context.Context, state *tenantdomain.TenantState) error {
	tenantID := state.Tenant.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current tenantRow
		if err := tx.Select("id", "version", "last_sync_watermark").
			Where("id = ?", tenantID).
			Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tenantdomain.ErrTenantNotFound
			}
			return err
		}
		if current.Version != state.Version {
			return tenantdomain.ErrVersionConflict
		}

		updates := map[string]any{
			"used_minutes": state.Tenant.UsedMinutes,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   s.clock.Now(),
		}
		if state.Cache.HasSynced() {
			updates["last_sync_watermark"] = state.Cache.LastSyncWatermark.UTC()
		}

		res := tx.Model(&tenantRow{}).
			Where("id = ? AND version = ?", tenantID, state.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tenantdomain.ErrVersionConflict
		}

		if watermarkMoved(current.LastSyncWatermark, state.Cache.LastSyncWatermark) && len(state.Cache.Records) > 0 {
			rows := toCallRecordRows(tenantID, state.Cache.Records)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "id"}},
				UpdateAll: true,
			}).CreateInBatches(rows, recordBatchSize).Error; err != nil {
				return fmt.Errorf("upsert call records: %w", err)
			}
		}

		if err := tx.Where("tenant_id = ?", tenantID).Delete(&notificationRow{}).Error; err != nil {
			return err
		}
		if len(state.Notifications) > 0 {
			if err := tx.Create(toNotificationRows(tenantID, state.Notifications)).Error; err != nil {
				return fmt.Errorf("insert notifications: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	state.Version++
	return nil
}

func (s *GormStore) Snapshot(ctx context.Context) (*tenantdomain.Document, error) {
	doc := &tenantdomain.Document{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&tenantRow{}).Order("created_at ASC, id ASC").Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			state, err := s.load(tx, id)
			if err != nil {
				return err
			}
			doc.Tenants = append(doc.Tenants, state)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *GormStore) UpsertTenant(ctx context.Context, tenant tenantdomain.Tenant) error {
	if err := validateTenant(tenant); err != nil {
		return err
	}

	key, err := vault.EncryptString(s.vault, tenant.ProviderAPIKey)
	if err != nil {
		return fmt.Errorf("encrypt provider api key: %w", err)
	}

	createdAt := tenant.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	row := tenantRow{
		ID:              tenant.ID,
		Name:            tenant.Name,
		CreatedAt:       createdAt.UTC(),
		UpdatedAt:       s.clock.Now(),
		MinuteLimit:     tenant.MinuteLimit,
		OveragesEnabled: tenant.OveragesEnabled,
		WebhookURL:      tenant.WebhookURL,
		EncryptedAPIKey: key,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "minute_limit", "overages_enabled", "webhook_url", "encrypted_api_key", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	s.log.Info("tenant upserted", zap.String("tenant_id", tenant.ID))
	return nil
}

func (s *GormStore) DeleteTenant(ctx context.Context, tenantID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", tenantID).Delete(&tenantRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tenantdomain.ErrTenantNotFound
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&callRecordRow{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ?", tenantID).Delete(&notificationRow{}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("tenant deleted", zap.String("tenant_id", tenantID))
	return nil
}

func (s *GormStore) toTenant(row tenantRow) (tenantdomain.Tenant, error) {
	key, err := vault.DecryptString(s.vault, row.EncryptedAPIKey)
	if err != nil {
		return tenantdomain.Tenant{}, fmt.Errorf("decrypt provider api key of %s: %w", row.ID, err)
	}
	return tenantdomain.Tenant{
		ID:              row.ID,
		Name:            row.Name,
		CreatedAt:       row.CreatedAt.UTC(),
		MinuteLimit:     row.MinuteLimit,
		UsedMinutes:     row.UsedMinutes,
		OveragesEnabled: row.OveragesEnabled,
		WebhookURL:      row.WebhookURL,
		ProviderAPIKey:  key,
	}, nil
}

func validateTenant(t tenantdomain.Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", tenantdomain.ErrInvalidTenant)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", tenantdomain.ErrInvalidTenant)
	}
	if t.MinuteLimit < 0 {
		return fmt.Errorf("%w: minute_limit must not be negative", tenantdomain.ErrInvalidTenant)
	}
	return nil
}

func watermarkMoved(stored *time.Time, next time.Time) bool {
	if next.IsZero() {
		return false
	}
	return stored == nil || !stored.Equal(next)
}
