package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/callsync/internal/tenant/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaVersion is bumped whenever the persisted models change shape.
const SchemaVersion = 1

var (
	ErrSchemaNotApplied      = errors.New("schema_not_applied")
	ErrSchemaVersionMismatch = errors.New("schema_version_mismatch")
)

// RunMigrations migrates the tenant tables and records the schema version.
// It must be run explicitly by the migrate command.
func RunMigrations(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	unlock, err := acquireAdvisoryLock(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	if err := db.WithContext(ctx).AutoMigrate(&schemaState{}); err != nil {
		return fmt.Errorf("migrate schema state: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate tenant tables: %w", err)
	}
	if err := activateSchemaState(ctx, db, SchemaVersion); err != nil {
		return err
	}

	log.Named("migration").Info("schema migrated", zap.Int("version", SchemaVersion))
	return nil
}

// MustBeCurrent fails unless the migrate command has applied SchemaVersion.
func MustBeCurrent(ctx context.Context, db *gorm.DB) error {
	state, err := loadSchemaState(ctx, db)
	if err != nil {
		return err
	}
	if state.Version != SchemaVersion {
		return fmt.Errorf("%w: state=%d expected=%d", ErrSchemaVersionMismatch, state.Version, SchemaVersion)
	}
	return nil
}
