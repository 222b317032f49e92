package migration

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

const advisoryLockKey int64 = 8_423_771_092

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock serialises concurrent migrators on postgres. Other
// dialects get a no-op lock.
func acquireAdvisoryLock(ctx context.Context, db *gorm.DB) (unlockFunc, error) {
	if db.Dialector.Name() != "postgres" {
		return func(context.Context) error { return nil }, nil
	}

	// Session-level locks belong to one connection; pin it.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, errors.New("another migration process holds the advisory lock")
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", advisoryLockKey).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
