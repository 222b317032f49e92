package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		return RunMigrations(context.Background(), conn, log)
	}),
)

// EnforceSchemaGate refuses to start a process against an unmigrated database.
func EnforceSchemaGate(lc fx.Lifecycle, conn *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return MustBeCurrent(ctx, conn)
		},
	})
}
