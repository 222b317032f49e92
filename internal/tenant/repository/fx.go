package repository

import (
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.repository",
	fx.Provide(
		NewGormStore,
		func(s *GormStore) tenantdomain.Store { return s },
	),
)
