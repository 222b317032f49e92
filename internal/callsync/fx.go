package callsync

import (
	"github.com/railzwaylabs/callsync/internal/callcache"
	"github.com/railzwaylabs/callsync/internal/config"
	"github.com/railzwaylabs/callsync/internal/provider/paginator"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type LockerParam struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

var Module = fx.Module("callsync",
	fx.Provide(
		FromConfig,
		NewOrchestrator,
		func(p *paginator.Paginator) Fetcher { return p },
		func() (*callcache.Cache, error) { return callcache.New(callcache.DefaultSize) },
		func(p LockerParam) Locker {
			return NewLocker(p.Redis, p.Config.Sync.LockTTL, p.Log)
		},
	),
)
