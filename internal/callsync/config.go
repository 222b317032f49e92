package callsync

import (
	"time"

	"github.com/railzwaylabs/callsync/internal/callcache"
	"github.com/railzwaylabs/callsync/internal/config"
)

const (
	DefaultTotalLimit = 5000
	DefaultWorkers    = 4
)

type Config struct {
	// TotalLimit caps the records pulled in one cycle.
	TotalLimit    int
	Overlap       time.Duration
	EpochFloor    time.Time
	Workers       int
	TenantTimeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.TotalLimit <= 0 {
		out.TotalLimit = DefaultTotalLimit
	}
	if out.Overlap < 0 {
		out.Overlap = 0
	}
	if out.EpochFloor.IsZero() {
		out.EpochFloor = callcache.DefaultEpochFloor
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	return out
}

func FromConfig(cfg config.Config) Config {
	return Config{
		TotalLimit:    cfg.Provider.TotalLimit,
		Overlap:       cfg.Sync.Overlap,
		EpochFloor:    cfg.Sync.EpochFloor,
		Workers:       cfg.Sync.Workers,
		TenantTimeout: cfg.Sync.TenantTimeout,
	}
}
