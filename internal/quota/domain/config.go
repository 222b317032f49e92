package domain

import (
	"time"

	"github.com/railzwaylabs/callsync/internal/config"
)

type Config struct {
	Enabled bool

	// Percent of MinuteLimit at which the usage warning fires.
	WarningPercent float64
	// A warning with the same title inside this window suppresses a new one.
	DedupWindow time.Duration
	// Notifications kept per tenant, newest first.
	MaxNotifications int
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		WarningPercent:   80,
		DedupWindow:      24 * time.Hour,
		MaxNotifications: 50,
	}
}

func FromConfig(cfg config.Config) *Config {
	out := DefaultConfig()
	if cfg.Quota.WarningPercent > 0 {
		out.WarningPercent = cfg.Quota.WarningPercent
	}
	if cfg.Quota.DedupWindow > 0 {
		out.DedupWindow = cfg.Quota.DedupWindow
	}
	if cfg.Quota.MaxNotifications > 0 {
		out.MaxNotifications = cfg.Quota.MaxNotifications
	}
	return &out
}
