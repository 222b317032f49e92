package observability

import (
	"github.com/railzwaylabs/callsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Invoke(
		SetupTracing,
		config.WatchLogLevel,
	),
)

// NewFxLogger routes fx lifecycle events through zap, warnings and up only.
func NewFxLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
}
