package scheduler

import (
	"github.com/railzwaylabs/callsync/internal/callsync"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(
		New,
		func(o *callsync.Orchestrator) Sweeper { return o },
	),
)
