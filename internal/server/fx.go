package server

import (
	"github.com/railzwaylabs/callsync/internal/callsync"
	"go.uber.org/fx"
)

var Module = fx.Module("server",
	fx.Provide(
		New,
		func(o *callsync.Orchestrator) SyncService { return o },
	),
	fx.Invoke(Start),
)
