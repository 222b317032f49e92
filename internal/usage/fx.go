package usage

import (
	"github.com/railzwaylabs/callsync/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(service.NewReconciler),
)
