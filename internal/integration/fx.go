package integration

import (
	"github.com/railzwaylabs/callsync/internal/integration/domain"
	"github.com/railzwaylabs/callsync/internal/integration/provider/webhook"
	"github.com/railzwaylabs/callsync/internal/integration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("integration",
	fx.Provide(
		domain.FromConfig,
		service.NewDispatcher,
		func(cfg domain.Config) domain.NotificationProvider {
			return webhook.NewProvider(cfg)
		},
		func(d *service.Dispatcher) domain.Service {
			return d
		},
	),
)
