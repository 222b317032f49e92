package provider

import (
	"github.com/railzwaylabs/callsync/internal/clock"
	"github.com/railzwaylabs/callsync/internal/config"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	"github.com/railzwaylabs/callsync/internal/provider/paginator"
	"github.com/railzwaylabs/callsync/internal/provider/vapi"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("provider",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) providerdomain.Client {
			return vapi.NewClient(vapi.Config{
				BaseURL: cfg.Provider.BaseURL,
				Timeout: cfg.Provider.Timeout,
			}, log)
		},
		func(client providerdomain.Client, clk clock.Clock, cfg config.Config, log *zap.Logger) *paginator.Paginator {
			return paginator.New(client, clk, paginator.Config{
				PageSize:        cfg.Provider.PageSize,
				PageDelay:       cfg.Provider.PageDelay,
				RetentionWindow: cfg.Provider.RetentionWindow,
			}, log)
		},
	),
)
