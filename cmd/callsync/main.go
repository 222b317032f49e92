package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/callsync/internal/callsync"
	"github.com/railzwaylabs/callsync/internal/clock"
	"github.com/railzwaylabs/callsync/internal/config"
	"github.com/railzwaylabs/callsync/internal/db"
	"github.com/railzwaylabs/callsync/internal/integration"
	"github.com/railzwaylabs/callsync/internal/migration"
	"github.com/railzwaylabs/callsync/internal/observability"
	"github.com/railzwaylabs/callsync/internal/provider"
	"github.com/railzwaylabs/callsync/internal/quota"
	"github.com/railzwaylabs/callsync/internal/redis"
	"github.com/railzwaylabs/callsync/internal/scheduler"
	"github.com/railzwaylabs/callsync/internal/security/vault"
	"github.com/railzwaylabs/callsync/internal/server"
	"github.com/railzwaylabs/callsync/internal/tenant/repository"
	"github.com/railzwaylabs/callsync/internal/usage"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const oneShotTimeout = 5 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "callsync",
		Short:         "Call synchronization and usage reconciliation",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newSchedulerCmd(),
		newSyncCmd(),
		newTenantCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operations API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(withScheduler)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", true, "also run the periodic sync sweep")
	return cmd
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the periodic sync sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

// coreModules wires everything a sync cycle needs.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(observability.NewFxLogger),
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		vault.Module,
		repository.Module,
		provider.Module,
		usage.Module,
		quota.Module,
		integration.Module,
		callsync.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(observability.NewFxLogger),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe(withScheduler bool) {
	opts := []fx.Option{
		coreModules(),
		fx.Invoke(migration.EnforceSchemaGate),
		server.Module,
	}
	if withScheduler {
		opts = append(opts, scheduler.Module, fx.Invoke(startScheduler))
	}
	fx.New(opts...).Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		fx.Invoke(migration.EnforceSchemaGate),
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

// runOneShot starts the core graph, fills targets, runs fn and stops the
// graph again.
func runOneShot(fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(),
		fx.Invoke(migration.EnforceSchemaGate),
		fx.Populate(targets...),
	)

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()
	return fn(ctx)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
