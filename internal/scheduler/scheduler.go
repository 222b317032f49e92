package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/railzwaylabs/callsync/internal/callsync"
	"github.com/railzwaylabs/callsync/internal/clock"
	"github.com/railzwaylabs/callsync/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidSchedule = errors.New("invalid_schedule")

// Sweeper runs one synchronization pass over every tenant.
type Sweeper interface {
	SyncAll(ctx context.Context) (callsync.SweepResult, error)
}

type Config struct {
	Schedule string
}

type Params struct {
	fx.In

	Config  config.Config
	Sweeper Sweeper
	Clock   clock.Clock
	Log     *zap.Logger
}

type Scheduler struct {
	cfg     Config
	sweeper Sweeper
	clock   clock.Clock
	log     *zap.Logger

	mu   sync.Mutex
	last *JobRun
}

func New(p Params) *Scheduler {
	return &Scheduler{
		cfg:     Config{Schedule: p.Config.Sync.Schedule},
		sweeper: p.Sweeper,
		clock:   p.Clock,
		log:     p.Log.Named("scheduler"),
	}
}

func (s *Scheduler) newCron() *cron.Cron {
	logger := cronLogger{log: s.log.Named("cron")}
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

// RunForever runs the sweep on the configured schedule until ctx ends.
// A sweep still running when the next tick fires is skipped, not queued.
func (s *Scheduler) RunForever(ctx context.Context) error {
	c := s.newCron()
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		_ = s.SyncSweepJob(ctx)
	}); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, s.cfg.Schedule, err)
	}

	s.log.Info("scheduler started", zap.String("schedule", s.cfg.Schedule))
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
	return nil
}

// LastRun returns the most recently finished job run, if any.
func (s *Scheduler) LastRun() (JobRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return JobRun{}, false
	}
	return s.last.snapshot(), true
}
