package scheduler

import (
	"context"

	"go.uber.org/zap"
)

const jobSyncSweep = "sync_sweep"

// SyncSweepJob synchronizes every tenant once. Per-tenant failures are
// counted on the run; only a failure to list tenants is returned.
func (s *Scheduler) SyncSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, jobSyncSweep, 1)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	res, err := s.sweeper.SyncAll(ctx)
	run.AddProcessed(res.Succeeded)
	run.AddFailed(res.Failed)

	if err != nil && res.Tenants == 0 {
		s.logSchedulerError(ctx, run, "scheduler.sweep.failed", jobSyncSweep, 0, err)
		return err
	}
	if err != nil {
		s.log.Warn("sweep finished with tenant errors",
			zap.String("sync_run_id", res.RunID),
			zap.Int("failed", res.Failed),
			zap.Error(err),
		)
	}
	return nil
}
