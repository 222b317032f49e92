package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type jobRunKey struct{}

// JobRun tracks one execution of a scheduled job.
type JobRun struct {
	ID         string
	Job        string
	Batches    int
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Failed     int

	mu sync.Mutex
}

func (r *JobRun) AddProcessed(n int) {
	r.mu.Lock()
	r.Processed += n
	r.mu.Unlock()
}

func (r *JobRun) AddFailed(n int) {
	r.mu.Lock()
	r.Failed += n
	r.mu.Unlock()
}

func (r *JobRun) snapshot() JobRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return JobRun{
		ID:         r.ID,
		Job:        r.Job,
		Batches:    r.Batches,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Processed:  r.Processed,
		Failed:     r.Failed,
	}
}

// ensureJobRun returns the run carried by ctx or starts a new one. owner is
// true when the caller created the run and must log its start and finish.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batches int) (context.Context, *JobRun, bool) {
	if run, ok := ctx.Value(jobRunKey{}).(*JobRun); ok && run != nil {
		return ctx, run, false
	}
	run := &JobRun{
		ID:        ulid.Make().String(),
		Job:       job,
		Batches:   batches,
		StartedAt: s.clock.Now(),
	}
	return context.WithValue(ctx, jobRunKey{}, run), run, true
}

func (s *Scheduler) logJobStart(ctx context.Context, run *JobRun) {
	s.log.Info("scheduler job started",
		zap.String("job", run.Job),
		zap.String("job_run_id", run.ID),
		zap.Int("batches", run.Batches),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *JobRun) {
	run.mu.Lock()
	run.FinishedAt = s.clock.Now()
	processed, failed := run.Processed, run.Failed
	elapsed := run.FinishedAt.Sub(run.StartedAt)
	run.mu.Unlock()

	s.log.Info("scheduler job finished",
		zap.String("job", run.Job),
		zap.String("job_run_id", run.ID),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *JobRun, event, job string, processed int, err error) {
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("job", job),
		zap.Int("processed", processed),
		zap.Error(err),
	}
	if run != nil {
		fields = append(fields, zap.String("job_run_id", run.ID))
	}
	s.log.Error("scheduler job failed", fields...)
}
