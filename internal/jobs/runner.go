package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a batch entry point.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Runner schedules jobs on cron expressions and guards each run with a lock.
type Runner struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
	jobs    map[string]Job
}

// NewRunner builds a runner evaluating schedules in loc. A nil locker means
// the deployment guarantees a single scheduler instance.
func NewRunner(loc *time.Location, locker Locker, lockTTL time.Duration, logger *slog.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if locker == nil {
		locker = noopLocker{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Schedule registers job under a standard five-field cron spec.
func (r *Runner) Schedule(spec string, job Job) error {
	return r.ScheduleChain(spec, job)
}

// ScheduleChain runs chain in order on spec, each job under its own lock, so
// a later job never starts before an earlier one has finished. When a lock is
// held elsewhere the rest of the chain is skipped: the holder runs it.
func (r *Runner) ScheduleChain(spec string, chain ...Job) error {
	if len(chain) == 0 {
		return fmt.Errorf("schedule %q: no jobs", spec)
	}
	if _, err := r.cron.AddFunc(spec, func() {
		r.runChain(context.Background(), chain)
	}); err != nil {
		return fmt.Errorf("schedule %s %q: %w", chain[0].Name(), spec, err)
	}
	for _, job := range chain {
		r.jobs[job.Name()] = job
	}
	return nil
}

func (r *Runner) runChain(ctx context.Context, chain []Job) []Report {
	reports := make([]Report, 0, len(chain))
	for _, job := range chain {
		report, err := r.Trigger(ctx, job.Name())
		if errors.Is(err, ErrLockHeld) {
			return reports
		}
		if err != nil {
			r.logger.Error("scheduled job failed", slog.String("job", job.Name()), slog.Any("error", err))
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// Register makes job available to Trigger without scheduling it.
func (r *Runner) Register(job Job) {
	r.jobs[job.Name()] = job
}

// Trigger runs the named job now, under the lock.
func (r *Runner) Trigger(ctx context.Context, name string) (Report, error) {
	job, ok := r.jobs[name]
	if !ok {
		return Report{}, fmt.Errorf("unknown job %q", name)
	}
	release, err := r.locker.Acquire(ctx, name, r.lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			r.logger.Info("job skipped, lock held elsewhere", slog.String("job", name))
		}
		return Report{}, err
	}
	defer release()

	r.logger.Info("job started", slog.String("job", name))
	return job.Run(ctx)
}

// Start begins evaluating schedules in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop prevents new runs and waits for a running job to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own diagnostics to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
