package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type DailyRunner interface {
	RunDailyReminders(ctx context.Context, asOf *time.Time) (Summary, error)
}

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type RunnerConfig struct {
	Location *time.Location
	Hour     int
	Minute   int
	// RunOnStart catches up after a restart; reruns on the same day send nothing new.
	RunOnStart bool
}

// Runner triggers the daily run at a fixed local time until its context ends.
type Runner struct {
	job    DailyRunner
	clock  clock.Clock
	cfg    RunnerConfig
	logger *slog.Logger
}

func NewRunner(job DailyRunner, clk clock.Clock, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Location == nil {
		cfg.Location = clock.LoadLocation(clock.DefaultTimezone)
	}
	return &Runner{job: job, clock: clk, cfg: cfg, logger: logger}
}

func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.RunOnStart {
		r.runOnce(ctx)
	}

	for {
		next := NextRun(r.clock.Now(), r.cfg.Location, r.cfg.Hour, r.cfg.Minute)
		wait := next.Sub(r.clock.Now())
		r.logger.Info("next reminder run scheduled", "at", next.Format(time.RFC3339), "in", wait.Round(time.Second).String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("reminder runner stopped")
			return nil
		case <-timer.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	summary, err := r.job.RunDailyReminders(ctx, nil)
	if err != nil {
		r.logger.Error("reminder run failed", "error", err, "duration", time.Since(start).String())
		return
	}
	r.logger.Info("reminder run complete",
		"date", summary.Date,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"auto_cancelled", summary.AutoCancelled,
		"duration", time.Since(start).String())
}
