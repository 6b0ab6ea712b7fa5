// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work. Run is called once per
// Interval by the workers.Scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// OverdueSweeper is satisfied by the circulation engine.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// OverdueSweepJob creates a job that flips borrowed records past their due
// date to overdue. The engine logs and audits the transitions itself.
func OverdueSweepJob(sweeper OverdueSweeper, logger *zap.Logger, interval time.Duration) Job {
	if interval <= 0 {
		interval = time.Hour
	}
	return Job{
		Name:     "overdue-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := sweeper.SweepOverdue(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				logger.Debug("overdue sweep found nothing to update")
			}
			return nil
		},
	}
}

// RateLimitSweepJob creates a job that drops idle per-user buckets so the
// limiter does not grow without bound.
func RateLimitSweepJob(limiter *ratelimit.Limiter, logger *zap.Logger) Job {
	return Job{
		Name:     "ratelimit-sweep",
		Interval: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			if n := limiter.Sweep(); n > 0 {
				logger.Debug("dropped idle rate limit buckets", zap.Int("count", n))
			}
			return nil
		},
	}
}
