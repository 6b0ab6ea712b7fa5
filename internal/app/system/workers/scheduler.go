// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/tasks"
	"go.uber.org/zap"
)

// Scheduler runs each registered job on its own ticker until stopped.
type Scheduler struct {
	jobs    []tasks.Job
	log     *zap.Logger
	timeout time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewScheduler creates a scheduler for jobs. Each run gets its own context
// bounded by runTimeout (30s when zero).
func NewScheduler(logger *zap.Logger, runTimeout time.Duration, jobs ...tasks.Job) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}
	return &Scheduler{
		jobs:    jobs,
		log:     logger,
		timeout: runTimeout,
		stopCh:  make(chan struct{}),
	}
}

// Start launches one goroutine per job. Jobs with a non-positive interval
// are skipped.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.log.Warn("job not scheduled", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
		s.log.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop signals every job loop to exit and waits for in-flight runs.
// Calling Stop more than once is safe.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.log.Info("background jobs stopped")
	})
}

func (s *Scheduler) loop(job tasks.Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(job)
		}
	}
}

func (s *Scheduler) runOnce(job tasks.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("background job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("background job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
}
