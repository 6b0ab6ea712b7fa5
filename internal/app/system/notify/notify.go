// Package notify delivers best-effort email through a bounded queue drained
// by a fixed pool of workers. Enqueue never blocks: when the queue is full
// or stopped the message is dropped and logged.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/retry"
	"go.uber.org/zap"
)

// Sender delivers one email. *mailer.Mailer satisfies it.
type Sender interface {
	Send(msg mailer.Email) error
}

// Notifier accepts messages for best-effort delivery.
type Notifier interface {
	Notify(msg mailer.Email) bool
}

// Queue is a bounded, worker-drained Notifier.
type Queue struct {
	sender  Sender
	log     *zap.Logger
	workers int
	ch      chan mailer.Email

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	retryOpts []retry.Option
}

// NewQueue creates a queue with the given worker count and capacity.
// Call Start before Notify has any effect beyond buffering.
func NewQueue(sender Sender, workers, size int, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	return &Queue{
		sender:    sender,
		log:       logger,
		workers:   workers,
		ch:        make(chan mailer.Email, size),
		retryOpts: []retry.Option{retry.WithMaxAttempts(3), retry.WithBaseDelay(200 * time.Millisecond)},
	}
}

// Start launches the workers.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	q.log.Info("notification workers started",
		zap.Int("workers", q.workers),
		zap.Int("queue_size", cap(q.ch)))
}

// Stop closes the queue, lets workers drain what is buffered, and waits.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info("notification workers stopped")
}

// Notify enqueues msg and reports whether it was accepted.
func (q *Queue) Notify(msg mailer.Email) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.log.Warn("notification dropped: queue stopped", zap.String("subject", msg.Subject))
		return false
	}
	select {
	case q.ch <- msg:
		return true
	default:
		q.log.Warn("notification dropped: queue full",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
		return false
	}
}

// Pending returns the number of buffered messages.
func (q *Queue) Pending() int {
	return len(q.ch)
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	for msg := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := retry.Do(ctx, func(context.Context) error {
			return q.sender.Send(msg)
		}, q.retryOpts...)
		cancel()
		if err != nil {
			q.log.Warn("notification failed",
				zap.Int("worker", id),
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err))
		}
	}
}
