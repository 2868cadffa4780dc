package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BestEffort runs fire-and-forget side effects off the request path, like
// view counter bumps. The queue is bounded; when it is full new work is
// dropped and logged rather than blocking a request.
type BestEffort struct {
	tasks   chan func(context.Context)
	timeout time.Duration
	wg      sync.WaitGroup
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
}

func NewBestEffort(queueSize, workers int, timeout time.Duration, log *zap.Logger) *BestEffort {
	if log == nil {
		log = zap.L()
	}
	b := &BestEffort{
		tasks:   make(chan func(context.Context), queueSize),
		timeout: timeout,
		log:     log,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *BestEffort) worker() {
	defer b.wg.Done()
	for task := range b.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		task(ctx)
		cancel()
	}
}

// Submit enqueues a task. It returns false when the task was dropped.
func (b *BestEffort) Submit(name string, task func(context.Context)) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	select {
	case b.tasks <- task:
		b.mu.Unlock()
		return true
	default:
		b.mu.Unlock()
		b.log.Warn("best-effort queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Close stops intake and waits for queued tasks to finish.
func (b *BestEffort) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.tasks)
	b.mu.Unlock()
	b.wg.Wait()
}
