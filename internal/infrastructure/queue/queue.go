package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

var (
	errFull   = errors.New("task queue is full")
	errClosed = errors.New("task queue is closed")
)

// Handler executes one fetch task.
type Handler func(ctx context.Context, task domain.FetchTask)

// Queue is an in-process task queue with a bounded buffer and a worker pool.
// Workers share no in-process state with producers beyond the channel; all
// other coordination runs through the external shared stores.
type Queue struct {
	tasks  chan domain.FetchTask
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ ports.TaskQueue = (*Queue)(nil)

// New builds a queue with the given buffer size.
func New(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{tasks: make(chan domain.FetchTask, size), logger: logger}
}

// Enqueue hands a task to the workers. A full buffer is reported as a
// transient failure so the dispatcher can count the task as skipped.
// The non-blocking send happens under the same lock Close takes before
// closing the channel, so Enqueue can never send on a closed channel.
func (q *Queue) Enqueue(ctx context.Context, task domain.FetchTask) error {
	if err := ctx.Err(); err != nil {
		return domain.Transient("enqueue", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return domain.Transient("enqueue", errClosed)
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return domain.Transient("enqueue", errFull)
	}
}

// StartWorkers launches n workers that run handle for every task until the
// context is cancelled or the queue is closed.
func (q *Queue) StartWorkers(ctx context.Context, n int, handle Handler) {
	if n <= 0 {
		n = 4
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for {
				select {
				case task, ok := <-q.tasks:
					if !ok {
						return
					}
					q.debug("task picked up", "worker", worker, "task", task.ID, "provider", task.Provider, "symbol", task.Symbol)
					handle(ctx, task)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
}

// Close stops intake and waits for workers to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) debug(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Debug(msg, args...)
	}
}
