package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Submit when the task queue is at capacity.
// Callers run on the event publisher's goroutine and must not block.
var ErrQueueFull = errors.New("worker pool queue is full")

// DelivererFunc processes one notification task
type DelivererFunc func(ctx context.Context, task Task)

// Pool manages a pool of worker goroutines for concurrent notification
// delivery, keeping slow webhook endpoints off the publishing path.
type Pool struct {
	workers   int
	tasks     chan Task
	deliverFn DelivererFunc
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewPool creates a new worker pool
func NewPool(workers int, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetDeliverer sets the function that will process tasks
func (p *Pool) SetDeliverer(fn DelivererFunc) {
	p.deliverFn = fn
}

// Start starts the worker pool
func (p *Pool) Start() {
	slog.Info("Starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the worker pool gracefully, draining queued tasks first.
func (p *Pool) Stop() {
	slog.Info("Stopping worker pool")

	close(p.tasks)
	p.wg.Wait()
	p.cancel()

	slog.Info("Worker pool stopped")
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue is at capacity; the caller decides whether dropping is acceptable.
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
	}

	select {
	case p.tasks <- task:
		slog.Debug("Task submitted to worker pool",
			"job_id", task.Event.JobID,
			"correlation_id", task.CorrelationID,
		)
		return nil
	default:
		return ErrQueueFull
	}
}

// worker is the worker goroutine that processes tasks
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for task := range p.tasks {
		slog.Debug("Worker processing task",
			"worker_id", id,
			"job_id", task.Event.JobID,
			"correlation_id", task.CorrelationID,
		)

		p.deliverFn(p.ctx, task)
	}

	slog.Debug("Worker stopped", "worker_id", id)
}

// QueueLength returns the current number of queued tasks
func (p *Pool) QueueLength() int {
	return len(p.tasks)
}
