package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sndcds/attachments/logging"
)

// Pool runs jobs on a fixed number of goroutines in this process.
type Pool struct {
	handler    Handler
	maxWorkers int
	tasks      chan Job
	wg         sync.WaitGroup
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Dispatcher = (*Pool)(nil)

// NewPool creates a pool with maxWorkers goroutines and room for queueSize
// pending jobs.
func NewPool(handler Handler, maxWorkers, queueSize int, logger *zap.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		handler:    handler,
		maxWorkers: maxWorkers,
		tasks:      make(chan Job, queueSize),
		logger:     logging.OrNop(logger).With(zap.String("component", "pool")),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Enqueue never blocks. A full queue yields ErrQueueFull.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- job:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, job.Key())
	}
}

// Stop rejects new jobs and waits for the workers to drain the queue.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(ctx, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.String("job", job.Key()), zap.Any("panic", r))
		}
	}()

	if err := p.handler(ctx, job); err != nil {
		p.logger.Warn("job failed", zap.String("job", job.Key()), zap.Error(err))
	}
}
