// Package worker runs jobs on a bounded number of goroutines fed by a bounded
// queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work. The context is the pool's, cancelled by Close.
type Job func(ctx context.Context)

// Config holds configuration for the pool.
type Config struct {
	// Workers is the number of jobs executing at once.
	Workers int `mapstructure:"workers" default:"4"`
	// QueueSize is the number of jobs that may wait for a free worker.
	QueueSize int `mapstructure:"queue_size" default:"64"`
}

// Pool is a bounded worker pool. A dispatcher hands queued jobs to an
// errgroup limited to Workers. Jobs report no errors to the group.
type Pool struct {
	jobs   chan Job
	group  errgroup.Group
	done   chan struct{}
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New starts the dispatcher.
func New(cfg Config, logger *zap.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queue := cfg.QueueSize
	if queue < 0 {
		queue = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan Job, queue),
		done:   make(chan struct{}),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	p.group.SetLimit(workers)

	go p.dispatch()
	return p
}

// dispatch blocks in Go while every worker is busy, which keeps the queue
// bounded.
func (p *Pool) dispatch() {
	defer close(p.done)
	for job := range p.jobs {
		job := job
		p.group.Go(func() error {
			p.execute(job)
			return nil
		})
	}
	_ = p.group.Wait()
}

func (p *Pool) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	job(p.ctx)
}

// Submit queues a job, blocking while the queue is full.
// It returns ctx.Err() if ctx ends first and ErrPoolClosed after Close.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, lets queued jobs finish and waits for them.
// Jobs observe a cancelled context once Close has been called.
func (p *Pool) Close() {
	p.cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	<-p.done
}
