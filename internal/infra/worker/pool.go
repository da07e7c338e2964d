package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A small fixed-size worker pool. Tasks run with the context given to Start.

type Task func(ctx context.Context) error

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	stop sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	compLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  &compLog,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := p.run(ctx, task); err != nil {
						p.log.Warn().Err(err).Int("worker", id).Msg("task error")
					}
				}
			}
		}(i)
	}
}

// run keeps one bad task from killing its worker.
func (p *Pool) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}

// Stop signals workers to exit and waits for running tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.stop.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues without blocking and fails with ErrQueueFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if p.stopped() {
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait blocks until the task is queued, the pool stops or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if p.stopped() {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrStopped
	case p.jobs <- task:
		return nil
	}
}

func (p *Pool) stopped() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}
