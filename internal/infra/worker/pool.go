// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// A small worker pool for the evaluation fan-out. Unlike a fire-and-forget
// queue, Submit blocks when all workers are busy: every submission unit must
// run (or the run must be cancelled), never be dropped.

type Task func(ctx context.Context)

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{jobs: make(chan Task), n: workers, log: log}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				func() {
					defer func() {
						if r := recover(); r != nil {
							p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
						}
					}()
					task(ctx)
				}()
			}
		}(i)
	}
}

// Submit queues a task, blocking until a worker picks it up or ctx ends.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight tasks to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
