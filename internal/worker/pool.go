package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed set of goroutines. A collector goroutine records
// every result as it completes, so workers never wait on the caller and
// Submit only blocks until a worker is free.
//
// Cancelling the parent context stops the workers; jobs still queued are
// dropped and produce no result.
type Pool struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc

	jobs    chan Job
	results chan Result

	wg        sync.WaitGroup
	collected []Result
	collector chan struct{} // closed once every result is recorded

	closeJobs    sync.Once
	closeResults sync.Once
}

// NewPool creates a pool with the given number of workers (at least one)
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(chan Job),
		results:   make(chan Result, workers),
		collector: make(chan struct{}),
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	go func() {
		defer close(p.collector)
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit hands a job to the next free worker. It returns the context error
// once the pool is cancelled. Submit must not be called after Wait.
func (p *Pool) Submit(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Wait stops accepting jobs, lets the workers finish and returns every
// result in completion order
func (p *Pool) Wait() []Result {
	p.closeJobs.Do(func() { close(p.jobs) })
	return p.finish()
}

// Shutdown cancels in-flight jobs and returns whatever results were recorded
func (p *Pool) Shutdown() []Result {
	p.cancel()
	return p.finish()
}

func (p *Pool) finish() []Result {
	p.wg.Wait()
	p.closeResults.Do(func() { close(p.results) })
	<-p.collector
	p.cancel()
	return p.collected
}
