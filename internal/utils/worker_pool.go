package utils

import (
	"context"
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Name string
	Task func(ctx context.Context)
}

// WorkerPool runs submitted jobs on a fixed number of goroutines. Jobs share
// the pool's context, which is cancelled by Cancel or Shutdown.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	waitGroup sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(ctx context.Context, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, workers),
		ctx:      poolCtx,
		cancel:   cancel,
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue. Jobs still queued after
// cancellation are drained without running.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			continue
		}
		job.Task(wp.ctx)
	}
}

// Submit adds a new job to the worker pool.
func (wp *WorkerPool) Submit(name string, task func(ctx context.Context)) {
	wp.jobQueue <- Job{Name: name, Task: task}
}

// Cancel signals running jobs to stop early.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Shutdown waits for all workers to finish and then closes the worker pool.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
	wp.cancel()
}
