package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

type job struct {
	path string
	id   int
}

type result struct {
	report *Report
	id     int
}

type fileError struct {
	path string
	err  error
}

var errPoolStopped = errors.New("worker pool is stopped")

// workerPool audits files on a fixed number of goroutines. Results and
// errors are delivered on separate channels; every submitted job yields
// exactly one of the two.
type workerPool struct {
	workers int
	auditor *Auditor
	logger  *slog.Logger

	jobs    chan job
	results chan result
	errors  chan fileError
	wg      sync.WaitGroup

	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

func newWorkerPool(workers int, a *Auditor, logger *slog.Logger) *workerPool {
	return &workerPool{
		workers: workers,
		auditor: a,
		logger:  logger,
		jobs:    make(chan job, workers*2),
		results: make(chan result, workers),
		errors:  make(chan fileError, workers),
	}
}

func (wp *workerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *workerPool) worker() {
	defer wp.wg.Done()
	for j := range wp.jobs {
		report, err := wp.auditor.File(j.path)
		if err != nil {
			wp.failed.Add(1)
			wp.errors <- fileError{path: j.path, err: err}
			continue
		}
		wp.processed.Add(1)
		wp.results <- result{report: report, id: j.id}
	}
}

// Submit blocks until the job is queued or ctx ends.
func (wp *workerPool) Submit(ctx context.Context, j job) error {
	if wp.stopped.Load() || wp.jobsClosed.Load() {
		return errPoolStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.jobs <- j:
		wp.submitted.Add(1)
		return nil
	}
}

func (wp *workerPool) Results() <-chan result { return wp.results }

func (wp *workerPool) Errors() <-chan fileError { return wp.errors }

// FinishSubmitting closes the job queue. Idempotent.
func (wp *workerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Stop waits for the workers after draining whatever they still emit.
// Idempotent.
func (wp *workerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-wp.results:
		case <-wp.errors:
		case <-done:
			wp.logger.Debug("audit pool stopped",
				"submitted", wp.submitted.Load(),
				"processed", wp.processed.Load(),
				"failed", wp.failed.Load())
			return
		}
	}
}
