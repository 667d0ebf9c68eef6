// Package dataset implements the Hybrid Dataset and its two named
// single-goroutine schedulers (spec §2 components 5-6, §4.4, §5): the
// atomically swappable (disk_chunks[], ram_segments[]) pair, a serial
// executor that serializes every mutation of that pair, and a merge
// scheduler that runs one in-flight segment merge or chunk save at a time.
package dataset

import (
	"context"
	"errors"
	"sync"
)

// ErrWorkerStopped is returned by Run after Stop has been called.
var ErrWorkerStopped = errors.New("dataset: worker stopped")

// Worker is a single-goroutine task queue: the Go-idiomatic shape for the
// source's "named scheduler" concept (spec §5 "cooperative fibers
// multiplexed onto a thread pool ... a named serial executor (single
// goroutine worker)"). Both the Serial Executor and the Merge Scheduler are
// instances of this type, distinguished only by what gets submitted to
// them.
type Worker struct {
	tasks  chan workItem
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type workItem struct {
	fn   func()
	done chan struct{}
}

// NewWorker starts the worker's goroutine and returns immediately.
func NewWorker(queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	w := &Worker{
		tasks:  make(chan workItem, queueDepth),
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case item := <-w.tasks:
			item.fn()
			close(item.done)
		case <-w.stopCh:
			return
		}
	}
}

// Run submits fn and blocks until it has executed on the worker's
// goroutine, or ctx is cancelled, or the worker has been stopped.
// Operations that need to "change what readers see" must run here
// (spec §5).
func (w *Worker) Run(ctx context.Context, fn func()) error {
	item := workItem{fn: fn, done: make(chan struct{})}

	select {
	case w.tasks <- item:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopCh:
		return ErrWorkerStopped
	}

	select {
	case <-item.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains no further tasks and waits for the goroutine to exit. Tasks
// already queued but not yet started are abandoned; callers should not
// Stop a worker with pending work they still care about.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}
