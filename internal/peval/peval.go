// Package peval implements the Parallel Evaluator: a bounded worker pool
// executing objective evaluations with result reordering, used by the MODE
// engine's delayed-update driver. It is modeled on the goroutine/channel
// lifecycle in the teacher's internal/server/worker.go (ticker-driven
// monitor goroutines gated by a done channel and a context.Context), not on
// the original C++ `evaluator.h` thread pool, which is not part of the
// retrieval pack.
package peval

import (
	"context"
	"sync"
)

// task is one enqueued evaluation.
type task struct {
	x  []float64
	id int
}

// Result is a completed evaluation, tagged with the slot id it was
// submitted under. Completion order need not match submission order.
type Result struct {
	Y  []float64
	ID int
}

// Evaluator runs a bounded pool of workers, each holding a private copy of
// the objective (per spec.md §4.7 "each worker owns a private copy"), and
// posts completed results to a single channel the driver goroutine drains.
type Evaluator struct {
	tasks   chan task
	results chan Result
	wg      sync.WaitGroup
}

// New starts a pool of workers (capped to be non-zero) evaluating with
// objective. The objective must be safe to call concurrently — or, matching
// the "private copy" contract, newObjective is invoked once per worker so
// each goroutine gets its own closure/state.
func New(ctx context.Context, workers int, newObjective func() func(x []float64) []float64) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	e := &Evaluator{
		tasks:   make(chan task, workers),
		results: make(chan Result, workers),
	}
	e.wg.Add(workers)
	for w := 0; w < workers; w++ {
		objective := newObjective()
		go e.run(ctx, objective)
	}
	return e
}

func (e *Evaluator) run(ctx context.Context, objective func(x []float64) []float64) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-e.tasks:
			if !ok {
				return
			}
			y := objective(t.x)
			select {
			case e.results <- Result{Y: y, ID: t.id}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Evaluate enqueues x tagged with slot id for evaluation by the next free
// worker.
func (e *Evaluator) Evaluate(x []float64, id int) {
	e.tasks <- task{x: x, id: id}
}

// Result blocks for the next completed (y, id) pair. Once Shutdown has
// closed the pool and every result has been taken, it returns the zero
// Result; before Shutdown, a call with no evaluation outstanding blocks
// forever.
func (e *Evaluator) Result() Result {
	return <-e.results
}

// Shutdown closes the task queue and joins all workers, letting any
// in-flight evaluation complete (spec.md §5 "In-flight evaluations are
// never interrupted"). It does not drain the results channel; callers that
// dispatched more work than they collected results for should drain with
// Result before calling Shutdown.
func (e *Evaluator) Shutdown() {
	close(e.tasks)
	e.wg.Wait()
	close(e.results)
}
