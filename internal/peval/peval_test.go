package peval

import (
	"context"
	"sync/atomic"
	"testing"
)

// Property 4: a bounded pool of workers evaluating a fixed number of tasks
// completes exactly that many results, each tagged with its submitted id,
// regardless of completion order.
func TestEvaluatorDeliversEveryResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	ev := New(ctx, 4, func() func(x []float64) []float64 {
		return func(x []float64) []float64 {
			atomic.AddInt64(&calls, 1)
			return []float64{x[0] * x[0]}
		}
	})

	const n = 50
	for i := 0; i < n; i++ {
		ev.Evaluate([]float64{float64(i)}, i)
	}

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		r := ev.Result()
		if seen[r.ID] {
			t.Fatalf("id %d delivered twice", r.ID)
		}
		seen[r.ID] = true
		want := float64(r.ID * r.ID)
		if r.Y[0] != want {
			t.Fatalf("id %d: got %g want %g", r.ID, r.Y[0], want)
		}
	}
	ev.Shutdown()

	if len(seen) != n {
		t.Fatalf("expected %d distinct results, got %d", n, len(seen))
	}
	if atomic.LoadInt64(&calls) != n {
		t.Fatalf("objective invoked %d times, want %d", calls, n)
	}
}

// Each worker must receive its own objective closure — mutating state
// captured per-worker must not leak across workers.
func TestEvaluatorGivesEachWorkerAPrivateObjective(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var factoryCalls int64
	ev := New(ctx, 3, func() func(x []float64) []float64 {
		atomic.AddInt64(&factoryCalls, 1)
		local := 0
		return func(x []float64) []float64 {
			local++
			return []float64{float64(local)}
		}
	})

	for i := 0; i < 9; i++ {
		ev.Evaluate([]float64{0}, i)
	}
	for i := 0; i < 9; i++ {
		ev.Result()
	}
	ev.Shutdown()

	if atomic.LoadInt64(&factoryCalls) != 3 {
		t.Fatalf("expected the objective factory called once per worker (3), got %d", factoryCalls)
	}
}

func TestEvaluatorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ev := New(ctx, 2, func() func(x []float64) []float64 {
		return func(x []float64) []float64 { return x }
	})
	cancel()
	ev.Shutdown()
}
