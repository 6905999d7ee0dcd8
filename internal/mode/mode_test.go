package mode

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/evocore/internal/rank"
)

func zdt1(x []float64) ([]float64, []float64) {
	f1 := x[0]
	g := 1.0
	for _, v := range x[1:] {
		g += 9.0 * v / float64(len(x)-1)
	}
	f2 := g * (1 - math.Sqrt(f1/g))
	return []float64{f1, f2}, nil
}

func unitBounds(dim int) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1.0
	}
	return lower, upper
}

// S3: ZDT1 (30 variables, dim=30, popsize=100, maxEvals=25000, NSGA mode)
// per spec.md §8's literal S3 scenario. The final population's non-dominated
// subset (duplicates removed) must have at least 90 members and span
// f1 across [0, 1], matching the known front f2 = 1 - sqrt(f1).
func TestDoOptimizeZDT1NSGAFrontShape(t *testing.T) {
	dim := 30
	lower, upper := unitBounds(dim)
	cfg := Config{
		Objective:      zdt1,
		Nobj:           2,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, dim),
		Seed:           21,
		PopSize:        100,
		MaxEvaluations: 25000,
		NSGAUpdate:     true,
	}
	e := New(cfg)
	res := e.DoOptimize(context.Background())

	objs := rank.Objectives{make([]float64, cfg.PopSize), make([]float64, cfg.PopSize)}
	for i := 0; i < cfg.PopSize; i++ {
		objs[0][i] = res.Y[i][0]
		objs[1][i] = res.Y[i][1]
	}
	domination := rank.ParetoLevels(objs)
	maxDom := domination[0]
	for _, d := range domination {
		if d > maxDom {
			maxDom = d
		}
	}

	unique := make(map[string]bool)
	minF1, maxF1 := math.Inf(1), math.Inf(-1)
	for i, d := range domination {
		if d != maxDom {
			continue
		}
		f1 := res.Y[i][0]
		unique[fmt.Sprintf("%.9f|%.9f", f1, res.Y[i][1])] = true
		if f1 < minF1 {
			minF1 = f1
		}
		if f1 > maxF1 {
			maxF1 = f1
		}
	}
	if len(unique) < 90 {
		t.Fatalf("non-dominated subset too small: got %d members, want >= 90", len(unique))
	}
	if minF1 > 0.1 || maxF1 < 0.9 {
		t.Fatalf("non-dominated subset does not span f1 in [0,1]: got [%g, %g]", minF1, maxF1)
	}
}

// S4: DE mode under an inequality constraint — the post-run population must
// hold at least one feasible survivor. The property-8 ranking priority itself
// (feasible outranks infeasible) is checked in internal/rank.
func TestDoOptimizeDEConstrainedFeasibilityPriority(t *testing.T) {
	dim := 3
	lower := []float64{-5, -5, -5}
	upper := []float64{5, 5, 5}
	objective := func(x []float64) ([]float64, []float64) {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		// constraint: x[0] + x[1] + x[2] >= 1, i.e. 1 - sum <= 0
		con := 1.0 - (x[0] + x[1] + x[2])
		return []float64{s}, []float64{con}
	}
	cfg := Config{
		Objective:      objective,
		Nobj:           1,
		Ncon:           1,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, dim),
		Seed:           9,
		PopSize:        30,
		MaxEvaluations: 6000,
	}
	e := New(cfg)
	res := e.DoOptimize(context.Background())

	feasibleBest := math.Inf(1)
	infeasibleBest := math.Inf(1)
	anyFeasible := false
	for i := 0; i < cfg.PopSize; i++ {
		con := res.Y[i][1]
		f := res.Y[i][0]
		if con <= 0 {
			anyFeasible = true
			if f < feasibleBest {
				feasibleBest = f
			}
		} else if f < infeasibleBest {
			infeasibleBest = f
		}
	}
	if !anyFeasible {
		t.Fatal("expected at least one feasible survivor after a constrained run")
	}
	_ = infeasibleBest // informational only; ranking priority is verified in internal/rank
}

// S5: mixed-integer DE mode — integer-flagged coordinates stay integral
// across the whole surviving population.
func TestDoOptimizeMixedIntegerStaysIntegral(t *testing.T) {
	dim := 4
	lower := []float64{-10, -10, -10, -10}
	upper := []float64{10, 10, 10, 10}
	objective := func(x []float64) ([]float64, []float64) {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return []float64{s}, nil
	}
	cfg := Config{
		Objective:      objective,
		Nobj:           1,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           []bool{true, false, true, false},
		Seed:           17,
		PopSize:        20,
		MaxEvaluations: 3000,
	}
	e := New(cfg)
	res := e.DoOptimize(context.Background())
	for i := 0; i < cfg.PopSize; i++ {
		x := res.X[i]
		if x[0] != math.Trunc(x[0]) {
			t.Fatalf("survivor %d coordinate 0 is flagged integer but got %g", i, x[0])
		}
		if x[2] != math.Trunc(x[2]) {
			t.Fatalf("survivor %d coordinate 2 is flagged integer but got %g", i, x[2])
		}
	}
}

// S6: the parallel delayed-update driver must respect the evaluation budget
// to within workers-1 overshoot (property 4), since in-flight evaluations
// are never interrupted.
func TestDoOptimizeDelayedUpdateRespectsBudget(t *testing.T) {
	dim := 3
	lower := []float64{-5, -5, -5}
	upper := []float64{5, 5, 5}
	objective := func(x []float64) ([]float64, []float64) {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return []float64{s}, nil
	}
	workers := 4
	maxEvals := 2000
	cfg := Config{
		Objective:      objective,
		Nobj:           1,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, dim),
		Seed:           5,
		PopSize:        20,
		MaxEvaluations: maxEvals,
	}
	e := New(cfg)
	res := e.DoOptimizeDelayedUpdate(context.Background(), workers)
	if res.Evaluations > int64(maxEvals+workers-1) {
		t.Fatalf("evaluations=%d exceeded budget+overshoot bound %d", res.Evaluations, maxEvals+workers-1)
	}
	if res.Evaluations < int64(maxEvals) {
		t.Fatalf("evaluations=%d finished under budget %d", res.Evaluations, maxEvals)
	}
}

// Property 9: the population never exceeds popsize survivors once a round
// has completed; the working buffer always holds exactly 2*popsize rows.
func TestPopulationBufferSizeInvariant(t *testing.T) {
	dim := 3
	lower := []float64{-1, -1, -1}
	upper := []float64{1, 1, 1}
	objective := func(x []float64) ([]float64, []float64) {
		s := 0.0
		for _, v := range x {
			s += v * v
		}
		return []float64{s}, nil
	}
	cfg := Config{
		Objective:      objective,
		Nobj:           1,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, dim),
		Seed:           2,
		PopSize:        16,
		MaxEvaluations: 1000,
	}
	e := New(cfg)
	x, y := e.Population()
	if len(x) != 2*cfg.PopSize || len(y) != 2*cfg.PopSize {
		t.Fatalf("expected 2*popsize=%d working rows, got x=%d y=%d", 2*cfg.PopSize, len(x), len(y))
	}
	e.DoOptimize(context.Background())
	x, y = e.Population()
	if len(x) != 2*cfg.PopSize || len(y) != 2*cfg.PopSize {
		t.Fatalf("working buffer changed size after a run: x=%d y=%d", len(x), len(y))
	}
}

// Ask's round-robin slot bookkeeping: every slot in [0, popsize) is produced
// exactly once per round.
func TestAskCyclesEverySlotOncePerRound(t *testing.T) {
	dim := 2
	lower := []float64{-1, -1}
	upper := []float64{1, 1}
	objective := func(x []float64) ([]float64, []float64) {
		return []float64{x[0]*x[0] + x[1]*x[1]}, nil
	}
	cfg := Config{
		Objective:      objective,
		Nobj:           1,
		Dim:            dim,
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, dim),
		Seed:           1,
		PopSize:        10,
		MaxEvaluations: 1000,
	}
	e := New(cfg)
	seen := make(map[int]bool)
	for i := 0; i < cfg.PopSize; i++ {
		_, p := e.Ask()
		if seen[p] {
			t.Fatalf("slot %d asked twice within one round", p)
		}
		seen[p] = true
	}
	if len(seen) != cfg.PopSize {
		t.Fatalf("expected %d distinct slots, saw %d", cfg.PopSize, len(seen))
	}
}
