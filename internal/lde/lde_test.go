package lde

import (
	"math"
	"testing"
)

func sphere(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return s
}

func rosenbrock2(x []float64) float64 {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b
}

// S1: sphere, dim=5, seed=42, expect bestY < 1e-8 within the evaluation budget.
func TestRunSphereConverges(t *testing.T) {
	dim := 5
	cfg := Config{
		Objective:      sphere,
		Dim:            dim,
		Init:           make([]float64, dim),
		Sigma:          []float64{1.0},
		Lower:          repeat(dim, -5),
		Upper:          repeat(dim, 5),
		Ints:           make([]bool, dim),
		Seed:           42,
		MaxEvaluations: 20000,
	}
	for i := range cfg.Init {
		cfg.Init[i] = 2.0
	}
	e := New(cfg)
	res := e.Run()
	if res.BestY >= 1e-8 {
		t.Fatalf("sphere did not converge: bestY=%g after %d evaluations", res.BestY, res.Evaluations)
	}
}

// S2: Rosenbrock 2D, guess=[0,0], sigma=[0.3,0.3], seed=7, expect within
// 1e-4 of (1, 1) per spec.md §8's literal S2 scenario and tolerance.
func TestRunRosenbrockConverges(t *testing.T) {
	cfg := Config{
		Objective:      rosenbrock2,
		Dim:            2,
		Init:           []float64{0, 0},
		Sigma:          []float64{0.3, 0.3},
		Lower:          []float64{-5, -5},
		Upper:          []float64{5, 5},
		Ints:           []bool{false, false},
		Seed:           7,
		MaxEvaluations: 50000,
	}
	e := New(cfg)
	res := e.Run()
	dx := res.BestX[0] - 1
	dy := res.BestX[1] - 1
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist >= 1e-4 {
		t.Fatalf("rosenbrock did not converge close enough: x=%v bestY=%g dist=%g", res.BestX, res.BestY, dist)
	}
}

// Property 1: every accepted candidate stays within the configured bounds.
func TestBestStaysWithinBounds(t *testing.T) {
	lower := []float64{-1, -1, -1}
	upper := []float64{1, 1, 1}
	cfg := Config{
		Objective:      sphere,
		Dim:            3,
		Init:           []float64{0.9, -0.9, 0.5},
		Sigma:          []float64{1.0},
		Lower:          lower,
		Upper:          upper,
		Ints:           make([]bool, 3),
		Seed:           1,
		MaxEvaluations: 5000,
	}
	e := New(cfg)
	res := e.Run()
	for i, v := range res.BestX {
		if v < lower[i]-1e-9 || v > upper[i]+1e-9 {
			t.Fatalf("bestX[%d]=%g escaped bounds [%g,%g]", i, v, lower[i], upper[i])
		}
	}
}

// Property 2: coordinates flagged integer are always whole numbers.
func TestIntegerCoordinatesStayIntegral(t *testing.T) {
	cfg := Config{
		Objective:      sphere,
		Dim:            4,
		Init:           []float64{3, -2, 1, 0},
		Sigma:          []float64{1.0},
		Lower:          []float64{-10, -10, -10, -10},
		Upper:          []float64{10, 10, 10, 10},
		Ints:           []bool{true, false, true, false},
		Seed:           3,
		MaxEvaluations: 5000,
	}
	e := New(cfg)
	res := e.Run()
	if res.BestX[0] != math.Trunc(res.BestX[0]) {
		t.Fatalf("coordinate 0 is flagged integer but got %g", res.BestX[0])
	}
	if res.BestX[2] != math.Trunc(res.BestX[2]) {
		t.Fatalf("coordinate 2 is flagged integer but got %g", res.BestX[2])
	}
}

// Property 3: the incumbent best value never worsens across the run.
func TestBestIsMonotoneNonIncreasing(t *testing.T) {
	cfg := Config{
		Objective:      sphere,
		Dim:            4,
		Init:           []float64{3, 3, 3, 3},
		Sigma:          []float64{1.0},
		Lower:          []float64{-5, -5, -5, -5},
		Upper:          []float64{5, 5, 5, 5},
		Ints:           make([]bool, 4),
		Seed:           11,
		MaxEvaluations: 8000,
	}
	e := New(cfg)
	prev := math.Inf(1)
	for e.fit.Evaluations() < int64(cfg.MaxEvaluations) {
		e.iter++
		if e.step() {
			break
		}
		if e.bestY > prev {
			t.Fatalf("best fitness worsened: prev=%g now=%g", prev, e.bestY)
		}
		prev = e.bestY
	}
}

// Property 6: accepting an improving candidate never increases sigma beyond
// maxSigma; checked on the sigma left at the end of a run.
func TestSigmaNeverExceedsMax(t *testing.T) {
	cfg := Config{
		Objective:      sphere,
		Dim:            3,
		Init:           []float64{4, -4, 4},
		Sigma:          []float64{1.0},
		Lower:          []float64{-5, -5, -5},
		Upper:          []float64{5, 5, 5},
		Ints:           make([]bool, 3),
		Seed:           5,
		MaxEvaluations: 4000,
	}
	e := New(cfg)
	e.Run()
	sigma := e.fit.Sigma()
	maxSigma := e.fit.MaxSigma()
	for i := range sigma {
		if sigma[i] > maxSigma[i]+1e-9 {
			t.Fatalf("sigma[%d]=%g exceeds maxSigma[%d]=%g", i, sigma[i], i, maxSigma[i])
		}
	}
}

// ConvergenceTracker should report convergence once improvements fall below
// threshold for Patience consecutive updates.
func TestConvergenceTrackerDetectsStall(t *testing.T) {
	tr := NewConvergenceTracker(3, 0.01)
	if tr.Update(100) {
		t.Fatal("first update should never report convergence")
	}
	if tr.Update(50) {
		t.Fatal("halving is a significant improvement, should not converge")
	}
	converged := false
	for i := 0; i < 5; i++ {
		if tr.Update(50 - float64(i)*0.001) {
			converged = true
			break
		}
	}
	if !converged {
		t.Fatal("expected convergence after a run of sub-threshold improvements")
	}
}

func repeat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
