// Package lde implements the single-objective Differential Evolution
// refinement engine: DE/best/1 recombination with per-variable feasibility
// repair, a temporal-locality secondary trial, and age-based individual
// reinitialization. Grounded on the original LDeOptimizer in
// ldeoptimizer.cpp; the teacher's internal/fit.ConvergenceTracker supplies
// the idiom for the optional early-stop addition.
package lde

import (
	"log/slog"
	"math"

	"github.com/cwbudde/evocore/internal/fitness"
	"github.com/cwbudde/evocore/internal/rng"
)

// Config holds the LDE parameters of spec.md §4.3. Non-positive fields take
// the listed defaults.
type Config struct {
	Objective      func(x []float64) float64
	Dim            int
	Init           []float64
	Sigma          []float64
	Lower, Upper   []float64 // nil/nil means unbounded
	Ints           []bool
	Seed           int64
	PopSize        int
	MaxEvaluations int
	Keep           float64
	StopFitness    float64 // +Inf disables the stop-fitness threshold
	F0             float64
	CR0            float64
	MinMutate      float64
	MaxMutate      float64
}

// withDefaults returns a copy of cfg with non-positive fields replaced by
// the spec.md §4.3 defaults.
func (c Config) withDefaults() Config {
	if c.PopSize <= 0 {
		c.PopSize = 15 * c.Dim
	}
	if c.MaxEvaluations <= 0 {
		c.MaxEvaluations = 50000
	}
	if c.Keep <= 0 {
		c.Keep = 30
	}
	if c.F0 <= 0 {
		c.F0 = 0.5
	}
	if c.CR0 <= 0 {
		c.CR0 = 0.9
	}
	if c.MinMutate <= 0 {
		c.MinMutate = 0.1
	}
	if c.MaxMutate <= 0 {
		c.MaxMutate = 0.5
	}
	if c.StopFitness == 0 {
		c.StopFitness = math.Inf(1)
	}
	return c
}

// Result mirrors the trailing fields of the foreign ABI's result buffer
// (spec.md §6): best X, best Y, evaluations, iterations, stop flag.
type Result struct {
	BestX       []float64
	BestY       float64
	Evaluations int64
	Iterations  int
	Stop        int
}

// Engine is a single doOptimize-style LDE run. It owns its population, RNG,
// and Fitness wrapper for its lifetime (spec.md §3 "Lifecycles").
type Engine struct {
	cfg    Config
	fit    *fitness.Fitness
	rng    *rng.Source
	popX   [][]float64
	popY   []float64
	popIt  []int
	bestI  int
	bestX  []float64
	bestY  float64
	stop   int
	iter   int
	keep   float64
	stopAt *ConvergenceTracker
}

// New constructs an Engine ready to run, with the initial population seeded
// at the guess vector per spec.md §4.3 "Initialization".
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	r := rng.New(cfg.Seed)

	var bounds fitness.Bounds
	if cfg.Lower != nil && cfg.Upper != nil {
		bounds = fitness.Bounds{Lower: cfg.Lower, Upper: cfg.Upper}
	}

	objective := cfg.Objective
	fit := fitness.New(cfg.Dim, bounds, cfg.Init, cfg.Sigma, cfg.Ints, r, func(x []float64) []float64 {
		return []float64{objective(x)}
	})

	e := &Engine{
		cfg:   cfg,
		fit:   fit,
		rng:   r,
		popX:  make([][]float64, cfg.PopSize),
		popY:  make([]float64, cfg.PopSize),
		popIt: make([]int, cfg.PopSize),
		keep:  cfg.Keep,
	}
	for p := 0; p < cfg.PopSize; p++ {
		e.popX[p] = append([]float64{}, cfg.Init...)
		e.popY[p] = math.Inf(1)
	}
	e.bestI = 0
	e.bestX = append([]float64{}, cfg.Init...)
	e.bestY = math.Inf(1)
	return e
}

// ConvergenceTracker is the optional, opt-in ambient early-stop addition
// described in SPEC_FULL.md §4.3: a relative-improvement/patience detector
// modeled on the teacher's internal/fit.ConvergenceTracker. It never
// replaces the evaluation-budget or stop-fitness termination rules; it can
// only end a run earlier, the same way UserTerminate does in spec.md §7.
type ConvergenceTracker struct {
	Patience        int
	Threshold       float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given patience/threshold.
func NewConvergenceTracker(patience int, threshold float64) *ConvergenceTracker {
	return &ConvergenceTracker{Patience: patience, Threshold: threshold, lastSignificant: math.Inf(1)}
}

// Update records a new best cost and reports whether convergence has been
// detected (staleCount has reached Patience without a relative improvement
// of at least Threshold).
func (c *ConvergenceTracker) Update(cost float64) bool {
	if c == nil {
		return false
	}
	if math.IsInf(c.lastSignificant, 1) {
		c.lastSignificant = cost
		return false
	}
	improvement := (c.lastSignificant - cost) / c.lastSignificant
	if improvement >= c.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}
	c.staleCount++
	return c.staleCount >= c.Patience
}

// WithConvergenceTracker attaches an optional early-stop tracker to the
// engine.
func (e *Engine) WithConvergenceTracker(t *ConvergenceTracker) *Engine {
	e.stopAt = t
	return e
}

// BestX returns the incumbent best vector.
func (e *Engine) BestX() []float64 { return e.bestX }

// BestY returns the incumbent best fitness.
func (e *Engine) BestY() float64 { return e.bestY }

// Run drives the generation loop until the evaluation budget is exhausted,
// the stop-fitness threshold is reached, or the convergence tracker (if
// attached) declares convergence. Mirrors LDeOptimizer::doOptimize.
func (e *Engine) Run() Result {
	for e.fit.Evaluations() < int64(e.cfg.MaxEvaluations) {
		e.iter++
		if e.step() {
			break
		}
	}
	return Result{
		BestX:       e.bestX,
		BestY:       e.bestY,
		Evaluations: e.fit.Evaluations(),
		Iterations:  e.iter,
		Stop:        e.stop,
	}
}

// step runs one generation (one full sweep over the population) and reports
// whether the run should stop.
func (e *Engine) step() bool {
	CR := e.cfg.CR0
	F := e.cfg.F0
	if e.iter%2 == 0 {
		CR *= 0.5
		F *= 0.5
	}

	for p := 0; p < e.cfg.PopSize; p++ {
		r1 := e.rng.IntnExcept(e.cfg.PopSize, p, e.bestI)
		r2 := e.rng.IntnExcept(e.cfg.PopSize, p, e.bestI, r1)
		pivot := e.rng.Intn(e.cfg.Dim)

		x := append([]float64{}, e.popX[p]...)
		xb := e.popX[e.bestI]
		x1 := e.popX[r1]
		x2 := e.popX[r2]
		for j := 0; j < e.cfg.Dim; j++ {
			if j == pivot || e.rng.Float64() < CR {
				x[j] = xb[j] + F*(x1[j]-x2[j])
				if !e.fit.Feasible(j, x[j]) {
					x[j] = e.fit.NormCoord(j)
				}
			}
		}
		e.fit.Modify(x, e.cfg.MinMutate, e.cfg.MaxMutate)
		y := e.fit.EvalScalar(x)

		if y < e.popY[p] {
			xNext := e.fit.ClosestFeasible(addScaled(xb, x, e.popX[p], 0.5))
			e.fit.Modify(xNext, e.cfg.MinMutate, e.cfg.MaxMutate)
			yNext := e.fit.EvalScalar(xNext)
			if yNext < y {
				x, y = xNext, yNext
			}

			e.popX[p] = x
			e.popY[p] = y
			e.popIt[p] = e.iter
			if y < e.popY[e.bestI] {
				e.bestI = p
				if y < e.bestY {
					e.fit.UpdateSigma(x)
					e.bestY = y
					e.bestX = append([]float64{}, x...)
					if !math.IsInf(e.cfg.StopFitness, 1) && e.bestY < e.cfg.StopFitness {
						e.stop = 1
						return true
					}
					if e.stopAt != nil && e.stopAt.Update(e.bestY) {
						slog.Info("LDE convergence detected, stopping early", "iterations", e.iter, "best", e.bestY)
						return true
					}
				}
			}
		} else if e.keep*e.rng.Float64() < float64(e.iter-e.popIt[p]) {
			e.popX[p] = e.fit.NormX()
			e.popY[p] = math.Inf(1)
		}
	}
	return false
}

// addScaled computes clamp-candidate xb + (x - xi)*scale, the temporal
// locality probe of spec.md §4.3 step 2f.
func addScaled(xb, x, xi []float64, scale float64) []float64 {
	out := make([]float64, len(xb))
	for i := range xb {
		out[i] = xb[i] + (x[i]-xi[i])*scale
	}
	return out
}
