// Package evocore is the public surface of the optimization core: the LDE
// single-objective refinement engine and the MODE multi-objective engine,
// exposed as plain Go functions rather than the foreign-ABI entry points of
// the original implementation (spec.md §6). Bounds-nil means unbounded;
// every entry point recovers a panicking user objective into an error
// instead of crashing the process, per spec.md §7.
package evocore

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/evocore/internal/lde"
)

// LDEConfig configures one LDE run. Lower/Upper nil means unbounded. Zero
// values for the tuning fields fall back to the engine's defaults.
type LDEConfig struct {
	Objective      func(x []float64) float64
	Dim            int
	Init           []float64
	Sigma          []float64
	Lower, Upper   []float64
	Ints           []bool
	Seed           int64
	PopSize        int
	MaxEvaluations int
	Keep           float64
	StopFitness    float64
	F0, CR0        float64
	MinMutate      float64
	MaxMutate      float64

	// Convergence, if non-nil, attaches an optional early-stop tracker (the
	// ambient addition of SPEC_FULL.md §4.3, not present in the original).
	Convergence *ConvergenceConfig
}

// ConvergenceConfig configures the optional relative-improvement early-stop
// tracker.
type ConvergenceConfig struct {
	Patience  int
	Threshold float64
}

// LDEResult is the outcome of one LDE run.
type LDEResult struct {
	BestX       []float64
	BestY       float64
	Evaluations int64
	Iterations  int
	// Stop is 1 when the run ended because BestY fell below StopFitness,
	// and 0 otherwise.
	Stop int
}

// OptimizeLDE runs the single-objective refinement engine to completion. It
// recovers a panicking Objective into an error, per the ObjectiveException
// policy of spec.md §7. ctx is accepted for API parity with OptimizeMODE;
// the serial LDE loop has no suspension points to cancel (spec.md §5), so
// it is not consulted mid-run — a nil ctx is treated as context.Background.
func OptimizeLDE(ctx context.Context, cfg LDEConfig) (res LDEResult, err error) {
	_ = ctxOrBackground(ctx)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evocore: LDE objective panicked: %v", r)
		}
	}()

	if cfg.Dim <= 0 {
		return LDEResult{}, fmt.Errorf("evocore: Dim must be positive, got %d", cfg.Dim)
	}
	if cfg.Objective == nil {
		return LDEResult{}, fmt.Errorf("evocore: Objective is required")
	}
	if cfg.Init == nil {
		cfg.Init = make([]float64, cfg.Dim)
	}
	if cfg.Sigma == nil {
		cfg.Sigma = []float64{1.0}
	}
	if cfg.Ints == nil {
		cfg.Ints = make([]bool, cfg.Dim)
	}
	stopFitness := cfg.StopFitness
	if stopFitness == 0 {
		stopFitness = math.Inf(1)
	}

	e := lde.New(lde.Config{
		Objective:      cfg.Objective,
		Dim:            cfg.Dim,
		Init:           cfg.Init,
		Sigma:          cfg.Sigma,
		Lower:          cfg.Lower,
		Upper:          cfg.Upper,
		Ints:           cfg.Ints,
		Seed:           cfg.Seed,
		PopSize:        cfg.PopSize,
		MaxEvaluations: cfg.MaxEvaluations,
		Keep:           cfg.Keep,
		StopFitness:    stopFitness,
		F0:             cfg.F0,
		CR0:            cfg.CR0,
		MinMutate:      cfg.MinMutate,
		MaxMutate:      cfg.MaxMutate,
	})
	if cfg.Convergence != nil {
		e.WithConvergenceTracker(lde.NewConvergenceTracker(cfg.Convergence.Patience, cfg.Convergence.Threshold))
	}

	r := e.Run()
	return LDEResult{
		BestX:       r.BestX,
		BestY:       r.BestY,
		Evaluations: r.Evaluations,
		Iterations:  r.Iterations,
		Stop:        r.Stop,
	}, nil
}

// ctxOrBackground is a small guard so library entry points stay usable
// without forcing every caller to thread a context.
func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
