package evocore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cwbudde/evocore/internal/mode"
)

// MODEConfig configures one MODE run or ask/tell session.
type MODEConfig struct {
	Objective func(x []float64) (obj []float64, con []float64)
	// Log is the optional periodic progress callback; returning true
	// requests early termination.
	Log func(x [][]float64, y [][]float64) bool

	Dim, Nobj, Ncon int
	Lower, Upper    []float64
	Ints            []bool
	Seed            int64

	PopSize        int
	MaxEvaluations int

	F0, CR0                float64
	ProC, DisC, ProM, DisM float64
	MinMutate, MaxMutate   float64

	NSGAUpdate   bool
	ParetoUpdate float64
	LogPeriod    int

	// Workers, when > 1, selects the delayed-update parallel driver for
	// OptimizeMODE instead of the serial one.
	Workers int
}

// MODEResult is the outcome of one MODE run: the full 2*popsize working
// population and its objective/constraint rows, plus run bookkeeping.
type MODEResult struct {
	X           [][]float64
	Y           [][]float64
	Iterations  int
	Evaluations int64
	Stop        bool
}

func toEngineConfig(cfg MODEConfig) mode.Config {
	return mode.Config{
		Objective:      cfg.Objective,
		Log:            cfg.Log,
		Dim:            cfg.Dim,
		Nobj:           cfg.Nobj,
		Ncon:           cfg.Ncon,
		Lower:          cfg.Lower,
		Upper:          cfg.Upper,
		Ints:           cfg.Ints,
		Seed:           cfg.Seed,
		PopSize:        cfg.PopSize,
		MaxEvaluations: cfg.MaxEvaluations,
		F0:             cfg.F0,
		CR0:            cfg.CR0,
		ProC:           cfg.ProC,
		DisC:           cfg.DisC,
		ProM:           cfg.ProM,
		DisM:           cfg.DisM,
		MinMutate:      cfg.MinMutate,
		MaxMutate:      cfg.MaxMutate,
		NSGAUpdate:     cfg.NSGAUpdate,
		ParetoUpdate:   cfg.ParetoUpdate,
		LogPeriod:      cfg.LogPeriod,
	}
}

func validateMODE(cfg MODEConfig) error {
	if cfg.Dim <= 0 {
		return fmt.Errorf("evocore: Dim must be positive, got %d", cfg.Dim)
	}
	if cfg.Objective == nil {
		return fmt.Errorf("evocore: Objective is required")
	}
	return nil
}

// OptimizeMODE runs the multi-objective engine to completion, using the
// serial driver unless Workers > 1 selects the delayed-update parallel one.
// It recovers a panicking Objective into an error, per spec.md §7.
func OptimizeMODE(ctx context.Context, cfg MODEConfig) (res MODEResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evocore: MODE objective panicked: %v", r)
		}
	}()
	if err := validateMODE(cfg); err != nil {
		return MODEResult{}, err
	}

	e := mode.New(toEngineConfig(cfg))
	var r mode.Result
	if cfg.Workers > 1 {
		r = e.DoOptimizeDelayedUpdate(ctxOrBackground(ctx), cfg.Workers)
	} else {
		r = e.DoOptimize(ctxOrBackground(ctx))
	}
	return MODEResult{
		X:           r.X,
		Y:           r.Y,
		Iterations:  r.Iterations,
		Evaluations: r.Evaluations,
		Stop:        r.Stop,
	}, nil
}

// Handle is the opaque identifier for an ask/tell MODE session, the Go
// analogue of the foreign ABI's void* handle returned by initMODE_C.
type Handle uuid.UUID

var modeHandles sync.Map // Handle -> *mode.Engine

// NewMODE creates an ask/tell MODE session and returns its Handle. Pair with
// DestroyMODE when the session is no longer needed.
func NewMODE(cfg MODEConfig) (Handle, error) {
	if err := validateMODE(cfg); err != nil {
		return Handle{}, err
	}
	h := Handle(uuid.New())
	modeHandles.Store(h, mode.New(toEngineConfig(cfg)))
	return h, nil
}

func lookupMODE(h Handle) (*mode.Engine, error) {
	v, ok := modeHandles.Load(h)
	if !ok {
		return nil, fmt.Errorf("evocore: unknown MODE handle %s", uuid.UUID(h))
	}
	return v.(*mode.Engine), nil
}

// AskMODE produces the next trial vector and its destination slot for the
// session identified by h.
func AskMODE(h Handle) (x []float64, slot int, err error) {
	e, err := lookupMODE(h)
	if err != nil {
		return nil, 0, err
	}
	x, slot = e.Ask()
	return x, slot, nil
}

// TellMODE reports an evaluated trial result back to the session. It
// returns the session's terminate flag, true once the Log callback has
// requested early termination.
func TellMODE(h Handle, y, x []float64, slot int) (stop bool, err error) {
	e, err := lookupMODE(h)
	if err != nil {
		return false, err
	}
	return e.Tell(y, x, slot), nil
}

// AskAllMODE is the batch form of AskMODE: one trial per population slot.
func AskAllMODE(h Handle) ([][]float64, error) {
	e, err := lookupMODE(h)
	if err != nil {
		return nil, err
	}
	return e.AskAll(), nil
}

// TellAllMODE is the batch form of TellMODE: reports one trial result per
// population slot and runs survival once.
func TellAllMODE(h Handle, ys [][]float64) (stop bool, err error) {
	e, err := lookupMODE(h)
	if err != nil {
		return false, err
	}
	return e.TellAll(ys), nil
}

// TellMODESwitch is TellAllMODE but first reconfigures the survival/
// variation mode, the Go analogue of tellMODE_switchC.
func TellMODESwitch(h Handle, ys [][]float64, nsgaUpdate bool, paretoUpdate float64) (stop bool, err error) {
	e, err := lookupMODE(h)
	if err != nil {
		return false, err
	}
	return e.TellAllSwitch(ys, nsgaUpdate, paretoUpdate), nil
}

// PopulationMODE returns the session's current working population, the Go
// analogue of populationMODE_C.
func PopulationMODE(h Handle) (x, y [][]float64, err error) {
	e, err := lookupMODE(h)
	if err != nil {
		return nil, nil, err
	}
	x, y = e.Population()
	return x, y, nil
}

// DestroyMODE releases an ask/tell session's resources, the Go analogue of
// destroyMODE_C.
func DestroyMODE(h Handle) {
	modeHandles.Delete(h)
}
