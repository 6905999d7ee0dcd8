// Package fitness implements the Bounds & Fitness Wrapper shared by the LDE
// and MODE engines: it owns the decision-space bounds, the incumbent
// mean/sigma state, feasibility repair, and the sampling distributions both
// engines draw candidates from. It is grounded on the `Fitness` class of the
// original ldeoptimizer.cpp, generalized to also serve MODE's multi-objective
// evaluation (a vector of nobj+ncon results per call instead of one scalar).
package fitness

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/evocore/internal/rng"
)

// nonFiniteSentinel replaces any non-finite objective output, per the
// DomainError policy: never abort, just push the offending candidate to the
// back of the population.
const nonFiniteSentinel = 1e99

// RawObjective is the user-supplied objective. It returns one value for a
// single-objective problem (LDE) or nobj+ncon values for a multi-objective
// one (MODE, objectives followed by constraints).
type RawObjective func(x []float64) []float64

// Bounds holds the optional decision-space box. A nil Lower/Upper pair means
// the search is unbounded.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Bounded reports whether both bounds vectors are present.
func (b Bounds) Bounded() bool {
	return b.Lower != nil && b.Upper != nil
}

// Fitness evaluates the user objective and owns the incumbent-anchored
// sampling distribution described in spec.md §4.1/§4.2. A Fitness is owned by
// exactly one engine for its lifetime, except when an engine is driven via
// ask/tell, in which case it outlives individual calls but not the engine
// itself (spec.md §3 "Lifecycles").
type Fitness struct {
	dim       int
	bounds    Bounds
	ints      []bool
	scale     []float64 // upper - lower, or all-ones when unbounded
	maxSigma  []float64 // 0.25 * scale
	sigma0    []float64 // 0.5 * scale ⊙ inputSigma, fixed at construction
	sigma     []float64 // current adaptive sigma, mutated by UpdateSigma
	xmean     []float64 // incumbent mean, mutated by UpdateSigma
	rng       *rng.Source
	objective RawObjective
	evalCount int64 // atomic: workers in internal/peval increment this too
}

// New builds a Fitness wrapper. guess seeds the incumbent mean; inputSigma is
// the per-coordinate initial standard deviation as a fraction of scale (a
// single-element slice broadcasts to all dim coordinates, matching the
// original's "sigma_.size() == 1" special case). bounds may be the zero
// value (Bounds{}) for an unbounded search.
func New(dim int, bounds Bounds, guess, inputSigma []float64, ints []bool, r *rng.Source, objective RawObjective) *Fitness {
	scale := make([]float64, dim)
	if bounds.Bounded() {
		for i := 0; i < dim; i++ {
			scale[i] = bounds.Upper[i] - bounds.Lower[i]
		}
	} else {
		for i := 0; i < dim; i++ {
			scale[i] = 1.0
		}
	}

	maxSigma := make([]float64, dim)
	sigma0 := make([]float64, dim)
	for i := 0; i < dim; i++ {
		maxSigma[i] = 0.25 * scale[i]
		s := inputSigma[0]
		if len(inputSigma) > 1 {
			s = inputSigma[i]
		}
		sigma0[i] = 0.5 * scale[i] * s
	}
	sigma := append([]float64{}, sigma0...)

	xmean := append([]float64{}, guess...)

	return &Fitness{
		dim:       dim,
		bounds:    bounds,
		ints:      ints,
		scale:     scale,
		maxSigma:  maxSigma,
		sigma0:    sigma0,
		sigma:     sigma,
		xmean:     xmean,
		rng:       r,
		objective: objective,
	}
}

// Dim returns the problem dimension.
func (f *Fitness) Dim() int { return f.dim }

// Bounds returns the configured bounds (zero value if unbounded).
func (f *Fitness) Bounds() Bounds { return f.bounds }

// Ints returns the per-coordinate integer flags.
func (f *Fitness) Ints() []bool { return f.ints }

// Scale returns upper-lower (or all-ones when unbounded).
func (f *Fitness) Scale() []float64 { return f.scale }

// Sigma returns the current adaptive per-coordinate standard deviation.
func (f *Fitness) Sigma() []float64 { return f.sigma }

// MaxSigma returns the per-coordinate sigma ceiling (0.25 * scale).
func (f *Fitness) MaxSigma() []float64 { return f.maxSigma }

// Evaluations returns the number of Eval calls so far, safe for concurrent
// readers (internal/peval workers call Eval from multiple goroutines).
func (f *Fitness) Evaluations() int64 {
	return atomic.LoadInt64(&f.evalCount)
}

// Eval scores x, rounding integer coordinates first and coercing any
// non-finite result to 1e99. It never panics on a bad objective result —
// only a panicking objective itself propagates, per the ObjectiveException
// policy in spec.md §7, which callers recover at the engine boundary.
func (f *Fitness) Eval(x []float64) []float64 {
	f.roundInts(x)
	y := f.objective(x)
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			y[i] = nonFiniteSentinel
		}
	}
	atomic.AddInt64(&f.evalCount, 1)
	return y
}

// EvalScalar is the single-objective convenience used by LDE.
func (f *Fitness) EvalScalar(x []float64) float64 {
	return f.Eval(x)[0]
}

func (f *Fitness) roundInts(x []float64) {
	for i, isInt := range f.ints {
		if isInt {
			x[i] = math.Round(x[i])
		}
	}
}

// Feasible is the bounds-only predicate for a single coordinate.
func (f *Fitness) Feasible(i int, v float64) bool {
	if !f.bounds.Bounded() {
		return true
	}
	return v >= f.bounds.Lower[i] && v <= f.bounds.Upper[i]
}

// ClosestFeasible clamps each coordinate into [lower, upper] when bounds are
// present; it is the identity otherwise.
func (f *Fitness) ClosestFeasible(x []float64) []float64 {
	if !f.bounds.Bounded() {
		return x
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = clamp(v, f.bounds.Lower[i], f.bounds.Upper[i])
	}
	return out
}

// ClosestFeasibleInPlace is ClosestFeasible without allocating, used on the
// NSGA offspring matrix where clamping happens column by column.
func (f *Fitness) ClosestFeasibleInPlace(x []float64) {
	if !f.bounds.Bounded() {
		return
	}
	for i := range x {
		x[i] = clamp(x[i], f.bounds.Lower[i], f.bounds.Upper[i])
	}
}

// UpdateSigma adapts the sigma state toward the latest improving vector X,
// per spec.md §4.1: sigma <- min(|xmean - X| * 0.5, maxSigma), then
// xmean <- X. LDE-only; MODE never calls this, so its sigma stays pinned at
// sigma0 for the life of the run.
func (f *Fitness) UpdateSigma(x []float64) {
	for i := range f.xmean {
		delta := math.Abs(f.xmean[i]-x[i]) * 0.5
		f.sigma[i] = math.Min(delta, f.maxSigma[i])
	}
	copy(f.xmean, x)
}

// Sample draws one candidate vector: uniform in the box when bounded,
// otherwise the incumbent-anchored normal mixture of spec.md §4.2.
func (f *Fitness) Sample() []float64 {
	if f.bounds.Bounded() {
		x := make([]float64, f.dim)
		for i := 0; i < f.dim; i++ {
			x[i] = f.bounds.Lower[i] + f.scale[i]*f.rng.Float64()
		}
		return x
	}
	return f.NormX()
}

// SampleCoord is the one-dimensional version of Sample.
func (f *Fitness) SampleCoord(i int) float64 {
	if f.bounds.Bounded() {
		return f.bounds.Lower[i] + f.scale[i]*f.rng.Float64()
	}
	return f.NormCoord(i)
}

// NormX draws a full vector from a 50/50 mixture of N(xmean, sigma0) and
// N(xmean, sigma), rejecting until every coordinate is feasible — the
// "normX" of spec.md §4.1, used both by the unbounded Sample() and directly
// by LDE's age-based reinitialization (spec.md §4.3 step g), bounded or not.
func (f *Fitness) NormX() []float64 {
	useInitial := f.rng.Float64() < 0.5
	x := make([]float64, f.dim)
	for i := 0; i < f.dim; i++ {
		x[i] = f.normCoordRejectWith(i, useInitial)
	}
	return x
}

// NormCoord is the per-coordinate rejection-sampling form — "normX_i" in
// spec.md §4.1 — used by LDE's DE/best/1 feasibility repair (spec.md §4.3
// step c) and, through SampleCoord, by the integer-mutation resample of an
// unbounded search. Always the incumbent-
// anchored Gaussian with per-coordinate rejection, bounded or not; unlike
// SampleCoord it never falls back to a uniform box draw.
func (f *Fitness) NormCoord(i int) float64 {
	useInitial := f.rng.Float64() < 0.5
	return f.normCoordRejectWith(i, useInitial)
}

func (f *Fitness) normCoordRejectWith(i int, useInitial bool) float64 {
	for {
		v := f.normCoordWith(i, useInitial)
		if f.Feasible(i, v) {
			return v
		}
	}
}

func (f *Fitness) normCoordWith(i int, useInitial bool) float64 {
	sd := f.sigma[i]
	if useInitial {
		sd = f.sigma0[i]
	}
	return f.xmean[i] + f.rng.Normal()*sd
}

// NormFrac returns the position of v within [lower[i], upper[i]] as a
// fraction in [0, 1], the "norm_i" helper MODE's polynomial mutation uses to
// shape its mutation delta. When unbounded this has no natural bounds-
// relative meaning, so it returns 0.5 (documented Open Question resolution
// in DESIGN.md: a neutral, symmetric mutation shape).
func (f *Fitness) NormFrac(i int, v float64) float64 {
	if !f.bounds.Bounded() || f.scale[i] == 0 {
		return 0.5
	}
	return clamp((v-f.bounds.Lower[i])/f.scale[i], 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Modify applies the mixed-integer mutation of spec.md §4.6 in place: a noop
// when no coordinate is flagged integer, otherwise each integer coordinate is
// independently resampled via SampleCoord with probability rate/n_ints, where
// rate = min_mutate + U(0,1)*(max_mutate-min_mutate). The resample truncates
// toward zero, matching the original's `(int)` cast — not the round-to-
// nearest rule roundInts applies right before evaluation.
func (f *Fitness) Modify(x []float64, minMutate, maxMutate float64) {
	nInts := 0
	for _, isInt := range f.ints {
		if isInt {
			nInts++
		}
	}
	if nInts == 0 {
		return
	}
	rate := minMutate + f.rng.Float64()*(maxMutate-minMutate)
	for i, isInt := range f.ints {
		if isInt && f.rng.Float64() < rate/float64(nInts) {
			x[i] = math.Trunc(f.SampleCoord(i))
		}
	}
}
