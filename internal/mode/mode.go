// Package mode implements the multi-objective Differential Evolution /
// NSGA-II survival engine: DE/current-to-rand/1 and simulated-binary-
// crossover variation, enhanced constraint ranking, an ask/tell driver, and
// a delayed-update parallel evaluation mode. Grounded on the original
// MoDeOptimizer in modeoptimizer.cpp; survival ranking is delegated to
// internal/rank and parallel evaluation to internal/peval.
package mode

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"github.com/cwbudde/evocore/internal/fitness"
	"github.com/cwbudde/evocore/internal/peval"
	"github.com/cwbudde/evocore/internal/rank"
	"github.com/cwbudde/evocore/internal/rng"
)

// Config holds the MODE parameters of spec.md §4.5. Non-positive fields take
// the listed defaults.
type Config struct {
	// Objective returns the objective vector and the constraint vector
	// (violated constraints are positive, satisfied are <= 0). Ncon may be
	// zero, in which case con is ignored.
	Objective func(x []float64) (obj []float64, con []float64)
	// Log is the optional periodic callback (spec.md §4.5 "log period"). It
	// receives the current population's decision vectors and objective+
	// constraint rows; returning true requests early termination.
	Log func(x [][]float64, y [][]float64) bool

	Dim, Nobj, Ncon int
	Lower, Upper    []float64 // nil/nil means unbounded
	Ints            []bool
	Seed            int64

	PopSize        int
	MaxEvaluations int

	F0, CR0                float64
	ProC, DisC, ProM, DisM float64
	MinMutate, MaxMutate   float64

	// NSGAUpdate selects the SBX+polynomial-mutation variation when true,
	// and DE/current-to-rand/1 when false.
	NSGAUpdate bool
	// ParetoUpdate biases the DE mode's r3 draw toward elite (low-index)
	// survivors; 0 disables the bias (uniform r3).
	ParetoUpdate float64

	LogPeriod int
}

func (c Config) withDefaults() Config {
	if c.Nobj <= 0 {
		c.Nobj = 1
	}
	if c.PopSize <= 0 {
		c.PopSize = 128
	}
	if c.MaxEvaluations <= 0 {
		c.MaxEvaluations = 500000
	}
	if c.F0 <= 0 {
		c.F0 = 0.5
	}
	if c.CR0 <= 0 {
		c.CR0 = 0.9
	}
	if c.ProC <= 0 {
		c.ProC = 1.0
	}
	if c.DisC <= 0 {
		c.DisC = 20.0
	}
	if c.ProM <= 0 {
		c.ProM = 1.0
	}
	if c.DisM <= 0 {
		c.DisM = 20.0
	}
	if c.MinMutate <= 0 {
		c.MinMutate = 0.1
	}
	if c.MaxMutate <= 0 {
		c.MaxMutate = 0.5
	}
	if c.LogPeriod <= 0 {
		c.LogPeriod = 1000
	}
	return c
}

// Result is returned by the driver functions: the full 2*popsize working
// population (survivors plus the final, possibly unabsorbed trial batch),
// its objective+constraint rows, and run bookkeeping.
type Result struct {
	X           [][]float64
	Y           [][]float64
	Iterations  int
	Evaluations int64
	Stop        bool
}

// Engine is one doOptimize/ask-tell MODE run. It owns its population, RNG,
// and Fitness wrapper for its lifetime (spec.md §3 "Lifecycles").
type Engine struct {
	cfg  Config
	fit  *fitness.Fitness
	rng  *rng.Source
	dim  int
	nobj int
	ncon int
	pop  int

	popX [][]float64 // len 2*pop, popX[0:pop] are current survivors
	popY [][]float64 // len 2*pop, each len nobj+ncon

	vX []([]float64) // NSGA trial buffer
	vp int

	pos        int
	iterations int
	terminate  atomic.Bool
	toldCount  int
}

// New constructs an Engine with its initial population sampled per
// spec.md §4.5 "Initialization".
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	r := rng.New(cfg.Seed)

	var bounds fitness.Bounds
	if cfg.Lower != nil && cfg.Upper != nil {
		bounds = fitness.Bounds{Lower: cfg.Lower, Upper: cfg.Upper}
	}

	objective := cfg.Objective
	guess := make([]float64, cfg.Dim)
	fit := fitness.New(cfg.Dim, bounds, guess, []float64{1.0}, cfg.Ints, r, func(x []float64) []float64 {
		obj, con := objective(x)
		out := make([]float64, 0, len(obj)+len(con))
		out = append(out, obj...)
		out = append(out, con...)
		return out
	})

	e := &Engine{
		cfg:  cfg,
		fit:  fit,
		rng:  r,
		dim:  cfg.Dim,
		nobj: cfg.Nobj,
		ncon: cfg.Ncon,
		pop:  cfg.PopSize,
		popX: make([][]float64, 2*cfg.PopSize),
		popY: make([][]float64, 2*cfg.PopSize),
	}
	ylen := e.nobj + e.ncon
	for i := 0; i < 2*e.pop; i++ {
		e.popX[i] = fit.Sample()
		row := make([]float64, ylen)
		for j := range row {
			row[j] = math.Inf(1)
		}
		e.popY[i] = row
	}
	e.vX = make([][]float64, e.pop)
	copy(e.vX, e.popX[:e.pop])
	return e
}

// BestX returns the incumbent survivor considered best for a single-objective
// (nobj==1) run: the lowest-fitness member of the current survivor slots.
func (e *Engine) BestX() []float64 {
	best := 0
	for i := 1; i < e.pop; i++ {
		if e.popY[i][0] < e.popY[best][0] {
			best = i
		}
	}
	return e.popX[best]
}

// Population returns the current 2*popsize working population, matching the
// foreign ABI's populationMODE_C (spec.md §6).
func (e *Engine) Population() ([][]float64, [][]float64) {
	return e.popX, e.popY
}

// Ask produces the next trial vector and the population slot it is destined
// for, advancing the round-robin slot cursor. Mirrors MoDeOptimizer::ask.
func (e *Engine) Ask() ([]float64, int) {
	p := e.pos
	x := e.nextX(p)
	e.popX[e.pop+p] = x
	e.pos = (e.pos + 1) % e.pop
	return x, p
}

// Tell reports the evaluated result y for the trial x submitted under slot
// p. It applies the parent-slot dominance drop rule (spec.md §4.5 "ask/tell
// driver"): a trial dominated by its own parent slot is discarded without
// ever contributing to survival, though it still counts toward the round.
// Once a full round of pop trials has been told — regardless of the order
// results arrive in under the delayed-update driver — survival runs and the
// population advances. Returns the current terminate flag, set only by the
// Log callback.
func (e *Engine) Tell(y, x []float64, p int) bool {
	if !dominates(e.popY[p], y) {
		e.popX[e.pop+p] = x
		e.popY[e.pop+p] = y
	} else {
		// Ask already put x in the offspring slot; an all-+Inf row keeps it
		// from surviving on the slot's previous objective values.
		row := make([]float64, len(y))
		for j := range row {
			row[j] = math.Inf(1)
		}
		e.popY[e.pop+p] = row
	}
	e.toldCount++
	if e.toldCount >= e.pop {
		e.popUpdate()
		e.toldCount = 0
	}
	return e.terminate.Load()
}

// AskAll produces one trial per population slot, the batch form used by
// askMODE_C.
func (e *Engine) AskAll() [][]float64 {
	out := make([][]float64, e.pop)
	for p := 0; p < e.pop; p++ {
		x := e.nextX(p)
		e.popX[e.pop+p] = x
		out[p] = x
	}
	return out
}

// TellAll reports a full batch of trial results (tellMODE_C) and runs
// survival once. It does not apply the per-slot parent-dominance drop; that
// rule is specific to the single-slot Ask/Tell cadence.
func (e *Engine) TellAll(ys [][]float64) bool {
	for p, y := range ys {
		e.popY[e.pop+p] = y
	}
	e.popUpdate()
	return e.terminate.Load()
}

// TellAllSwitch is TellAll but first reconfigures the survival/variation
// mode (tellMODE_switchC), letting a caller flip between DE and NSGA
// variation, or change the elite bias, between rounds.
func (e *Engine) TellAllSwitch(ys [][]float64, nsgaUpdate bool, paretoUpdate float64) bool {
	e.cfg.NSGAUpdate = nsgaUpdate
	e.cfg.ParetoUpdate = paretoUpdate
	return e.TellAll(ys)
}

func dominates(parent, trial []float64) bool {
	for i := range trial {
		if trial[i] < parent[i] {
			return false
		}
	}
	return true
}

// nextX produces one trial vector for slot p. On p==0 it advances the
// iteration counter and, on the configured log period, invokes the Log
// callback, whose return value can set the terminate flag.
func (e *Engine) nextX(p int) []float64 {
	if p == 0 {
		e.iterations++
		if e.cfg.Log != nil && e.iterations%e.cfg.LogPeriod == 0 {
			if e.cfg.Log(e.popX[:e.pop], e.popY[:e.pop]) {
				e.terminate.Store(true)
			}
		}
	}

	if e.cfg.NSGAUpdate {
		x := e.vX[e.vp%len(e.vX)]
		e.vp++
		return x
	}
	return e.nextXDE(p)
}

// nextXDE is the DE/current-to-rand/1 trial generator, with oscillating
// CR/F on even/odd iterations and an optional elite bias on the r3 draw.
// Mirrors MoDeOptimizer::nextX.
func (e *Engine) nextXDE(p int) []float64 {
	CR := e.cfg.CR0
	F := e.cfg.F0
	if e.iterations%2 == 0 {
		CR *= 0.5
		F *= 0.5
	}

	var r1, r2, r3 int
	for {
		r1 = e.rng.Intn(e.pop)
		r2 = e.rng.Intn(e.pop)
		if e.cfg.ParetoUpdate > 0 {
			u := e.rng.Float64()
			r3 = int(math.Pow(u, 1.0+e.cfg.ParetoUpdate) * float64(e.pop))
			if r3 >= e.pop {
				r3 = e.pop - 1
			}
		} else {
			r3 = e.rng.Intn(e.pop)
		}
		if r1 != p && r2 != p && r3 != p && r1 != r2 && r1 != r3 && r2 != r3 {
			break
		}
	}

	xp := e.popX[p]
	x1 := e.popX[r1]
	x2 := e.popX[r2]
	x3 := e.popX[r3]

	x := make([]float64, e.dim)
	for j := range x {
		x[j] = x3[j] + F*(x1[j]-x2[j])
	}
	pivot := e.rng.Intn(e.dim)
	for j := range x {
		if j != pivot && e.rng.Float64() > CR {
			x[j] = xp[j]
		}
	}
	e.fit.ClosestFeasibleInPlace(x)
	e.fit.Modify(x, e.cfg.MinMutate, e.cfg.MaxMutate)
	return x
}

// variation implements the NSGA mode's simulated binary crossover and
// polynomial mutation, applied over n2 = len(x)/2 parent pairs. Mirrors
// MoDeOptimizer::variation.
func (e *Engine) variation(x [][]float64) [][]float64 {
	n2 := len(x) / 2
	nEff := 2 * n2
	disC := (0.5*e.rng.Float64() + 0.5) * e.cfg.DisC
	disM := (0.5*e.rng.Float64() + 0.5) * e.cfg.DisM

	var to1 []float64
	if e.cfg.ProC < 1.0 {
		to1 = make([]float64, e.dim)
		for i := range to1 {
			to1[i] = e.rng.Float64()
		}
	}

	offspring := make([][]float64, nEff)
	for p := 0; p < n2; p++ {
		parent1 := x[p]
		parent2 := x[n2+p]
		o1 := make([]float64, e.dim)
		o2 := make([]float64, e.dim)
		for i := 0; i < e.dim; i++ {
			beta := 1.0
			if !(e.rng.Float64() > 0.5 || (e.cfg.ProC < 1.0 && to1[i] < e.cfg.ProC)) {
				r := e.rng.Float64()
				if r <= 0.5 {
					beta = math.Pow(2*r, 1.0/(disC+1.0))
				} else {
					beta = math.Pow(2*r, -1.0/(disC+1.0))
				}
				if e.rng.Float64() > 0.5 {
					beta = -beta
				}
			}
			mean := (parent1[i] + parent2[i]) * 0.5
			delta := beta * (parent1[i] - parent2[i]) * 0.5
			o1[i] = mean + delta
			o2[i] = mean - delta
		}
		offspring[p] = o1
		offspring[n2+p] = o2
	}

	limit := e.cfg.ProM / float64(e.dim)
	scale := e.fit.Scale()
	for p := 0; p < nEff; p++ {
		for i := 0; i < e.dim; i++ {
			if e.rng.Float64() < limit {
				mu := e.rng.Float64()
				norm := e.fit.NormFrac(i, offspring[p][i])
				if mu <= 0.5 {
					offspring[p][i] += scale[i] * (math.Pow(2*mu+(1-2*mu)*math.Pow(1-norm, disM+1), 1/(disM+1)) - 1)
				} else {
					offspring[p][i] += scale[i] * (1 - math.Pow(2*(1-mu)+2*(mu-0.5)*math.Pow(1-norm, disM+1), 1/(disM+1)))
				}
			}
		}
		e.fit.ClosestFeasibleInPlace(offspring[p])
		e.fit.Modify(offspring[p], e.cfg.MinMutate, e.cfg.MaxMutate)
	}
	return offspring
}

// popUpdate is the survival step: it computes the enhanced constraint
// ranking over the full 2*pop working population, then admits individuals
// domination level by level (highest first) until popsize slots are filled,
// breaking ties within a partial level by crowding distance. Mirrors
// MoDeOptimizer::pop_update, including the single-objective pre-sort.
//
// The original's partial-level admission has a known shadowed-variable bug
// (spec.md §9 Design Note 1): a crowding-sorted index vector is computed
// inside a conditional and then goes out of scope unused whenever the
// partial level has a single member, silently dropping it instead of
// admitting it per the textbook boundary rule. We implement the textbook
// rule here (single-member levels are always admitted) and record the
// source-level ambiguity in DESIGN.md rather than reproduce a population-
// size-violating defect.
func (e *Engine) popUpdate() {
	n := 2 * e.pop
	x0 := make([][]float64, n)
	y0 := make([][]float64, n)
	copy(x0, e.popX)
	copy(y0, e.popY)

	if e.nobj == 1 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return y0[order[a]][0] < y0[order[b]][0] })
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
		rx := make([][]float64, n)
		ry := make([][]float64, n)
		for i, idx := range order {
			rx[i] = x0[idx]
			ry[i] = y0[idx]
		}
		x0, y0 = rx, ry
	}

	objs := make(rank.Objectives, e.nobj)
	for j := 0; j < e.nobj; j++ {
		row := make([]float64, n)
		for i := range row {
			row[i] = y0[i][j]
		}
		objs[j] = row
	}
	cons := make(rank.Objectives, e.ncon)
	for j := 0; j < e.ncon; j++ {
		row := make([]float64, n)
		for i := range row {
			row[i] = y0[i][e.nobj+j]
		}
		cons[j] = row
	}
	domination := rank.Pareto(objs, cons)

	maxDom := 0.0
	for _, d := range domination {
		if d > maxDom {
			maxDom = d
		}
	}

	var x, y [][]float64
	for dom := maxDom; dom >= 0 && len(x) < e.pop; dom-- {
		var levelIdx []int
		for i, d := range domination {
			if d == dom {
				levelIdx = append(levelIdx, i)
			}
		}
		if len(levelIdx) == 0 {
			continue
		}
		if len(x)+len(levelIdx) <= e.pop {
			for _, idx := range levelIdx {
				x = append(x, x0[idx])
				y = append(y, y0[idx])
			}
			continue
		}

		if len(levelIdx) == 1 {
			x = append(x, x0[levelIdx[0]])
			y = append(y, y0[levelIdx[0]])
			break
		}

		domy := make(rank.Objectives, e.nobj+e.ncon)
		for j := range domy {
			row := make([]float64, len(levelIdx))
			for k, idx := range levelIdx {
				row[k] = y0[idx][j]
			}
			domy[j] = row
		}
		cd := rank.CrowdDist(domy)
		order := make([]int, len(levelIdx))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return cd[order[a]] > cd[order[b]] })
		for _, oi := range order {
			if len(x) >= e.pop {
				break
			}
			idx := levelIdx[oi]
			x = append(x, x0[idx])
			y = append(y, y0[idx])
		}
		break
	}

	for len(x) < e.pop && len(x) > 0 {
		x = append(x, x[len(x)-1])
		y = append(y, y[len(y)-1])
	}

	for i := 0; i < e.pop; i++ {
		e.popX[i] = x[i]
		e.popY[i] = y[i]
	}

	if e.cfg.NSGAUpdate {
		e.vX = e.variation(e.popX[:e.pop])
		e.vp = 0
	}
}

// DoOptimize runs the serial ask/tell loop to exhaustion: one full round
// (popsize trials) per iteration, survival after each round, until the
// evaluation budget is spent, ctx is cancelled, or the Log callback
// requests termination. Mirrors MoDeOptimizer::doOptimize.
func (e *Engine) DoOptimize(ctx context.Context) Result {
	for e.fit.Evaluations() < int64(e.cfg.MaxEvaluations) && !e.terminate.Load() {
		select {
		case <-ctx.Done():
			return e.result()
		default:
		}
		for p := 0; p < e.pop; p++ {
			x := e.nextX(p)
			y := e.fit.Eval(x)
			e.popX[e.pop+p] = x
			e.popY[e.pop+p] = y
		}
		e.popUpdate()
	}
	return e.result()
}

// DoOptimizeDelayedUpdate runs the parallel driver of spec.md §4.7: a
// bounded worker pool evaluates trials out of order, and each incoming
// result is told to its originating slot as soon as it arrives, so a slow
// evaluation never blocks faster siblings — population updates trail the
// wall-clock order evaluations complete in, not submission order.
func (e *Engine) DoOptimizeDelayedUpdate(ctx context.Context, workers int) Result {
	if workers < 1 {
		workers = 1
	}
	if workers > e.pop {
		workers = e.pop
	}

	ev := peval.New(ctx, workers, func() func(x []float64) []float64 {
		return e.fit.Eval
	})
	defer ev.Shutdown()

	pending := make(map[int][]float64, workers)
	submit := func() bool {
		if e.fit.Evaluations() >= int64(e.cfg.MaxEvaluations) || e.terminate.Load() {
			return false
		}
		x, p := e.Ask()
		pending[p] = x
		ev.Evaluate(x, p)
		return true
	}

	for i := 0; i < workers; i++ {
		if !submit() {
			break
		}
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return e.result()
		default:
		}
		res := ev.Result()
		x := pending[res.ID]
		delete(pending, res.ID)
		e.Tell(res.Y, x, res.ID)
		if e.fit.Evaluations() < int64(e.cfg.MaxEvaluations) && !e.terminate.Load() {
			submit()
		}
	}
	return e.result()
}

func (e *Engine) result() Result {
	return Result{
		X:           e.popX,
		Y:           e.popY,
		Iterations:  e.iterations,
		Evaluations: e.fit.Evaluations(),
		Stop:        e.terminate.Load(),
	}
}
