// Package rank implements the Ranking Kernel: Pareto-level assignment,
// crowding distance, and the enhanced constraint ranking MODE's survival
// step consumes. It is grounded on the pareto_levels/crowd_dist/objranks/
// ranks/pareto family of modeoptimizer.cpp; the relaxed dominance check of
// is_dominated, a deviation from textbook NSGA-II, is preserved verbatim —
// see spec.md §9, Design Note 2. (The partial-level crowding admission lives
// in internal/mode's popUpdate, which uses the textbook rule.)
package rank

import (
	"math"
	"sort"
)

// Objectives is a column-major-by-individual view: Objectives[j] holds the
// j-th objective row across all n individuals. Individuals are minimized.
type Objectives [][]float64

// n returns the population size implied by the first row.
func (o Objectives) n() int {
	if len(o) == 0 {
		return 0
	}
	return len(o[0])
}

// isDominated reports whether individual i is dominated by individual index
// within y: true when no objective of i is strictly better than the
// corresponding objective of index. This is the original's relaxed
// criterion, not full Pareto dominance (<= all, < at least one) — preserved
// intentionally, per spec.md §9 Design Note 2.
func isDominated(y Objectives, i, index int) bool {
	for _, row := range y {
		if row[i] < row[index] {
			return false
		}
	}
	return true
}

// ParetoLevels assigns each individual a domination score: the number of
// alive anchors it survives against as the algorithm sweeps anchor indices
// left to right, removing individuals not-strictly-better than the anchor.
// Higher score means an earlier (better) front. O(n^2) worst case, matching
// the original's design-level algorithm.
func ParetoLevels(y Objectives) []float64 {
	n := y.n()
	domination := make([]float64, n)
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	for index := 0; index < n; {
		for i := 0; i < n; i++ {
			if i != index && alive[i] && isDominated(y, i, index) {
				alive[i] = false
			}
		}
		for i := 0; i < n; i++ {
			if alive[i] {
				domination[i]++
			}
		}
		index++
		for index < n && !alive[index] {
			index++
		}
	}
	return domination
}

// CrowdDist computes the single-objective crowding distance used by this
// system: individuals are sorted by their first objective row; a point's
// distance is the sum of gaps to its left and right sorted neighbours, and
// the two sort extremes get +Inf. If the first objective is constant across
// the population, it returns all zeros. This is the deliberately simplified
// crowding noted in spec.md §4.4 — not the full per-objective NSGA-II sum.
func CrowdDist(y Objectives) []float64 {
	n := y.n()
	dist := make([]float64, n)
	if n == 0 {
		return dist
	}
	row0 := y[0]
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return row0[order[a]] < row0[order[b]] })

	sorted := make([]float64, n)
	for i, idx := range order {
		sorted[i] = row0[idx]
	}

	maxGap := 0.0
	gaps := make([]float64, max0(n-1, 0))
	for i := 0; i < n-1; i++ {
		gaps[i] = sorted[i+1] - sorted[i]
		if gaps[i] > maxGap {
			maxGap = gaps[i]
		}
	}
	if maxGap == 0 {
		return dist
	}

	sortedDist := make([]float64, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			sortedDist[i] += gaps[i-1]
		}
		if i < n-1 {
			sortedDist[i] += gaps[i]
		}
	}
	sortedDist[0] = math.Inf(1)
	sortedDist[n-1] = math.Inf(1)

	for i, idx := range order {
		dist[idx] = sortedDist[i]
	}
	return dist
}

func max0(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ObjRanks sums, per individual, the ascending-value rank of that individual
// within each objective row.
func ObjRanks(objs Objectives) []float64 {
	n := objs.n()
	sums := make([]float64, n)
	for _, row := range objs {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return row[order[a]] < row[order[b]] })
		for position, idx := range order {
			sums[idx] += float64(position)
		}
	}
	return sums
}

// ConstraintRanks implements `ranks` from spec.md §4.4: each constraint row
// is sorted ascending; an individual's rank for that constraint is 0 if
// feasible (value <= 0), else its sort position. Each individual's
// per-constraint rank is scaled by alpha_i/ncon, where alpha_i is the number
// of constraints that individual violates, then summed across constraints.
func ConstraintRanks(cons Objectives) []float64 {
	n := cons.n()
	ncon := len(cons)
	sums := make([]float64, n)
	if ncon == 0 {
		return sums
	}
	alpha := make([]float64, n)
	rank := make([][]float64, ncon)
	for j, row := range cons {
		rank[j] = make([]float64, n)
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return row[order[a]] < row[order[b]] })
		for position, idx := range order {
			if row[idx] <= 0 {
				rank[j][idx] = 0
			} else {
				rank[j][idx] = float64(position)
				alpha[idx]++
			}
		}
	}
	for j := 0; j < ncon; j++ {
		for i := 0; i < n; i++ {
			sums[i] += rank[j][i] * alpha[i] / float64(ncon)
		}
	}
	return sums
}

// Pareto implements the enhanced constraint ranking of spec.md §4.4: when
// there are no constraints it degrades to ParetoLevels; otherwise it
// combines per-constraint sort rank, per-objective rank, and dominance among
// the feasible subset so that (per property 8) any feasible individual
// outranks every infeasible one whenever at least one feasible individual
// exists.
func Pareto(objectives, constraints Objectives) []float64 {
	n := objectives.n()
	if len(constraints) == 0 {
		return ParetoLevels(objectives)
	}

	feasible := make([]bool, n)
	hasFeasible := false
	for i := 0; i < n; i++ {
		ok := true
		for _, row := range constraints {
			if row[i] > 0 {
				ok = false
				break
			}
		}
		feasible[i] = ok
		hasFeasible = hasFeasible || ok
	}

	csum := ConstraintRanks(constraints)
	if hasFeasible {
		objRanks := ObjRanks(objectives)
		for i := range csum {
			csum[i] += objRanks[i]
		}
	}

	domination := make([]float64, n)

	var feasibleIdx []int
	for i := 0; i < n; i++ {
		if feasible[i] {
			feasibleIdx = append(feasibleIdx, i)
		}
	}
	if hasFeasible {
		sub := subColumns(objectives, feasibleIdx)
		levels := ParetoLevels(sub)
		for k, idx := range feasibleIdx {
			domination[idx] += levels[k]
		}
	}

	var infeasibleIdx []int
	for i := 0; i < n; i++ {
		if !feasible[i] {
			infeasibleIdx = append(infeasibleIdx, i)
		}
	}
	sort.Slice(infeasibleIdx, func(a, b int) bool {
		return csum[infeasibleIdx[a]] < csum[infeasibleIdx[b]]
	})
	maxcdom := len(infeasibleIdx)
	for i, idx := range infeasibleIdx {
		domination[idx] += float64(maxcdom - i)
	}
	if hasFeasible {
		for _, idx := range feasibleIdx {
			domination[idx] += float64(maxcdom + 1)
		}
	}
	return domination
}

func subColumns(o Objectives, idx []int) Objectives {
	sub := make(Objectives, len(o))
	for j, row := range o {
		r := make([]float64, len(idx))
		for k, i := range idx {
			r[k] = row[i]
		}
		sub[j] = r
	}
	return sub
}
