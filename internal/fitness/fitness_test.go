package fitness

import (
	"math"
	"testing"

	"github.com/cwbudde/evocore/internal/rng"
)

func newTestFitness(bounds Bounds) *Fitness {
	r := rng.New(1)
	guess := []float64{0, 0}
	return New(2, bounds, guess, []float64{1.0}, []bool{false, false}, r, func(x []float64) []float64 {
		return []float64{x[0]*x[0] + x[1]*x[1]}
	})
}

func TestEvalCoercesNonFinite(t *testing.T) {
	r := rng.New(1)
	f := New(1, Bounds{}, []float64{0}, []float64{1}, []bool{false}, r, func(x []float64) []float64 {
		return []float64{math.NaN()}
	})
	y := f.Eval([]float64{0})
	if y[0] != nonFiniteSentinel {
		t.Fatalf("expected NaN coerced to %g, got %g", nonFiniteSentinel, y[0])
	}
}

func TestEvalRoundsIntegerCoordinates(t *testing.T) {
	r := rng.New(1)
	var seen []float64
	f := New(1, Bounds{}, []float64{0}, []float64{1}, []bool{true}, r, func(x []float64) []float64 {
		seen = append(seen, x[0])
		return []float64{0}
	})
	f.Eval([]float64{2.6})
	if seen[0] != 3 {
		t.Fatalf("expected rounding to 3, got %g", seen[0])
	}
}

func TestSampleStaysWithinBounds(t *testing.T) {
	bounds := Bounds{Lower: []float64{-1, -1}, Upper: []float64{1, 1}}
	f := newTestFitness(bounds)
	for i := 0; i < 200; i++ {
		x := f.Sample()
		for j, v := range x {
			if v < bounds.Lower[j] || v > bounds.Upper[j] {
				t.Fatalf("sample escaped bounds at coord %d: %g", j, v)
			}
		}
	}
}

func TestUpdateSigmaRespectsCeiling(t *testing.T) {
	bounds := Bounds{Lower: []float64{-10, -10}, Upper: []float64{10, 10}}
	f := newTestFitness(bounds)
	f.UpdateSigma([]float64{9, -9})
	for i, s := range f.Sigma() {
		if s > f.MaxSigma()[i]+1e-12 {
			t.Fatalf("sigma[%d]=%g exceeds maxSigma[%d]=%g", i, s, i, f.MaxSigma()[i])
		}
	}
}

func TestNormFracUnboundedIsNeutral(t *testing.T) {
	f := newTestFitness(Bounds{})
	if got := f.NormFrac(0, 5); got != 0.5 {
		t.Fatalf("expected 0.5 for unbounded NormFrac, got %g", got)
	}
}

func TestModifyNoopWithoutIntegerCoordinates(t *testing.T) {
	bounds := Bounds{Lower: []float64{-10, -10}, Upper: []float64{10, 10}}
	f := newTestFitness(bounds)
	x := []float64{1.5, -2.5}
	want := append([]float64{}, x...)
	f.Modify(x, 0.1, 0.5)
	if x[0] != want[0] || x[1] != want[1] {
		t.Fatalf("Modify changed a non-integer vector: got %v want %v", x, want)
	}
}
