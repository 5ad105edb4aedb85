package fabolas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concave(x []float64) float64 {
	return -((x[0]-0.3)*(x[0]-0.3) + (x[1]-0.7)*(x[1]-0.7))
}

func TestDirectFindsTheMaximum(t *testing.T) {
	x := (&Direct{MaxEvaluations: 500}).Maximize(concave, []float64{0, 0}, []float64{1, 1})

	require.Len(t, x, 2)
	assert.InDelta(t, 0.3, x[0], 0.05)
	assert.InDelta(t, 0.7, x[1], 0.05)
}

func TestDirectScalesToTheBounds(t *testing.T) {
	f := func(x []float64) float64 {
		return -math.Abs(x[0]-7) - math.Abs(x[1]+2)
	}

	x := (&Direct{}).Maximize(f, []float64{-5, -10}, []float64{10, 0})

	assert.InDelta(t, 7, x[0], 0.5)
	assert.InDelta(t, -2, x[1], 0.5)
}

func TestDirectRespectsTheBudget(t *testing.T) {
	evals := 0
	f := func(x []float64) float64 {
		evals++
		return concave(x)
	}

	(&Direct{MaxEvaluations: 50}).Maximize(f, []float64{0, 0}, []float64{1, 1})

	// A division round may finish past the budget, by at most 2 * dims.
	assert.LessOrEqual(t, evals, 54)
}

func TestDirectIgnoresNaN(t *testing.T) {
	f := func(x []float64) float64 {
		if x[0] < 0.5 {
			return math.NaN()
		}
		return concave(x)
	}

	x := (&Direct{MaxEvaluations: 300}).Maximize(f, []float64{0, 0}, []float64{1, 1})

	assert.GreaterOrEqual(t, x[0], 0.5)
}

func TestDirectStaysInBounds(t *testing.T) {
	lower := []float64{-1, 2, 0}
	upper := []float64{1, 3, 1}

	// Maximum at a corner.
	f := func(x []float64) float64 { return x[0] + x[1] + x[2] }

	x := (&Direct{MaxEvaluations: 300}).Maximize(f, lower, upper)

	for i := range x {
		assert.GreaterOrEqual(t, x[i], lower[i])
		assert.LessOrEqual(t, x[i], upper[i])
	}
	assert.InDelta(t, 1, x[0], 0.1)
	assert.InDelta(t, 3, x[1], 0.1)
	assert.InDelta(t, 1, x[2], 0.1)
}

func TestPotentiallyOptimal(t *testing.T) {
	rects := []*rectangle{
		{size: 0.5, value: 3},
		{size: 0.5, value: 1},
		{size: 0.2, value: 0},
		{size: 0.1, value: 2},
	}

	got := potentiallyOptimal(rects)

	// The smaller rectangle with a worse value is dominated.
	assert.Equal(t, []*rectangle{rects[2], rects[1]}, got)
}

func TestRandomSearch(t *testing.T) {
	r := &RandomSearch{Points: 2000, RandomState: NewRandomState(4)}

	x := r.Maximize(concave, []float64{0, 0}, []float64{1, 1})

	assert.InDelta(t, 0.3, x[0], 0.1)
	assert.InDelta(t, 0.7, x[1], 0.1)
}
