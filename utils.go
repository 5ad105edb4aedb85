package fabolas

import (
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Helper functions.
//////

// normalCDF is the cumulative distribution function of the standard normal
// distribution.
func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normalPDF is the probability density function of the standard normal
// distribution.
func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// measureEvaluation runs the objective at (x, s) and measures how long it
// took.
//
// Important notes:
//   - Time measurement includes only the execution of f
//   - Errors are returned untouched, the caller decides whether to abort
func measureEvaluation(f Objective, x []float64, s float64) (value, cost float64, elapsed time.Duration, err error) {
	start := time.Now()

	value, cost, err = f(x, s)

	return value, cost, time.Since(start), err
}

// uniformSample draws one point uniformly inside [lower, upper].
func uniformSample(rng *rand.Rand, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range lower {
		x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}

	return x
}

// uniformDesign draws n points uniformly inside [lower, upper].
func uniformDesign(rng *rand.Rand, lower, upper []float64, n int) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		points[i] = uniformSample(rng, lower, upper)
	}

	return points
}

// newRandomState returns a generator seeded from the clock.
func newRandomState() *rand.Rand {
	seed := uint64(time.Now().UnixNano())

	return NewRandomState(seed)
}

// NewRandomState returns a reproducible generator for the given seed.
func NewRandomState(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)

	return out
}

// withFidelity returns x ++ s as a new slice.
func withFidelity(x []float64, s float64) []float64 {
	out := make([]float64, len(x)+1)
	copy(out, x)
	out[len(x)] = s

	return out
}

func clampVec(x, lower, upper []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
}
