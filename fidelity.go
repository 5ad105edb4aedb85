package fabolas

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Number is any raw fidelity type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Transform maps a raw fidelity s in [sMin, sMax] onto [0, 1] in log scale:
//
//	(ln(s) - ln(sMin)) / (ln(sMax) - ln(sMin))
//
// Requires 0 < sMin < sMax and sMin <= s <= sMax. Outside that domain the
// result is meaningless (possibly NaN or ±Inf).
func Transform[T Number](s, sMin, sMax T) float64 {
	lo := math.Log(float64(sMin))

	return (math.Log(float64(s)) - lo) / (math.Log(float64(sMax)) - lo)
}

// Retransform is the inverse of Transform, rounded to the nearest integer
// (half to even) since fidelities are discrete resource levels.
func Retransform[T Number](st float64, sMin, sMax T) float64 {
	lo := math.Log(float64(sMin))
	hi := math.Log(float64(sMax))

	return math.RoundToEven(math.Exp(st*(hi-lo) + lo))
}
