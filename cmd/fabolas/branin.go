package main

import (
	"math"

	"github.com/thalesfsp/fabolas"
)

// braninObjective returns a synthetic multi-fidelity benchmark built on the
// Branin function over [-5, 10] x [0, 15]. Small fidelities add a bias that
// vanishes at sMax, and the cost grows linearly with the fidelity.
func braninObjective(sMax float64) fabolas.Objective {
	return func(x []float64, s float64) (float64, float64, error) {
		frac := s / sMax

		value := branin(x[0], x[1]) + 10*(1-frac)*(1-frac)
		cost := 0.05 + 10*frac

		return value, cost, nil
	}
}

func branin(x1, x2 float64) float64 {
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)
	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	return a*math.Pow(x2-b*x1*x1+c*x1-r, 2) + s*(1-t)*math.Cos(x1) + s
}
