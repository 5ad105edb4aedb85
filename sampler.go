package fabolas

import (
	"math"
	"math/rand/v2"
)

// stretchScale is the a parameter of the stretch move.
const stretchScale = 2.0

// ensembleSampler is an affine-invariant ensemble MCMC sampler
// (Goodman & Weare stretch move). Walkers are updated one after the other,
// each proposal built from another walker of the current ensemble.
type ensembleSampler struct {
	lnProb func(theta []float64) float64
	rng    *rand.Rand
}

func newEnsembleSampler(lnProb func([]float64) float64, rng *rand.Rand) *ensembleSampler {
	return &ensembleSampler{lnProb: lnProb, rng: rng}
}

// Run advances the walkers in positions by steps moves and returns the final
// positions and their log densities. positions is not modified.
func (s *ensembleSampler) Run(positions [][]float64, steps int) ([][]float64, []float64) {
	walkers := len(positions)

	pos := make([][]float64, walkers)
	lp := make([]float64, walkers)
	for k, p := range positions {
		pos[k] = cloneVec(p)
		lp[k] = s.lnProb(pos[k])
	}

	if walkers < 2 {
		return pos, lp
	}

	dims := len(pos[0])
	for step := 0; step < steps; step++ {
		for k := range pos {
			j := s.rng.IntN(walkers - 1)
			if j >= k {
				j++
			}

			z := stretchDraw(s.rng)
			proposal := make([]float64, dims)
			for d := range proposal {
				proposal[d] = pos[j][d] + z*(pos[k][d]-pos[j][d])
			}

			plp := s.lnProb(proposal)
			if math.IsInf(plp, -1) || math.IsNaN(plp) {
				continue
			}

			accept := float64(dims-1)*math.Log(z) + plp - lp[k]
			if accept >= 0 || math.Log(s.rng.Float64()) < accept {
				pos[k] = proposal
				lp[k] = plp
			}
		}
	}

	return pos, lp
}

// stretchDraw samples z from g(z) ∝ 1/sqrt(z) on [1/a, a].
func stretchDraw(rng *rand.Rand) float64 {
	u := (stretchScale-1)*rng.Float64() + 1

	return u * u / stretchScale
}
