package fabolas

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// horseshoeScale is the scale of the horseshoe prior on the noise.
const horseshoeScale = 1e-3

// EnvPrior is the prior over the hyperparameters of the fidelity-aware
// kernel:
//   - lognormal(0, 1) on the covariance amplitude
//   - tophat over [-10, 2] on every log length scale
//   - a zero-mean normal on the environment kernel weights
//   - a horseshoe on the noise, favoring near noiseless fits
//
// The layout of theta is the one of defaultHypers.
type EnvPrior struct {
	dims int
	rng  *rand.Rand

	amplitude   distuv.LogNormal
	lengthScale distuv.Uniform
	envWeight   distuv.Normal
}

// NewEnvPrior returns the prior for a configuration space of dims
// dimensions.
func NewEnvPrior(dims int, rng *rand.Rand) *EnvPrior {
	return &EnvPrior{
		dims:        dims,
		rng:         rng,
		amplitude:   distuv.LogNormal{Mu: 0, Sigma: 1, Src: rng},
		lengthScale: distuv.Uniform{Min: -10, Max: 2, Src: rng},
		envWeight:   distuv.Normal{Mu: 0, Sigma: math.Sqrt(5), Src: rng},
	}
}

// LogProb returns the unnormalized log density of theta.
func (p *EnvPrior) LogProb(theta []float64) float64 {
	// Density of the log amplitude, hence the Jacobian term.
	lp := p.amplitude.LogProb(math.Exp(theta[0])) + theta[0]

	for d := 0; d < p.dims; d++ {
		lp += p.lengthScale.LogProb(theta[1+d])
	}

	for i := 0; i < envParams; i++ {
		w := theta[1+p.dims+i]
		lp -= w * w / 10
	}

	lp += horseshoeLogProb(theta[len(theta)-1])

	return lp
}

// Sample draws n hyperparameter vectors.
func (p *EnvPrior) Sample(n int) [][]float64 {
	cauchy := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 1, Src: p.rng}

	samples := make([][]float64, n)
	for i := range samples {
		theta := make([]float64, numHypers(p.dims))
		theta[0] = math.Log(p.amplitude.Rand())
		for d := 0; d < p.dims; d++ {
			theta[1+d] = p.lengthScale.Rand()
		}
		for j := 0; j < envParams; j++ {
			theta[1+p.dims+j] = p.envWeight.Rand()
		}

		lambda := math.Abs(cauchy.Rand())
		theta[len(theta)-1] = math.Log(math.Abs(p.rng.NormFloat64() * lambda * horseshoeScale))

		samples[i] = theta
	}

	return samples
}

// horseshoeLogProb is the usual closed-form approximation of the horseshoe
// density evaluated at a log noise.
func horseshoeLogProb(logNoise float64) float64 {
	ratio := horseshoeScale / math.Exp(logNoise)

	return math.Log(math.Log1p(3 * ratio * ratio))
}
