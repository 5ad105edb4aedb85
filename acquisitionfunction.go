package fabolas

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Sampling acquisitions.
//
// They weight candidate representer points when estimating where the
// minimum lies. Weights are non-negative, higher is more promising.
//////

// SamplingAcquisition scores a point from its predictive mean and variance
// given the best predicted value so far.
type SamplingAcquisition func(mean, variance, best float64) float64

// ExpectedImprovement is the expected amount by which a point improves on
// best.
//
// Example:
//
//	ei := ExpectedImprovement(0.9, 0.04, 1.0)
func ExpectedImprovement(mean, variance, best float64) float64 {
	sigma := math.Sqrt(variance)
	if sigma < 1e-12 {
		return math.Max(best-mean, 0)
	}

	z := (best - mean) / sigma

	return (best-mean)*normalCDF(z) + sigma*normalPDF(z)
}

// ProbabilityOfImprovement is the probability that a point improves on best.
// More conservative than ExpectedImprovement.
func ProbabilityOfImprovement(mean, variance, best float64) float64 {
	sigma := math.Sqrt(variance)
	if sigma < 1e-12 {
		if mean < best {
			return 1
		}
		return 0
	}

	return normalCDF((best - mean) / sigma)
}

//////
// Information gain per unit cost.
//////

const (
	// nanScore replaces undefined acquisition values.
	nanScore = -1e20

	// minPredictedCost floors predicted costs.
	minPredictedCost = 1e-10

	// representerPool is the number of uniform candidates drawn per
	// representer point.
	representerPool = 20
)

// jointPredictor is a fitted process able to return joint posteriors.
type jointPredictor interface {
	Predictor
	PredictJoint(points [][]float64) ([]float64, *mat.SymDense, error)
	NoiseVariance() float64
}

// InformationGainConfig configures InformationGainPerUnitCost.
type InformationGainConfig struct {
	// Lower and Upper bound the augmented space, the fidelity last.
	Lower, Upper []float64

	// Representers is the number of points the minimum is located on.
	Representers int

	// Samples is the number of Monte Carlo draws used to estimate the
	// distribution of the minimum.
	Samples int

	// Innovations is the number of fantasized observations per candidate.
	Innovations int

	// Sampling weights the representer candidates.
	Sampling SamplingAcquisition

	RandomState *rand.Rand
}

// InformationGainPerUnitCost scores a candidate (x, s) by how much observing
// it is expected to reduce the entropy of the location of the minimum at full
// fidelity, divided by the predicted cost of observing it.
//
// How it works:
//   - Representer points are drawn in the configuration space at s = 1,
//     favoring points the sampling acquisition finds promising
//   - p_min over the representers is estimated by Monte Carlo
//   - For a candidate, observations are fantasized at a few normal quantiles
//     and p_min is recomputed from the updated joint posterior
//   - The expected entropy drop is divided by the cost model's prediction
//
// One instance is bound to one fitted process, see Marginalization for
// ensembles.
type InformationGainPerUnitCost struct {
	cfg InformationGainConfig

	model jointPredictor
	cost  Predictor

	representers [][]float64
	draws        []float64
	innovations  []float64
	baseEntropy  float64
}

// NewInformationGainPerUnitCost returns an unbound acquisition function.
func NewInformationGainPerUnitCost(cfg InformationGainConfig) *InformationGainPerUnitCost {
	if cfg.Representers <= 0 {
		cfg.Representers = 10
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 300
	}
	if cfg.Innovations <= 0 {
		cfg.Innovations = 5
	}
	if cfg.Sampling == nil {
		cfg.Sampling = ExpectedImprovement
	}
	if cfg.RandomState == nil {
		cfg.RandomState = newRandomState()
	}

	innovations := make([]float64, cfg.Innovations)
	for i := range innovations {
		innovations[i] = distuv.UnitNormal.Quantile((float64(i) + 0.5) / float64(cfg.Innovations))
	}

	return &InformationGainPerUnitCost{cfg: cfg, innovations: innovations}
}

// Update binds the function to a fitted objective process and a cost model,
// then draws the representer points and the Monte Carlo samples.
func (ig *InformationGainPerUnitCost) Update(model, costModel Predictor) error {
	jm, ok := model.(jointPredictor)
	if !ok {
		return fmt.Errorf("%w: information gain needs joint predictions, got %T", ErrUnsupportedModel, model)
	}

	ig.model = jm
	ig.cost = costModel
	ig.representers = ig.sampleRepresenters()

	mean, cov, err := jm.PredictJoint(ig.representers)
	if err != nil {
		return fmt.Errorf("representer posterior: %w", err)
	}

	var chol mat.Cholesky
	if err := factorize(&chol, cov); err != nil {
		return fmt.Errorf("representer covariance: %w", err)
	}

	var L mat.TriDense
	chol.LTo(&L)

	nb := len(ig.representers)
	ig.draws = make([]float64, ig.cfg.Samples*nb)
	for i := range ig.draws {
		ig.draws[i] = ig.cfg.RandomState.NormFloat64()
	}

	ig.baseEntropy = ig.minimumEntropy(mean, &L)

	return nil
}

// Compute returns the information gain per unit cost at the augmented point
// x.
func (ig *InformationGainPerUnitCost) Compute(x []float64) float64 {
	if ig.model == nil {
		return nanScore
	}

	nb := len(ig.representers)

	points := make([][]float64, nb+1)
	copy(points, ig.representers)
	points[nb] = x

	mean, cov, err := ig.model.PredictJoint(points)
	if err != nil {
		return nanScore
	}

	sxx := cov.At(nb, nb) + ig.model.NoiseVariance()
	if sxx <= 0 || math.IsNaN(sxx) {
		return nanScore
	}

	b := make([]float64, nb)
	for i := range b {
		b[i] = cov.At(i, nb)
	}

	posterior := mat.NewSymDense(nb, nil)
	for i := 0; i < nb; i++ {
		for j := i; j < nb; j++ {
			posterior.SetSym(i, j, cov.At(i, j)-b[i]*b[j]/sxx)
		}
	}

	var chol mat.Cholesky
	if err := factorize(&chol, posterior); err != nil {
		return nanScore
	}

	var L mat.TriDense
	chol.LTo(&L)

	shifted := make([]float64, nb)
	var entropy float64
	for _, w := range ig.innovations {
		for i := range shifted {
			shifted[i] = mean[i] + b[i]*w/math.Sqrt(sxx)
		}
		entropy += ig.minimumEntropy(shifted, &L)
	}
	entropy /= float64(len(ig.innovations))

	gain := math.Max(ig.baseEntropy-entropy, 0)

	cost, _ := ig.cost.Predict(x)
	score := gain / math.Max(cost, minPredictedCost)
	if math.IsNaN(score) {
		return nanScore
	}

	return score
}

// Representers returns the current representer points.
func (ig *InformationGainPerUnitCost) Representers() [][]float64 {
	return ig.representers
}

// minimumEntropy estimates the entropy of the distribution of the argmin of
// a Gaussian vector with the given mean and Cholesky factor, using the fixed
// Monte Carlo draws.
func (ig *InformationGainPerUnitCost) minimumEntropy(mean []float64, L *mat.TriDense) float64 {
	nb := len(mean)
	counts := make([]float64, nb)
	f := make([]float64, nb)

	for s := 0; s < ig.cfg.Samples; s++ {
		z := ig.draws[s*nb : (s+1)*nb]
		for i := 0; i < nb; i++ {
			v := mean[i]
			for j := 0; j <= i; j++ {
				v += L.At(i, j) * z[j]
			}
			f[i] = v
		}
		counts[floats.MinIdx(f)]++
	}

	var h float64
	for _, c := range counts {
		if c > 0 {
			p := c / float64(ig.cfg.Samples)
			h -= p * math.Log(p)
		}
	}

	return h
}

// sampleRepresenters draws representer points without replacement from a
// uniform pool in the configuration space at full fidelity, with
// probabilities proportional to the sampling acquisition.
func (ig *InformationGainPerUnitCost) sampleRepresenters() [][]float64 {
	dims := len(ig.cfg.Lower) - 1
	full := ig.cfg.Upper[dims]

	pool := uniformDesign(ig.cfg.RandomState, ig.cfg.Lower[:dims], ig.cfg.Upper[:dims], representerPool*ig.cfg.Representers)

	means := make([]float64, len(pool))
	vars := make([]float64, len(pool))
	for i, x := range pool {
		pool[i] = withFidelity(x, full)
		means[i], vars[i] = ig.model.Predict(pool[i])
	}

	best := floats.Min(means)
	weights := make([]float64, len(pool))
	for i := range pool {
		w := ig.cfg.Sampling(means[i], vars[i], best)
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		weights[i] = w
	}

	representers := make([][]float64, 0, ig.cfg.Representers)
	for len(representers) < ig.cfg.Representers {
		i := weightedIndex(ig.cfg.RandomState, weights)
		representers = append(representers, pool[i])
		weights[i] = -1
	}

	return representers
}

// weightedIndex picks an index with probability proportional to its weight.
// Negative weights are excluded; when the remaining weights are all zero the
// pick is uniform among them.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	var total float64
	var open []int
	for i, w := range weights {
		if w >= 0 {
			total += w
			open = append(open, i)
		}
	}

	if total <= 0 {
		return open[rng.IntN(len(open))]
	}

	u := rng.Float64() * total
	for _, i := range open {
		u -= weights[i]
		if u <= 0 {
			return i
		}
	}

	return open[len(open)-1]
}

//////
// Marginalization.
//////

// Marginalization averages an acquisition function over the members of an
// ensemble model: one base instance per hyperparameter sample, each bound to
// its own member, aggregated by the mean.
type Marginalization struct {
	factory    func() AcquisitionFunction
	estimators []AcquisitionFunction
}

// NewMarginalization returns a wrapper creating its base instances with
// factory.
func NewMarginalization(factory func() AcquisitionFunction) *Marginalization {
	return &Marginalization{factory: factory}
}

// Update creates one base instance per member of model. A model that is not
// an Ensemble is treated as a single member. The cost model is shared.
func (m *Marginalization) Update(model, costModel Predictor) error {
	members := []Predictor{model}
	if e, ok := model.(Ensemble); ok {
		members = e.Members()
	}

	estimators := make([]AcquisitionFunction, len(members))
	for i, member := range members {
		a := m.factory()
		if err := a.Update(member, costModel); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		estimators[i] = a
	}
	m.estimators = estimators

	return nil
}

// Compute returns the mean score of the base instances.
func (m *Marginalization) Compute(x []float64) float64 {
	if len(m.estimators) == 0 {
		return nanScore
	}

	scores := make([]float64, len(m.estimators))
	for i, a := range m.estimators {
		scores[i] = a.Compute(x)
	}

	return stat.Mean(scores, nil)
}

// Estimators returns the base instances of the last Update.
func (m *Marginalization) Estimators() []AcquisitionFunction {
	return m.estimators
}

//////
// Engine.
//////

// acquisitionEngine couples an acquisition function with a maximizer over the
// augmented space [lower ++ 0, upper ++ 1].
type acquisitionEngine struct {
	acquisition  AcquisitionFunction
	maximizer    Maximizer
	lower, upper []float64
}

func newAcquisitionEngine(acquisition AcquisitionFunction, maximizer Maximizer, lower, upper []float64) *acquisitionEngine {
	return &acquisitionEngine{
		acquisition: acquisition,
		maximizer:   maximizer,
		lower:       withFidelity(lower, 0),
		upper:       withFidelity(upper, 1),
	}
}

// Update rebinds the acquisition function to the new surrogates.
func (e *acquisitionEngine) Update(model, costModel Predictor) error {
	return e.acquisition.Update(model, costModel)
}

// Maximize returns the best augmented point found, inside the bounds.
func (e *acquisitionEngine) Maximize() []float64 {
	x := cloneVec(e.maximizer.Maximize(e.acquisition.Compute, e.lower, e.upper))
	clampVec(x, e.lower, e.upper)

	return x
}
