package fabolas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constPredictor struct{ mean float64 }

func (c constPredictor) Predict([]float64) (float64, float64) { return c.mean, 0 }

type ensembleStub struct {
	members []Predictor
}

func (e *ensembleStub) Train([][]float64, []float64, bool) error { return nil }
func (e *ensembleStub) Predict([]float64) (float64, float64)     { return 0, 1 }
func (e *ensembleStub) Members() []Predictor                     { return e.members }

func TestExpectedImprovement(t *testing.T) {
	// At the incumbent with unit variance EI is the normal density at 0.
	assert.InDelta(t, 1/math.Sqrt(2*math.Pi), ExpectedImprovement(1, 1, 1), 1e-12)

	// Lower means and larger variances are more promising.
	assert.Greater(t, ExpectedImprovement(0.5, 0.1, 1), ExpectedImprovement(0.9, 0.1, 1))
	assert.Greater(t, ExpectedImprovement(1, 0.5, 1), ExpectedImprovement(1, 0.1, 1))

	// Never negative.
	assert.GreaterOrEqual(t, ExpectedImprovement(10, 0.01, 1), 0.0)

	// Without uncertainty it is the plain improvement.
	assert.Equal(t, 0.5, ExpectedImprovement(0.5, 0, 1))
	assert.Equal(t, 0.0, ExpectedImprovement(1.5, 0, 1))
}

func TestProbabilityOfImprovement(t *testing.T) {
	assert.InDelta(t, 0.5, ProbabilityOfImprovement(1, 1, 1), 1e-12)
	assert.Greater(t, ProbabilityOfImprovement(0.5, 0.1, 1), 0.5)
	assert.Less(t, ProbabilityOfImprovement(1.5, 0.1, 1), 0.5)

	assert.Equal(t, 1.0, ProbabilityOfImprovement(0.5, 0, 1))
	assert.Equal(t, 0.0, ProbabilityOfImprovement(1.5, 0, 1))
}

func TestWeightedIndex(t *testing.T) {
	rng := NewRandomState(1)

	for i := 0; i < 100; i++ {
		assert.Equal(t, 2, weightedIndex(rng, []float64{0, -1, 5, 0}))
	}

	// All open weights zero: uniform among the open ones.
	for i := 0; i < 100; i++ {
		assert.Contains(t, []int{0, 2}, weightedIndex(rng, []float64{0, -1, 0}))
	}
}

func fittedProcess(t *testing.T) *gaussianProcess {
	t.Helper()

	gp := newGaussianProcess(defaultHypers(1), []float64{0}, []float64{1}, QuadraticBasis, false)
	X := [][]float64{
		{0.1, 0},
		{0.4, 0.5},
		{0.7, 1},
		{0.9, 0.3},
	}
	y := []float64{0.8, 0.3, 0.5, 0.9}
	require.NoError(t, gp.Fit(X, y))

	return gp
}

func newTestInformationGain(seed uint64) *InformationGainPerUnitCost {
	return NewInformationGainPerUnitCost(InformationGainConfig{
		Lower:        []float64{0, 0},
		Upper:        []float64{1, 1},
		Representers: 5,
		Samples:      200,
		RandomState:  NewRandomState(seed),
	})
}

func TestInformationGainPerUnitCost(t *testing.T) {
	gp := fittedProcess(t)

	cheap := newTestInformationGain(3)
	expensive := newTestInformationGain(3)

	require.NoError(t, cheap.Update(gp, constPredictor{mean: 1}))
	require.NoError(t, expensive.Update(gp, constPredictor{mean: 2}))

	require.Len(t, cheap.Representers(), 5)
	assert.Equal(t, cheap.Representers(), expensive.Representers())

	// Representers live at full fidelity.
	for _, r := range cheap.Representers() {
		require.Len(t, r, 2)
		assert.Equal(t, 1.0, r[1])
	}

	for _, x := range [][]float64{{0.35, 1}, {0.5, 0.2}, {0.05, 0.8}} {
		a := cheap.Compute(x)
		b := expensive.Compute(x)

		assert.GreaterOrEqual(t, a, 0.0)
		assert.InDelta(t, a, 2*b, 1e-9)
	}
}

func TestInformationGainNotBound(t *testing.T) {
	ig := newTestInformationGain(1)

	assert.Equal(t, nanScore, ig.Compute([]float64{0.5, 0.5}))
}

func TestInformationGainNeedsJointPredictions(t *testing.T) {
	ig := newTestInformationGain(1)

	err := ig.Update(constPredictor{}, constPredictor{mean: 1})

	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestMarginalization(t *testing.T) {
	model := &ensembleStub{members: []Predictor{
		constPredictor{mean: 1},
		constPredictor{mean: 2},
		constPredictor{mean: 6},
	}}

	m := NewMarginalization(func() AcquisitionFunction { return &spyAcquisition{} })

	assert.Equal(t, nanScore, m.Compute([]float64{0, 0}))

	require.NoError(t, m.Update(model, constPredictor{mean: 1}))
	require.Len(t, m.Estimators(), 3)

	assert.InDelta(t, 3.0, m.Compute([]float64{0, 0}), 1e-12)

	for _, e := range m.Estimators() {
		assert.Equal(t, 1, e.(*spyAcquisition).updates)
	}
}

func TestMarginalizationSingleModel(t *testing.T) {
	m := NewMarginalization(func() AcquisitionFunction { return &spyAcquisition{} })

	require.NoError(t, m.Update(constPredictor{mean: 4}, constPredictor{mean: 1}))

	assert.Len(t, m.Estimators(), 1)
	assert.Equal(t, 4.0, m.Compute([]float64{0, 0}))
}

func TestMarginalizationPropagatesErrors(t *testing.T) {
	model := &ensembleStub{members: []Predictor{constPredictor{}}}
	m := NewMarginalization(func() AcquisitionFunction { return newTestInformationGain(1) })

	err := m.Update(model, constPredictor{mean: 1})

	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestMarginalizedInformationGainOverGPMCMC(t *testing.T) {
	model := newTestGPMCMC(4)
	X, y := mcmcTrainingSet()
	require.NoError(t, model.Train(X, y, true))

	m := NewMarginalization(func() AcquisitionFunction {
		return NewInformationGainPerUnitCost(InformationGainConfig{
			Lower:        []float64{0, 0, 0},
			Upper:        []float64{1, 1, 1},
			Representers: 4,
			Samples:      100,
			RandomState:  NewRandomState(2),
		})
	})

	require.NoError(t, m.Update(model, constPredictor{mean: 0.5}))
	assert.Len(t, m.Estimators(), len(model.Members()))

	score := m.Compute([]float64{0.3, 0.3, 0.5})
	assert.False(t, math.IsNaN(score))
	assert.Greater(t, score, nanScore)
}

func TestAcquisitionEngineClampsProposals(t *testing.T) {
	maximizer := &fixedMaximizer{point: []float64{2, -1, 0.5}}
	engine := newAcquisitionEngine(&spyAcquisition{}, maximizer, []float64{0, 0}, []float64{1, 1})

	require.NoError(t, engine.Update(constPredictor{}, constPredictor{}))

	assert.Equal(t, []float64{1, 0, 0.5}, engine.Maximize())
	assert.Equal(t, []float64{0, 0, 0}, maximizer.lower)
	assert.Equal(t, []float64{1, 1, 1}, maximizer.upper)
}
