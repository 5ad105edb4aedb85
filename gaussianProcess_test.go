package fabolas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKernel(t *testing.T) {
	k := newFabolasKernel(defaultHypers(2), 2, QuadraticBasis)

	a := []float64{0.2, 0.4, 0.5}
	b := []float64{0.3, 0.1, 0.9}

	// Symmetric, maximal on the diagonal.
	assert.InDelta(t, k.Eval(a, b), k.Eval(b, a), 1e-15)
	assert.Greater(t, k.Eval(a, a), k.Eval(a, b))

	// Unit amplitude: the diagonal is the environment kernel alone.
	phi := QuadraticBasis(0.5)
	assert.InDelta(t, 0.1+0.1*phi*phi, k.Eval(a, a), 1e-12)

	assert.Panics(t, func() { k.Eval(a, b[:2]) })
}

func TestMatern52(t *testing.T) {
	assert.Equal(t, 1.0, matern52(0))
	assert.Less(t, matern52(1), matern52(0.5))
	assert.InDelta(t, 0, matern52(1e4), 1e-12)
}

func TestHyperLayout(t *testing.T) {
	assert.Equal(t, 5, numKernelParams(2))
	assert.Equal(t, 6, numHypers(2))

	theta := defaultHypers(2)
	require.Len(t, theta, 6)
	assert.Equal(t, -8.0, theta[5])
}

func trainingSet() ([][]float64, []float64) {
	X := [][]float64{
		{0.1, 1},
		{0.5, 1},
		{0.9, 1},
		{0.3, 0.2},
	}
	y := []float64{1, 2, 3, 4}

	return X, y
}

func TestGaussianProcessInterpolates(t *testing.T) {
	gp := newGaussianProcess(defaultHypers(1), []float64{0}, []float64{1}, QuadraticBasis, false)

	X, y := trainingSet()
	require.NoError(t, gp.Fit(X, y))

	for i, x := range X {
		m, v := gp.Predict(x)
		assert.InDelta(t, y[i], m, 0.05)
		assert.Less(t, v, 0.01)
	}

	// Far from the data the mean goes back to the empirical mean.
	m, v := gp.Predict([]float64{0.7, 1})
	assert.InDelta(t, 2.5, m, 0.5)
	assert.Greater(t, v, 0.01)

	assert.False(t, math.IsNaN(gp.LogLikelihood()))
	assert.InDelta(t, math.Exp(-8), gp.NoiseVariance(), 1e-12)
}

func TestGaussianProcessUntrained(t *testing.T) {
	gp := newGaussianProcess(defaultHypers(1), []float64{0}, []float64{1}, QuadraticBasis, false)

	m, v := gp.Predict([]float64{0.5, 1})
	assert.Equal(t, 0.0, m)
	assert.Equal(t, 1.0, v)

	_, _, err := gp.PredictJoint([][]float64{{0.5, 1}})
	assert.ErrorIs(t, err, ErrNotTrained)

	assert.Error(t, gp.Fit(nil, nil))
}

func TestGaussianProcessLogTargets(t *testing.T) {
	gp := newGaussianProcess(defaultHypers(1), []float64{0}, []float64{1}, LinearBasis, true)

	X, _ := trainingSet()
	costs := []float64{1, 10, 100, 5}
	require.NoError(t, gp.Fit(X, costs))

	for i, x := range X {
		m, v := gp.Predict(x)
		assert.InEpsilon(t, costs[i], m, 0.05)
		assert.Greater(t, v, 0.0)
	}

	m, _ := gp.Predict([]float64{0.7, 0.5})
	assert.Greater(t, m, 0.0)
}

func TestGaussianProcessPredictJoint(t *testing.T) {
	gp := newGaussianProcess(defaultHypers(2), []float64{-5, 0}, []float64{10, 15}, QuadraticBasis, false)

	X := [][]float64{
		{-5, 0, 0},
		{0, 5, 0.5},
		{10, 15, 1},
		{2.5, 7.5, 0.2},
	}
	y := []float64{3, 1, 2, 0.5}
	require.NoError(t, gp.Fit(X, y))

	points := [][]float64{{1, 3, 1}, {7, 2, 0.4}, {0, 5, 0.5}}
	mean, cov, err := gp.PredictJoint(points)
	require.NoError(t, err)
	require.Len(t, mean, 3)
	require.Equal(t, 3, cov.SymmetricDim())

	for j, p := range points {
		m, v := gp.Predict(p)
		assert.InDelta(t, m, mean[j], 1e-9)
		assert.InDelta(t, v, math.Max(cov.At(j, j), minVariance), 1e-9)
	}

	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))
}

func TestFactorize(t *testing.T) {
	t.Run("positive definite", func(t *testing.T) {
		var chol mat.Cholesky
		a := mat.NewSymDense(2, []float64{2, 1, 1, 2})
		assert.NoError(t, factorize(&chol, a))
	})

	t.Run("singular gets jitter", func(t *testing.T) {
		var chol mat.Cholesky
		a := mat.NewSymDense(3, []float64{
			1, 1, 1,
			1, 1, 1,
			1, 1, 1,
		})
		require.NoError(t, factorize(&chol, a))

		// The input is left untouched.
		assert.Equal(t, 1.0, a.At(0, 0))
	})

	t.Run("negative definite", func(t *testing.T) {
		var chol mat.Cholesky
		a := mat.NewSymDense(2, []float64{-1, 0, 0, -1})
		assert.ErrorIs(t, factorize(&chol, a), ErrSingularCovariance)
	})
}
