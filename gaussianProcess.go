package fabolas

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

const (
	// minJitter is the first value added to the diagonal of a covariance
	// matrix that failed to factorize.
	minJitter = 1e-10

	// maxRelativeJitter caps the jitter, relative to the mean diagonal.
	maxRelativeJitter = 1e-2

	// minVariance floors predictive variances.
	minVariance = 1e-10

	// minCost floors costs before taking their log.
	minCost = 1e-12
)

// gaussianProcess is a Gaussian Process regression model over the augmented
// space with fixed hyperparameters. It is one member of the MCMC ensemble.
//
// Fields:
//   - mu: RWMutex for thread-safe access to all fields
//   - X: normalized training inputs
//   - Y: training targets, in log space when logTargets is set
//   - theta: hyperparameters, kernel parameters followed by the log noise
//
// Thread safety:
//   - Fit takes the write lock, predictions take the read lock
type gaussianProcess struct {
	// mu protects access to all fields
	mu sync.RWMutex

	lower, upper []float64
	kernel       *fabolasKernel
	theta        []float64
	noise        float64
	logTargets   bool

	X      [][]float64
	Y      []float64
	offset float64
	chol   mat.Cholesky
	alpha  *mat.VecDense
}

//////
// Methods.
//////

// normalize maps the configuration part of an augmented point onto [0, 1],
// leaving the fidelity as is.
func (gp *gaussianProcess) normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	for d := range gp.lower {
		out[d] = (x[d] - gp.lower[d]) / (gp.upper[d] - gp.lower[d])
	}
	out[len(x)-1] = x[len(x)-1]

	return out
}

// Fit conditions the process on (X, y). y holds raw targets, they are logged
// here for a cost model.
//
// Important notes:
//   - Replaces any previous fit
//   - The mean is the empirical mean of the targets
//   - Adds increasing jitter to the diagonal when K + noise*I is not
//     positive definite, fails with ErrSingularCovariance past the cap
func (gp *gaussianProcess) Fit(X [][]float64, y []float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	n := len(X)
	if n == 0 || n != len(y) {
		return fmt.Errorf("fit needs matching non-empty inputs, got %d points and %d targets", n, len(y))
	}

	gp.X = make([][]float64, n)
	for i, x := range X {
		gp.X[i] = gp.normalize(x)
	}

	gp.Y = make([]float64, n)
	for i, v := range y {
		if gp.logTargets {
			v = math.Log(math.Max(v, minCost))
		}
		gp.Y[i] = v
	}
	gp.offset = stat.Mean(gp.Y, nil)

	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			K.SetSym(i, j, gp.kernel.Eval(gp.X[i], gp.X[j]))
		}
		K.SetSym(i, i, K.At(i, i)+gp.noise)
	}

	if err := factorize(&gp.chol, K); err != nil {
		return err
	}

	centered := make([]float64, n)
	for i, v := range gp.Y {
		centered[i] = v - gp.offset
	}

	gp.alpha = mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(gp.alpha, mat.NewVecDense(n, centered)); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}

	return nil
}

// LogLikelihood returns the log marginal likelihood of the fitted data.
func (gp *gaussianProcess) LogLikelihood() float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	n := len(gp.Y)
	var fit float64
	for i, v := range gp.Y {
		fit += (v - gp.offset) * gp.alpha.AtVec(i)
	}

	return -0.5*fit - 0.5*gp.chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
}

// latent returns the posterior mean and variance of the latent function at a
// normalized point. Callers hold the read lock.
func (gp *gaussianProcess) latent(z []float64) (mean, variance float64) {
	n := len(gp.X)

	k := make([]float64, n)
	for i := range gp.X {
		k[i] = gp.kernel.Eval(z, gp.X[i])
	}

	mean = gp.offset + floats.Dot(k, gp.alpha.RawVector().Data)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, mat.NewVecDense(n, k)); err != nil {
		return mean, minVariance
	}

	variance = gp.kernel.Eval(z, z) - floats.Dot(k, v.RawVector().Data)

	return mean, math.Max(variance, minVariance)
}

// Predict returns the predictive mean and variance at the augmented point x.
// A cost model answers in raw cost units: exp of the log-space mean, with the
// matching lognormal variance.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if gp.alpha == nil {
		return 0, 1
	}

	m, v := gp.latent(gp.normalize(x))
	if !gp.logTargets {
		return m, v
	}

	return math.Exp(m), math.Expm1(v) * math.Exp(2*m+v)
}

// PredictJoint returns the joint posterior of the latent function over the
// given augmented points: mean vector and covariance matrix.
func (gp *gaussianProcess) PredictJoint(points [][]float64) ([]float64, *mat.SymDense, error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if gp.alpha == nil {
		return nil, nil, ErrNotTrained
	}

	n, m := len(gp.X), len(points)

	z := make([][]float64, m)
	for j, p := range points {
		z[j] = gp.normalize(p)
	}

	ks := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			ks.Set(i, j, gp.kernel.Eval(gp.X[i], z[j]))
		}
	}

	var solved mat.Dense
	if err := gp.chol.SolveTo(&solved, ks); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}

	var reduction mat.Dense
	reduction.Mul(ks.T(), &solved)

	mean := make([]float64, m)
	cov := mat.NewSymDense(m, nil)
	for j := 0; j < m; j++ {
		mean[j] = gp.offset + floats.Dot(mat.Col(nil, j, ks), gp.alpha.RawVector().Data)
		for l := j; l < m; l++ {
			cov.SetSym(j, l, gp.kernel.Eval(z[j], z[l])-reduction.At(j, l))
		}
	}

	return mean, cov, nil
}

// NoiseVariance returns the observation noise variance.
func (gp *gaussianProcess) NoiseVariance() float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return gp.noise
}

// Hypers returns a copy of the hyperparameter vector.
func (gp *gaussianProcess) Hypers() []float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return cloneVec(gp.theta)
}

//////
// Helpers.
//////

// factorize computes the Cholesky decomposition of a, adding jitter to the
// diagonal until it succeeds or the jitter exceeds maxRelativeJitter times
// the mean diagonal.
func factorize(chol *mat.Cholesky, a *mat.SymDense) error {
	if chol.Factorize(a) {
		return nil
	}

	n := a.SymmetricDim()
	var diag float64
	for i := 0; i < n; i++ {
		diag += a.At(i, i)
	}
	limit := math.Max(diag/float64(n), 1) * maxRelativeJitter

	jittered := mat.NewSymDense(n, nil)
	for jitter := minJitter; jitter <= limit; jitter *= 10 {
		jittered.CopySym(a)
		for i := 0; i < n; i++ {
			jittered.SetSym(i, i, a.At(i, i)+jitter)
		}
		if chol.Factorize(jittered) {
			return nil
		}
	}

	return ErrSingularCovariance
}

//////
// Factory.
//////

// newGaussianProcess creates a process with the hyperparameters theta over a
// configuration space bounded by lower and upper.
func newGaussianProcess(theta, lower, upper []float64, basis BasisFunc, logTargets bool) *gaussianProcess {
	dims := len(lower)

	return &gaussianProcess{
		lower:      lower,
		upper:      upper,
		kernel:     newFabolasKernel(theta, dims, basis),
		theta:      cloneVec(theta),
		noise:      math.Exp(theta[len(theta)-1]),
		logTargets: logTargets,
	}
}
