package fabolas

import "math"

// BasisFunc maps the transformed fidelity onto the feature used by the
// Bayesian linear environment kernel.
type BasisFunc func(s float64) float64

// QuadraticBasis models a quantity that flattens out as the fidelity grows,
// such as a validation loss: (1 - s)^2.
func QuadraticBasis(s float64) float64 {
	return (1 - s) * (1 - s)
}

// LinearBasis models a quantity growing with the fidelity, such as a training
// cost.
func LinearBasis(s float64) float64 {
	return s
}

// Number of weights of the environment kernel (degree one regression).
const envParams = 2

// numKernelParams is the number of kernel hyperparameters for dims
// configuration dimensions: amplitude, one length scale per dimension and the
// environment weights.
func numKernelParams(dims int) int {
	return 1 + dims + envParams
}

// numHypers is the length of a full hyperparameter vector, kernel
// parameters followed by the log noise.
func numHypers(dims int) int {
	return numKernelParams(dims) + 1
}

// defaultHypers is the starting point of the kernel: unit amplitude, length
// scales of 0.01, environment weights of 0.1 and a noise of e^-8.
func defaultHypers(dims int) []float64 {
	theta := make([]float64, numHypers(dims))
	theta[0] = 0
	for d := 0; d < dims; d++ {
		theta[1+d] = math.Log(0.01)
	}
	for p := 0; p < envParams; p++ {
		theta[1+dims+p] = math.Log(0.1)
	}
	theta[len(theta)-1] = -8

	return theta
}

// fabolasKernel is the product of one Matern 5/2 kernel per configuration
// dimension and a Bayesian linear regression kernel over the fidelity:
//
//	k(a, b) = amp * prod_d m52(a_d, b_d; l_d) * (w0 + w1 * phi(a_s) * phi(b_s))
//
// Points are expected with their configuration part normalized to [0, 1].
type fabolasKernel struct {
	amplitude float64
	metrics   []float64
	weights   [envParams]float64
	basis     BasisFunc
}

// newFabolasKernel decodes the kernel part of theta. Length scales are stored
// as log squared distances.
func newFabolasKernel(theta []float64, dims int, basis BasisFunc) *fabolasKernel {
	k := &fabolasKernel{
		amplitude: math.Exp(theta[0]),
		metrics:   make([]float64, dims),
		basis:     basis,
	}
	for d := 0; d < dims; d++ {
		k.metrics[d] = math.Exp(theta[1+d])
	}
	for p := 0; p < envParams; p++ {
		k.weights[p] = math.Exp(theta[1+dims+p])
	}

	return k
}

// Eval returns k(a, b).
func (k *fabolasKernel) Eval(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("input vectors must have the same length")
	}

	v := k.amplitude
	for d, metric := range k.metrics {
		diff := a[d] - b[d]
		v *= matern52(diff * diff / metric)
	}

	dims := len(k.metrics)
	v *= k.weights[0] + k.weights[1]*k.basis(a[dims])*k.basis(b[dims])

	return v
}

// matern52 evaluates the Matern 5/2 correlation at a scaled squared distance.
func matern52(r2 float64) float64 {
	r := math.Sqrt(5 * r2)

	return (1 + r + 5*r2/3) * math.Exp(-r)
}
