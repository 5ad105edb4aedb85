package fabolas

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

//////
// Errors.
//////

var (
	// ErrInvalidConfig is returned when an OptimizationConfig violates one of
	// the run preconditions. No evaluation happens when this is returned.
	ErrInvalidConfig = errors.New("invalid optimization config")

	// ErrNilObjective is returned when Optimize is called without an objective.
	ErrNilObjective = errors.New("objective function is nil")

	// ErrNotTrained is returned when a surrogate is queried before Train.
	ErrNotTrained = errors.New("model has not been trained")

	// ErrUnsupportedModel is returned when an acquisition function needs a
	// capability the supplied model does not provide.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrSingularCovariance is returned when a covariance matrix cannot be
	// factorized even after adding jitter to its diagonal.
	ErrSingularCovariance = errors.New("covariance matrix is not positive definite")
)

//////
// Objective.
//////

// Objective is the expensive black box being optimized.
//
// Parameters:
//   - x: configuration, one value per dimension, inside [Lower, Upper]
//   - s: raw fidelity (e.g. the number of training points), an integer value
//     inside [SMin, SMax]
//
// Returns:
//   - value: the objective value at (x, s), lower is better
//   - cost: the observed cost of the evaluation (e.g. seconds), must be > 0
//   - error: any failure. A failing evaluation aborts the whole run.
//
// Usage example:
//
//	obj := Objective(func(x []float64, s float64) (float64, float64, error) {
//	    start := time.Now()
//	    loss, err := trainAndValidate(x[0], x[1], int(s))
//	    if err != nil {
//	        return 0, 0, err
//	    }
//	    return loss, time.Since(start).Seconds(), nil
//	})
type Objective func(x []float64, s float64) (value, cost float64, err error)

//////
// Surrogates.
//////

// Predictor returns the predictive distribution of a fitted model at a single
// augmented point (configuration followed by the transformed fidelity).
type Predictor interface {
	Predict(x []float64) (mean, variance float64)
}

// Model is a surrogate regression model over the augmented space.
//
// Train replaces any previous fit entirely. When doOptimize is true the model
// re-estimates its hyperparameters, otherwise it refits with the ones it
// already has.
type Model interface {
	Predictor
	Train(X [][]float64, y []float64, doOptimize bool) error
}

// Ensemble is a Model made of one fitted member per hyperparameter sample.
type Ensemble interface {
	Model
	Members() []Predictor
}

//////
// Acquisition.
//////

// AcquisitionFunction scores augmented points, higher is better.
type AcquisitionFunction interface {
	// Update rebinds the function to freshly trained objective and cost
	// models.
	Update(model, costModel Predictor) error

	// Compute returns the score of x.
	Compute(x []float64) float64
}

// Maximizer finds the point maximizing f inside [lower, upper]. The returned
// point must lie within the bounds.
type Maximizer interface {
	Maximize(f func(x []float64) float64, lower, upper []float64) []float64
}

// IncumbentEstimator picks the best predicted configuration once the given
// configurations are projected onto the transformed fidelity projection.
//
// Returns the augmented incumbent (configuration ++ projection) and its
// predicted value.
type IncumbentEstimator interface {
	Estimate(model Predictor, configurations [][]float64, projection float64) (incumbent []float64, value float64)
}

//////
// Progress.
//////

// ProgressUpdate represents the state of the optimization after one round.
type ProgressUpdate struct {
	// Phase is either PhaseInitialDesign or PhaseOptimization.
	Phase string

	// CurrentIteration is the 1-based round number.
	CurrentIteration int

	// TotalIterations is the iteration budget of the run.
	TotalIterations int

	// Configuration is the configuration that was evaluated this round.
	Configuration []float64

	// Fidelity is the raw fidelity used for the evaluation.
	Fidelity float64

	// Value and Cost are what the objective returned.
	Value float64
	Cost  float64

	// Incumbent is the latest trajectory entry, reported at SMax.
	Incumbent []float64
}

// Phase names used in ProgressUpdate.
const (
	PhaseInitialDesign = "InitialDesign"
	PhaseOptimization  = "Optimization"
)

//////
// Configuration.
//////

// OptimizationConfig holds all parameters of a FABOLAS run.
//
// Fields explanation:
//   - Lower, Upper: box of the configuration space, same length, Lower[i] < Upper[i]
//   - SMin, SMax: raw fidelity range, 0 < SMin < SMax
//   - InitialDesign: number of random rounds before model-guided search
//   - Iterations: total number of rounds, including the initial design
//   - Burnin, ChainLength: MCMC settings forwarded to the default surrogates
//   - Subsets: divisors of SMax cycled through during the initial design
//
// Collaborators left nil are built from the defaults when the run starts:
// MCMC Gaussian processes for the objective and the cost, information gain
// per unit cost marginalized over the hyperparameter samples, DIRECT as the
// maximizer and projected incumbent estimation.
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Lower = []float64{-10, -10}
//	config.Upper = []float64{2, 2}
//	config.SMin = 100
//	config.SMax = 50000
//	config.Iterations = 50
//
//	result, err := Optimize(objective, config)
type OptimizationConfig struct {
	// Lower and Upper bound the configuration space.
	Lower []float64 `yaml:"lower"`
	Upper []float64 `yaml:"upper"`

	// SMin and SMax bound the raw fidelity.
	SMin float64 `yaml:"s_min"`
	SMax float64 `yaml:"s_max"`

	// InitialDesign is the number of initial random rounds. Must be in
	// [1, Iterations].
	InitialDesign int `yaml:"n_init"`

	// Iterations is the total round budget.
	Iterations int `yaml:"num_iterations"`

	// Burnin is the number of MCMC steps discarded the first time the
	// surrogates are trained.
	Burnin int `yaml:"burnin"`

	// ChainLength is the number of MCMC steps run at every training.
	ChainLength int `yaml:"chain_length"`

	// NumHypers is the number of MCMC walkers, hence of hyperparameter
	// samples. Zero means three times the number of kernel parameters.
	NumHypers int `yaml:"n_hypers"`

	// Subsets holds the divisors of SMax used by the initial design, in
	// cycling order.
	Subsets []float64 `yaml:"subsets"`

	// Representers is the number of representer points used to estimate the
	// distribution of the minimum.
	Representers int `yaml:"n_representer"`

	// FinalOptimize controls hyperparameter re-estimation when the objective
	// model is trained for the final incumbent.
	FinalOptimize bool `yaml:"final_optimize"`

	// RandomState drives every stochastic component of the run.
	RandomState *rand.Rand `yaml:"-"`

	// Logger receives run events. Nil discards them.
	Logger *slog.Logger `yaml:"-"`

	// ProgressChan is used to send progress updates during optimization.
	// If nil, no updates will be sent.
	ProgressChan chan<- ProgressUpdate `yaml:"-"`

	// ObjectiveModel and CostModel override the default surrogates.
	ObjectiveModel Model `yaml:"-"`
	CostModel      Model `yaml:"-"`

	// Acquisition overrides the default acquisition function.
	Acquisition AcquisitionFunction `yaml:"-"`

	// Maximizer overrides the default DIRECT maximizer.
	Maximizer Maximizer `yaml:"-"`

	// Estimator overrides the default projected incumbent estimator.
	Estimator IncumbentEstimator `yaml:"-"`
}

//////
// Results.
//////

// Observation is one evaluated point. X is the augmented point, so its last
// coordinate is the transformed fidelity.
type Observation struct {
	X     []float64
	Value float64
	Cost  float64
}

// Result is what a run returns.
type Result struct {
	// XOpt is the configuration of the final incumbent.
	XOpt []float64

	// Trajectory holds one incumbent per round plus the final one. Every
	// entry has the raw SMax as its last coordinate.
	Trajectory [][]float64

	// IncumbentValues is index-aligned with Trajectory: observed value in the
	// initial design, predicted value afterwards.
	IncumbentValues []float64

	// Runtime is the cumulative wall-clock time at the end of each round.
	Runtime []time.Duration

	// Overhead is the time spent outside the objective in each round.
	Overhead []time.Duration

	// FuncEvalTime is the time spent in the objective in each round.
	FuncEvalTime []time.Duration

	// Observations is the full evaluation history, in arrival order.
	Observations []Observation

	// Seed is set by OptimizeSeeds.
	Seed uint64
}
