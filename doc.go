// Package fabolas provides multi-fidelity Bayesian optimization (FABOLAS) for
// expensive objectives whose evaluation cost is controlled by a fidelity, for
// instance the size of the training subset used to score machine learning
// hyperparameters.
//
// Instead of always evaluating on the full dataset, the optimizer learns how
// both the objective value and the evaluation cost vary with configuration and
// fidelity, and picks at every round the configuration and fidelity that
// maximize the information gained about the optimum per unit of cost. The
// answer is always reported at full fidelity.
//
// # Features
//
//   - Log-scale fidelity transform: Transform and Retransform map raw
//     fidelities onto [0, 1] and back
//   - Gaussian Process surrogates for objective and cost, with Matern 5/2
//     kernels on the configuration and a Bayesian linear kernel on the
//     fidelity, hyperparameters marginalized by MCMC (GPMCMC)
//   - Information gain per unit cost (InformationGainPerUnitCost) averaged
//     over the hyperparameter samples (Marginalization)
//   - DIRECT global maximizer (Direct) and random search (RandomSearch)
//   - Projected incumbent estimation (ProjectedIncumbent)
//   - Progress monitoring via channels and structured logging via log/slog
//   - YAML run configuration (LoadConfig, ParseConfig)
//   - Independent runs in parallel (OptimizeSeeds)
//
// # Usage
//
//	config := DefaultConfig()
//	config.Lower = []float64{-10, -10}
//	config.Upper = []float64{2, 2}
//	config.SMin = 100
//	config.SMax = 50000
//	config.RandomState = NewRandomState(1)
//
//	result, err := Optimize(func(x []float64, s float64) (float64, float64, error) {
//	    start := time.Now()
//	    loss, err := trainSVM(math.Exp(x[0]), math.Exp(x[1]), int(s))
//	    return loss, time.Since(start).Seconds(), err
//	}, config)
//
// # Collaborators
//
// Every collaborator of the loop is an interface (Model, AcquisitionFunction,
// Maximizer, IncumbentEstimator) and may be replaced through
// OptimizationConfig. The loop itself is single-threaded: each round blocks
// on training and on the evaluation, and the observation history is only
// touched by the loop.
package fabolas
