package fabolas

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"
)

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration. The search space and the
// fidelity range have no sensible default and must be set by the caller.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		InitialDesign: 2,
		Iterations:    30,
		Burnin:        100,
		ChainLength:   200,
		Subsets:       []float64{256, 128, 64, 32},
		Representers:  10,
		FinalOptimize: true,
		RandomState:   newRandomState(),
		ProgressChan:  nil, // Default to no progress updates.
	}
}

// Validate checks the run preconditions. It is called by Optimize before any
// work is done.
func (c OptimizationConfig) Validate() error {
	if len(c.Lower) == 0 {
		return fmt.Errorf("%w: empty configuration space", ErrInvalidConfig)
	}
	if len(c.Lower) != len(c.Upper) {
		return fmt.Errorf("%w: dimension mismatch between lower (%d) and upper (%d) bounds", ErrInvalidConfig, len(c.Lower), len(c.Upper))
	}
	for i := range c.Lower {
		if !(c.Lower[i] < c.Upper[i]) {
			return fmt.Errorf("%w: lower bound %v is not below upper bound %v in dimension %d", ErrInvalidConfig, c.Lower[i], c.Upper[i], i)
		}
	}
	if !(c.SMin > 0) || !(c.SMax > c.SMin) {
		return fmt.Errorf("%w: fidelity range needs 0 < s_min < s_max, got [%v, %v]", ErrInvalidConfig, c.SMin, c.SMax)
	}
	if c.InitialDesign < 1 {
		return fmt.Errorf("%w: at least one initial design point is needed to train the surrogates, got %d", ErrInvalidConfig, c.InitialDesign)
	}
	if c.InitialDesign > c.Iterations {
		return fmt.Errorf("%w: number of initial design points (%d) has to be <= the number of iterations (%d)", ErrInvalidConfig, c.InitialDesign, c.Iterations)
	}
	if c.Burnin <= 0 || c.ChainLength <= 0 {
		return fmt.Errorf("%w: burnin and chain length must be positive, got %d and %d", ErrInvalidConfig, c.Burnin, c.ChainLength)
	}
	if c.NumHypers < 0 || c.Representers < 0 {
		return fmt.Errorf("%w: negative number of hyperparameter samples or representers", ErrInvalidConfig)
	}
	if len(c.Subsets) == 0 {
		return fmt.Errorf("%w: empty initial design subset schedule", ErrInvalidConfig)
	}
	for _, s := range c.Subsets {
		if !(s > 0) {
			return fmt.Errorf("%w: subset divisors must be positive, got %v", ErrInvalidConfig, s)
		}
	}

	return nil
}

// withDefaults fills the collaborators left nil.
func (c OptimizationConfig) withDefaults() OptimizationConfig {
	if c.RandomState == nil {
		c.RandomState = newRandomState()
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	if c.ObjectiveModel == nil {
		c.ObjectiveModel = NewObjectiveModel(c)
	}
	if c.CostModel == nil {
		c.CostModel = NewCostModel(c)
	}
	if c.Acquisition == nil {
		lower := withFidelity(c.Lower, 0)
		upper := withFidelity(c.Upper, 1)
		rng := c.RandomState
		representers := c.Representers

		c.Acquisition = NewMarginalization(func() AcquisitionFunction {
			return NewInformationGainPerUnitCost(InformationGainConfig{
				Lower:        lower,
				Upper:        upper,
				Representers: representers,
				RandomState:  rng,
			})
		})
	}
	if c.Maximizer == nil {
		c.Maximizer = &Direct{MaxEvaluations: 400}
	}
	if c.Estimator == nil {
		c.Estimator = ProjectedIncumbent{}
	}

	return c
}

// initialFidelity is the raw fidelity of initial design round i: sMax
// divided by the cycled subset divisor, floored and kept inside the range.
func (c OptimizationConfig) initialFidelity(i int) float64 {
	s := math.Floor(c.SMax / c.Subsets[i%len(c.Subsets)])

	return math.Min(math.Max(s, c.SMin), c.SMax)
}

// Optimize runs FABOLAS: it minimizes objective over [Lower, Upper] while
// learning how both the objective and its cost depend on the fidelity, so
// that most evaluations happen on cheap, small fidelities.
//
// Parameters:
//   - objective: the function to minimize
//   - config: OptimizationConfig controlling the run
//
// Returns:
//   - *Result: final incumbent, trajectory and timings
//   - error: a precondition violation (ErrInvalidConfig, before any
//     evaluation) or the first failure of the objective, a surrogate or the
//     acquisition function. There are no retries.
//
// How it works:
//  1. InitialDesign rounds evaluate uniform random configurations on small
//     fidelities (SMax divided by the cycled Subsets); the incumbent is the
//     best observed configuration
//  2. Each remaining round:
//     - Retrains the objective and cost surrogates on all observations
//     - Projects the observed configurations onto SMax to get the incumbent
//     - Maximizes the acquisition function over configuration and fidelity
//     - Evaluates the proposed point
//  3. The objective surrogate is trained once more and the final incumbent is
//     its projection onto SMax
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Lower = []float64{0, 0}
//	config.Upper = []float64{1, 1}
//	config.SMin = 100
//	config.SMax = 60000
//
//	result, err := Optimize(objective, config)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.XOpt)
//
// Important notes:
//   - Single-threaded: rounds run one after the other and block on the
//     evaluation and on training
//   - Every incumbent is reported at the raw SMax
//   - Use OptimizeSeeds for independent runs in parallel
func Optimize(objective Objective, config OptimizationConfig) (*Result, error) {
	if objective == nil {
		return nil, ErrNilObjective
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeStart := time.Now()

	config = config.withDefaults()

	rng := config.RandomState
	logger := config.Logger
	dims := len(config.Lower)

	store := newObservationStore(config.Iterations)

	result := &Result{
		Trajectory:      make([][]float64, 0, config.Iterations+1),
		IncumbentValues: make([]float64, 0, config.Iterations+1),
		Runtime:         make([]time.Duration, 0, config.Iterations),
		Overhead:        make([]time.Duration, 0, config.Iterations),
		FuncEvalTime:    make([]time.Duration, 0, config.Iterations),
	}

	addIncumbent := func(incumbent []float64, value float64) {
		result.Trajectory = append(result.Trajectory, incumbent)
		result.IncumbentValues = append(result.IncumbentValues, value)
	}

	// Helper function to send progress updates.
	sendProgress := func(phase string, iteration int, x []float64, s, value, cost float64) {
		if config.ProgressChan == nil {
			return
		}

		update := ProgressUpdate{
			Phase:            phase,
			CurrentIteration: iteration,
			TotalIterations:  config.Iterations,
			Configuration:    cloneVec(x),
			Fidelity:         s,
			Value:            value,
			Cost:             cost,
			Incumbent:        cloneVec(result.Trajectory[len(result.Trajectory)-1]),
		}

		select {
		case config.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	// Phase 1: Initial design.
	//
	// Random configurations on increasing fidelities. The incumbent is the
	// best observation so far, not a model estimate.
	for i := 0; i < config.InitialDesign; i++ {
		startOverhead := time.Now()

		s := config.initialFidelity(i)
		x := uniformSample(rng, config.Lower, config.Upper)

		value, cost, evalTime, err := measureEvaluation(objective, x, s)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: evaluate objective: %w", i, err)
		}
		result.FuncEvalTime = append(result.FuncEvalTime, evalTime)

		store.Append(withFidelity(x, Transform(s, config.SMin, config.SMax)), value, cost)

		addIncumbent(bestObservedIncumbent(store, config.SMax))

		result.Overhead = append(result.Overhead, time.Since(startOverhead)-evalTime)
		result.Runtime = append(result.Runtime, time.Since(timeStart))

		logger.Info("initial design point evaluated",
			slog.Int("iteration", i),
			slog.Any("configuration", x),
			slog.Float64("fidelity", s),
			slog.Float64("value", value),
			slog.Float64("cost", cost))

		sendProgress(PhaseInitialDesign, i+1, x, s, value, cost)
	}

	// Phase 2: Model-guided search.
	engine := newAcquisitionEngine(config.Acquisition, config.Maximizer, config.Lower, config.Upper)
	projection := Transform(config.SMax, config.SMin, config.SMax)

	for it := config.InitialDesign; it < config.Iterations; it++ {
		logger.Info("start iteration", slog.Int("iteration", it))

		startTime := time.Now()

		// Train models.
		if err := config.ObjectiveModel.Train(store.X, store.y, true); err != nil {
			return nil, fmt.Errorf("iteration %d: train objective model: %w", it, err)
		}
		if err := config.CostModel.Train(store.X, store.c, true); err != nil {
			return nil, fmt.Errorf("iteration %d: train cost model: %w", it, err)
		}

		// Project the observed configurations onto the full fidelity and pick
		// the lowest mean prediction.
		incumbent, incumbentValue := config.Estimator.Estimate(config.ObjectiveModel, store.Configurations(), projection)
		incumbent = cloneVec(incumbent)
		incumbent[dims] = config.SMax
		addIncumbent(incumbent, incumbentValue)

		logger.Info("current incumbent",
			slog.Any("incumbent", incumbent),
			slog.Float64("estimated_value", incumbentValue))

		// Maximize acquisition function.
		if err := engine.Update(config.ObjectiveModel, config.CostModel); err != nil {
			return nil, fmt.Errorf("iteration %d: update acquisition function: %w", it, err)
		}
		newX := engine.Maximize()
		s := Retransform(newX[dims], config.SMin, config.SMax)

		overhead := time.Since(startTime)
		result.Overhead = append(result.Overhead, overhead)
		logger.Info("optimization overhead", slog.Duration("overhead", overhead))

		// Evaluate the chosen configuration.
		logger.Info("evaluate candidate", slog.Any("candidate", newX), slog.Float64("fidelity", s))

		value, cost, evalTime, err := measureEvaluation(objective, newX[:dims], s)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: evaluate objective: %w", it, err)
		}
		result.FuncEvalTime = append(result.FuncEvalTime, evalTime)

		logger.Info("candidate evaluated",
			slog.Float64("value", value),
			slog.Float64("cost", cost),
			slog.Duration("evaluation_time", evalTime))

		// The proposed point keeps its transformed fidelity.
		store.Append(newX, value, cost)

		result.Runtime = append(result.Runtime, time.Since(timeStart))

		sendProgress(PhaseOptimization, it+1, newX[:dims], s, value, cost)
	}

	// Estimate the final incumbent.
	if err := config.ObjectiveModel.Train(store.X, store.y, config.FinalOptimize); err != nil {
		return nil, fmt.Errorf("final incumbent: train objective model: %w", err)
	}

	incumbent, incumbentValue := config.Estimator.Estimate(config.ObjectiveModel, store.Configurations(), projection)
	incumbent = cloneVec(incumbent)
	incumbent[dims] = config.SMax
	addIncumbent(incumbent, incumbentValue)

	logger.Info("final incumbent",
		slog.Any("incumbent", incumbent),
		slog.Float64("estimated_value", incumbentValue))

	result.XOpt = cloneVec(incumbent[:dims])
	result.Observations = store.Observations()

	return result, nil
}

// OptimizeSeeds runs one independent optimization per seed, at most workers
// at a time. Results are returned in seed order.
//
// Important notes:
//   - objective must be safe for concurrent use
//   - Collaborator overrides are rejected since they would be shared between
//     runs; only Estimator may be set
//   - The first failing run fails the whole call
func OptimizeSeeds(objective Objective, config OptimizationConfig, seeds []uint64, workers int) ([]*Result, error) {
	if objective == nil {
		return nil, ErrNilObjective
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.ObjectiveModel != nil || config.CostModel != nil || config.Acquisition != nil || config.Maximizer != nil {
		return nil, fmt.Errorf("%w: model, acquisition and maximizer overrides cannot be shared between parallel runs", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = discardLogger()
	}

	results := make([]*Result, len(seeds))

	p := pool.New().WithErrors().WithMaxGoroutines(max(workers, 1))
	for i, seed := range seeds {
		p.Go(func() error {
			cfg := config
			cfg.RandomState = NewRandomState(seed)
			cfg.Logger = logger.With(slog.Uint64("seed", seed))

			res, err := Optimize(objective, cfg)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}

			res.Seed = seed
			results[i] = res

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
