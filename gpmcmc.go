package fabolas

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
)

// maxLogHyper bounds every log hyperparameter during sampling.
const maxLogHyper = 20

// GPMCMCConfig configures a GPMCMC surrogate.
type GPMCMCConfig struct {
	// Lower and Upper bound the configuration space (without the fidelity).
	Lower, Upper []float64

	// Basis is the fidelity feature of the environment kernel.
	Basis BasisFunc

	// NumHypers is the number of walkers. Zero means three times the number
	// of kernel parameters, rounded up to an even number.
	NumHypers int

	// Burnin is run once, before the first chain.
	Burnin int

	// ChainLength is run at every optimizing training.
	ChainLength int

	// LogTargets makes the model learn log(target) and predict in raw units.
	// Used for costs.
	LogTargets bool

	RandomState *rand.Rand
	Logger      *slog.Logger
}

// GPMCMC is a Gaussian Process whose hyperparameters are marginalized by
// MCMC: it holds one fitted process per posterior sample.
//
// Thread safety:
//   - Train takes the write lock, Predict and Members the read lock
type GPMCMC struct {
	mu sync.RWMutex

	cfg   GPMCMCConfig
	prior *EnvPrior

	walkers [][]float64
	burned  bool
	models  []*gaussianProcess
}

// NewGPMCMC returns an untrained model.
func NewGPMCMC(cfg GPMCMCConfig) *GPMCMC {
	if cfg.NumHypers <= 0 {
		cfg.NumHypers = 3 * numKernelParams(len(cfg.Lower))
	}
	if cfg.NumHypers%2 == 1 {
		cfg.NumHypers++
	}
	if cfg.RandomState == nil {
		cfg.RandomState = newRandomState()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.Basis == nil {
		cfg.Basis = LinearBasis
	}

	return &GPMCMC{
		cfg:   cfg,
		prior: NewEnvPrior(len(cfg.Lower), cfg.RandomState),
	}
}

// NewObjectiveModel returns the default surrogate for objective values.
func NewObjectiveModel(config OptimizationConfig) *GPMCMC {
	return NewGPMCMC(GPMCMCConfig{
		Lower:       config.Lower,
		Upper:       config.Upper,
		Basis:       QuadraticBasis,
		NumHypers:   config.NumHypers,
		Burnin:      config.Burnin,
		ChainLength: config.ChainLength,
		RandomState: config.RandomState,
		Logger:      config.Logger,
	})
}

// NewCostModel returns the default surrogate for evaluation costs. It works on
// log costs.
func NewCostModel(config OptimizationConfig) *GPMCMC {
	return NewGPMCMC(GPMCMCConfig{
		Lower:       config.Lower,
		Upper:       config.Upper,
		Basis:       LinearBasis,
		NumHypers:   config.NumHypers,
		Burnin:      config.Burnin,
		ChainLength: config.ChainLength,
		LogTargets:  true,
		RandomState: config.RandomState,
		Logger:      config.Logger,
	})
}

// Train fits the ensemble on (X, y), replacing the previous fit.
//
// With doOptimize the walkers are advanced by ChainLength steps (after a
// one-time burn-in) and their final positions become the hyperparameter
// samples. Otherwise the current samples are reused, or the default kernel
// hyperparameters if the model was never optimized.
func (m *GPMCMC) Train(X [][]float64, y []float64, doOptimize bool) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("train needs matching non-empty inputs, got %d points and %d targets", len(X), len(y))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var samples [][]float64

	switch {
	case doOptimize:
		lnProb := func(theta []float64) float64 {
			return m.logPosterior(theta, X, y)
		}
		sampler := newEnsembleSampler(lnProb, m.cfg.RandomState)

		if m.walkers == nil {
			m.walkers = m.prior.Sample(m.cfg.NumHypers)
		}
		if !m.burned {
			m.walkers, _ = sampler.Run(m.walkers, m.cfg.Burnin)
			m.burned = true
		}

		var lp []float64
		m.walkers, lp = sampler.Run(m.walkers, m.cfg.ChainLength)
		samples = m.walkers

		m.cfg.Logger.Debug("mcmc sampling done",
			slog.Int("walkers", len(m.walkers)),
			slog.Int("points", len(X)),
			slog.Float64("best_log_posterior", maxFinite(lp)))
	case m.walkers != nil:
		samples = m.walkers
	default:
		samples = [][]float64{defaultHypers(len(m.cfg.Lower))}
	}

	var lastErr error
	models := make([]*gaussianProcess, 0, len(samples))
	for _, theta := range samples {
		gp := newGaussianProcess(theta, m.cfg.Lower, m.cfg.Upper, m.cfg.Basis, m.cfg.LogTargets)
		if err := gp.Fit(X, y); err != nil {
			m.cfg.Logger.Warn("dropping hyperparameter sample", slog.Any("theta", theta), slog.Any("error", err))
			lastErr = err
			continue
		}
		models = append(models, gp)
	}
	if len(models) == 0 {
		return fmt.Errorf("fit process: %w", lastErr)
	}
	m.models = models

	return nil
}

// logPosterior is the MCMC target: prior plus marginal likelihood.
func (m *GPMCMC) logPosterior(theta []float64, X [][]float64, y []float64) float64 {
	for _, t := range theta {
		if math.Abs(t) > maxLogHyper || math.IsNaN(t) {
			return math.Inf(-1)
		}
	}

	lp := m.prior.LogProb(theta)
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return math.Inf(-1)
	}

	gp := newGaussianProcess(theta, m.cfg.Lower, m.cfg.Upper, m.cfg.Basis, m.cfg.LogTargets)
	if err := gp.Fit(X, y); err != nil {
		return math.Inf(-1)
	}

	ll := gp.LogLikelihood()
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}

	return lp + ll
}

// Predict returns the mixture mean and variance of the ensemble:
// mean(m_i) and mean(v_i + m_i^2) - mean(m_i)^2.
func (m *GPMCMC) Predict(x []float64) (mean, variance float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.models) == 0 {
		return 0, 1
	}

	var second float64
	for _, gp := range m.models {
		mi, vi := gp.Predict(x)
		mean += mi
		second += vi + mi*mi
	}

	n := float64(len(m.models))
	mean /= n
	variance = math.Max(second/n-mean*mean, minVariance)

	return mean, variance
}

// Members returns the fitted processes, one per hyperparameter sample.
func (m *GPMCMC) Members() []Predictor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]Predictor, len(m.models))
	for i, gp := range m.models {
		members[i] = gp
	}

	return members
}

// Hypers returns the current hyperparameter samples.
func (m *GPMCMC) Hypers() [][]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]float64, len(m.models))
	for i, gp := range m.models {
		out[i] = gp.Hypers()
	}

	return out
}

func maxFinite(v []float64) float64 {
	best := math.Inf(-1)
	for _, x := range v {
		if !math.IsNaN(x) && x > best {
			best = x
		}
	}

	return best
}
