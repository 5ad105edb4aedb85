package fabolas

// bestObservedIncumbent is the initial design policy: the configuration with
// the lowest observed value so far, reported at the raw sMax. No model is
// involved.
func bestObservedIncumbent(store *observationStore, sMax float64) ([]float64, float64) {
	best := store.BestIndex()
	x := store.X[best]

	return withFidelity(x[:len(x)-1], sMax), store.y[best]
}

// ProjectedIncumbent estimates the incumbent by projecting every observed
// configuration onto a fidelity and picking the one with the lowest predicted
// mean. Ties go to the first configuration.
type ProjectedIncumbent struct{}

// Estimate implements IncumbentEstimator.
func (ProjectedIncumbent) Estimate(model Predictor, configurations [][]float64, projection float64) ([]float64, float64) {
	var (
		incumbent []float64
		value     float64
	)

	for _, c := range configurations {
		x := withFidelity(c, projection)

		m, _ := model.Predict(x)
		if incumbent == nil || m < value {
			incumbent, value = x, m
		}
	}

	return incumbent, value
}
