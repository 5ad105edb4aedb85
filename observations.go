package fabolas

// observationStore is the append-only record of a run. X, y and c are
// index-aligned and ordered by arrival.
type observationStore struct {
	X [][]float64
	y []float64
	c []float64
}

func newObservationStore(capacity int) *observationStore {
	return &observationStore{
		X: make([][]float64, 0, capacity),
		y: make([]float64, 0, capacity),
		c: make([]float64, 0, capacity),
	}
}

// Append records a copy of the augmented point x with its observed value and
// cost.
func (o *observationStore) Append(x []float64, value, cost float64) {
	o.X = append(o.X, cloneVec(x))
	o.y = append(o.y, value)
	o.c = append(o.c, cost)
}

func (o *observationStore) Len() int { return len(o.X) }

// Configurations returns the observed points without their fidelity column.
func (o *observationStore) Configurations() [][]float64 {
	configs := make([][]float64, len(o.X))
	for i, x := range o.X {
		configs[i] = cloneVec(x[:len(x)-1])
	}

	return configs
}

// BestIndex returns the index of the lowest observed value, the first one on
// ties. Returns -1 when empty.
func (o *observationStore) BestIndex() int {
	best := -1
	for i, v := range o.y {
		if best < 0 || v < o.y[best] {
			best = i
		}
	}

	return best
}

// Observations returns a copy of the history.
func (o *observationStore) Observations() []Observation {
	out := make([]Observation, len(o.X))
	for i := range o.X {
		out[i] = Observation{X: cloneVec(o.X[i]), Value: o.y[i], Cost: o.c[i]}
	}

	return out
}
