package fabolas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationStore(t *testing.T) {
	store := newObservationStore(4)
	assert.Equal(t, -1, store.BestIndex())

	x := []float64{0.1, 0.2, 0.5}
	store.Append(x, 3, 1)
	store.Append([]float64{0.3, 0.4, 1}, 1, 2)
	store.Append([]float64{0.5, 0.6, 0}, 1, 0.5)

	// Appended points are copies.
	x[0] = 9
	assert.Equal(t, 0.1, store.X[0][0])

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 1, store.BestIndex())
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, store.Configurations())

	obs := store.Observations()
	require.Len(t, obs, 3)
	assert.Equal(t, Observation{X: []float64{0.5, 0.6, 0}, Value: 1, Cost: 0.5}, obs[2])
}

func TestBestObservedIncumbent(t *testing.T) {
	store := newObservationStore(2)
	store.Append([]float64{0.1, 0.2, 0.5}, 3, 1)
	store.Append([]float64{0.3, 0.4, 0}, 2, 1)

	inc, value := bestObservedIncumbent(store, 500)

	assert.Equal(t, []float64{0.3, 0.4, 500}, inc)
	assert.Equal(t, 2.0, value)

	// The store is untouched.
	assert.Equal(t, 0.0, store.X[1][2])
}

func TestProjectedIncumbent(t *testing.T) {
	model := &lookupModel{}
	require.NoError(t, model.Train(
		[][]float64{{0.1, 0.2, 0}, {0.3, 0.4, 0.5}, {0.5, 0.6, 1}},
		[]float64{2, 0.5, 0.5},
		true,
	))

	inc, value := ProjectedIncumbent{}.Estimate(model, [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, 1)

	// Ties go to the first configuration.
	assert.Equal(t, []float64{0.3, 0.4, 1}, inc)
	assert.Equal(t, 0.5, value)
}
