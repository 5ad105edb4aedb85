package fabolas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformEndpoints(t *testing.T) {
	assert.Equal(t, 0.0, Transform(100.0, 100.0, 50000.0))
	assert.InDelta(t, 1.0, Transform(50000.0, 100.0, 50000.0), 1e-12)

	// Integer fidelities.
	assert.Equal(t, 0.0, Transform(10, 10, 1000))
	assert.InDelta(t, 0.5, Transform(100, 10, 1000), 1e-12)
}

func TestTransformIsMonotone(t *testing.T) {
	prev := Transform(1, 1, 512)
	for s := 2; s <= 512; s++ {
		cur := Transform(s, 1, 512)
		assert.Greater(t, cur, prev, "s=%d", s)
		prev = cur
	}
}

func TestRetransformRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		sMin, sMax int
	}{
		{"small range", 1, 256},
		{"dataset sizes", 100, 5000},
		{"narrow", 7, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for s := tt.sMin; s <= tt.sMax; s++ {
				st := Transform(s, tt.sMin, tt.sMax)
				assert.Equal(t, float64(s), Retransform(st, tt.sMin, tt.sMax), "s=%d", s)
			}
		})
	}
}

func TestRetransformRounds(t *testing.T) {
	assert.Equal(t, 16.0, Retransform(0.5, 1.0, 256.0))
	assert.Equal(t, 1.0, Retransform(0.0, 1.0, 256.0))
	assert.Equal(t, 256.0, Retransform(1.0, 1.0, 256.0))

	// Always an integer value.
	for _, st := range []float64{0.13, 0.37, 0.61, 0.99} {
		s := Retransform(st, 100, 60000)
		assert.Equal(t, float64(int64(s)), s)
	}
}
