package sequences

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fd(v float64) *float64 { return &v }

func TestGenerate_NaturalScaling(t *testing.T) {
	seq, err := Generate(9, 0.0, 0.7, nil)
	require.NoError(t, err)
	require.Len(t, seq, 9)

	assert.Equal(t, 0.0, seq[0])
	assert.Equal(t, 0.7, seq[8])

	// t² scaling: the midpoint sits at a quarter of the span
	assert.InDelta(t, 0.7*0.25, seq[4], 1e-9)
}

func TestGenerate_PinnedFirstDelta(t *testing.T) {
	seq, err := Generate(10, 0.0, 0.7, fd(0.05))
	require.NoError(t, err)
	require.Len(t, seq, 10)

	assert.Equal(t, 0.0, seq[0])
	assert.InDelta(t, 0.05, seq[1], 1e-12)
	assert.Equal(t, 0.7, seq[9])
}

func TestGenerate_IncrementShape(t *testing.T) {
	seq, err := Generate(10, 0.0, 0.7, fd(0.05))
	require.NoError(t, err)

	// Monotone increasing with growing absolute increments
	prevDelta := 0.0
	for i := 1; i < len(seq); i++ {
		delta := seq[i] - seq[i-1]
		assert.Greater(t, delta, 0.0, "increment %d positive", i)
		if i > 1 {
			assert.Greater(t, delta, prevDelta, "increment %d grows", i)
		}
		prevDelta = delta
	}

	// Shrinking relative increments (skip the zero-valued first element)
	prevRel := 0.0
	for i := 2; i < len(seq); i++ {
		rel := (seq[i] - seq[i-1]) / seq[i-1]
		if i > 2 {
			assert.Less(t, rel, prevRel, "relative increment %d shrinks", i)
		}
		prevRel = rel
	}
}

func TestGenerate_NonZeroStart(t *testing.T) {
	seq, err := Generate(5, 0.1, 0.5, fd(0.02))
	require.NoError(t, err)

	assert.Equal(t, 0.1, seq[0])
	assert.InDelta(t, 0.12, seq[1], 1e-12)
	assert.Equal(t, 0.5, seq[4])
}

func TestGenerate_TooShort(t *testing.T) {
	_, err := Generate(2, 0.0, 0.7, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 3")
}

func TestAt(t *testing.T) {
	seq, err := Generate(10, 0.0, 0.7, fd(0.05))
	require.NoError(t, err)

	p, err := At(10, 0.0, 0.7, fd(0.05), 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Value)
	assert.Equal(t, 0.0, p.Delta, "first element has no increment")

	p, err = At(10, 0.0, 0.7, fd(0.05), 4)
	require.NoError(t, err)
	assert.Equal(t, seq[4], p.Value)
	assert.InDelta(t, seq[4]-seq[3], p.Delta, 1e-12)
}

func TestAt_OutOfBounds(t *testing.T) {
	_, err := At(10, 0.0, 0.7, nil, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")

	_, err = At(10, 0.0, 0.7, nil, -1)
	require.Error(t, err)
}
