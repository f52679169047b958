package sarimax

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange("p", []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 1, Max: 3}, r)

	_, err = ParseRange("p", []int{1})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = ParseRange("q", []int{3, 1})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestAutoFit_PicksAutoregressiveOrder(t *testing.T) {
	y := simulateARMA(600, 0.6, 0, 11)
	zero := 0

	m, candidates, err := AutoFit(y, nil, Ranges{
		P:  Range{Min: 0, Max: 2},
		D:  &zero,
		SD: &zero,
	}, Options{})
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
	assert.GreaterOrEqual(t, m.Order.P, 1)
	for _, c := range candidates {
		assert.NoError(t, c.Err)
		assert.GreaterOrEqual(t, c.AIC, m.AIC)
	}
}

func TestAutoFit_NoCandidate(t *testing.T) {
	y := simulateARMA(20, 0.6, 0, 12)
	zero := 0

	_, candidates, err := AutoFit(y, nil, Ranges{
		SP: Range{Min: 1, Max: 1},
		D:  &zero,
		SD: &zero,
	}, Options{})
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Len(t, candidates, 1)
}

func TestChooseDifferencing(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 0))
	walk := make([]float64, 500)
	noise := make([]float64, 500)
	for i := 1; i < len(walk); i++ {
		walk[i] = walk[i-1] + rng.NormFloat64()
		noise[i] = rng.NormFloat64()
	}
	assert.Equal(t, 1, chooseDifferencing(walk, 1))
	assert.Equal(t, 0, chooseDifferencing(noise, 1))
	assert.Equal(t, 0, chooseDifferencing([]float64{1, 2}, 1))
}
