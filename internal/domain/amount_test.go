package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(150, 100)
	b := NewAmount(50, 100)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sum.Count)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(100), diff.Count)

	cmp, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestAmountBasisMismatch(t *testing.T) {
	a := NewAmount(1, 100)
	b := NewAmount(1, 1000)

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrBasisMismatch)

	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrBasisMismatch)

	_, err = a.Cmp(b)
	assert.ErrorIs(t, err, ErrBasisMismatch)
}

func TestAmountFloat64(t *testing.T) {
	assert.InDelta(t, 1.5, NewAmount(150, 100).Float64(), 1e-12)
	assert.InDelta(t, -0.25, NewAmount(-25, 100).Float64(), 1e-12)
}

func TestAmountNegAbs(t *testing.T) {
	a := NewAmount(-42, 100)
	assert.Equal(t, int64(42), a.Neg().Count)
	assert.Equal(t, int64(42), a.Abs().Count)
	assert.True(t, NewAmount(0, 100).IsZero())
}
