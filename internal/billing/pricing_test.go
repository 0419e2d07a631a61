package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalPriceWithDependents(t *testing.T) {
	// Titular at R$100 with dependents at R$50 and R$30.
	total, err := TotalPrice(100, []float64{50, 30})
	require.NoError(t, err)
	assert.Equal(t, 180.0, total)

	// Removing the R$30 dependent drops the total accordingly.
	total, err = TotalPrice(100, []float64{50})
	require.NoError(t, err)
	assert.Equal(t, 150.0, total)
}

func TestTotalPriceNoDependents(t *testing.T) {
	total, err := TotalPrice(89.90, nil)
	require.NoError(t, err)
	assert.Equal(t, 89.90, total)
}

func TestTotalPriceRejectsNegativeValues(t *testing.T) {
	_, err := TotalPrice(-1, nil)
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = TotalPrice(100, []float64{50, -0.01})
	assert.ErrorIs(t, err, ErrNegativePrice)
}

func TestTotalPriceRoundsToCents(t *testing.T) {
	total, err := TotalPrice(33.335, []float64{33.335})
	require.NoError(t, err)
	assert.Equal(t, 66.67, total)
}
