package swapmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	priceOne = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	priceTen = uint256.MustFromDecimal("18455969290605290427")
	minPrice = uint256.MustFromDecimal("4295048016")
	trillion = uint256.NewInt(1_000_000_000_000)
)

func TestComputeSwapStepByAmountIn(t *testing.T) {
	t.Run("in-range partial fill", func(t *testing.T) {
		// 0.1% fee, a to b, 20_000 gross input against deep liquidity.
		step, err := ComputeSwapStep(priceOne, minPrice, trillion, 20_000, 1000, true, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(19_980), step.AmountIn)
		assert.Equal(t, uint64(19_979), step.AmountOut)
		assert.Equal(t, uint64(20), step.FeeAmount)
		assert.Equal(t, uint256.MustFromDecimal("18446743705143612388"), step.SqrtPriceNext)
		assert.True(t, step.SqrtPriceNext.Lt(priceOne))
	})

	t.Run("runs to the target price", func(t *testing.T) {
		// b to a from tick 0 to tick 10 at L=1e9: the target caps the step.
		liq := uint256.NewInt(1_000_000_000)
		step, err := ComputeSwapStep(priceOne, priceTen, liq, 600_000, 1000, false, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(500_101), step.AmountIn)
		assert.Equal(t, uint64(501), step.FeeAmount)
		assert.Equal(t, uint64(499_850), step.AmountOut)
		assert.Equal(t, priceTen, step.SqrtPriceNext)
	})

	t.Run("tiny input eaten by fee", func(t *testing.T) {
		step, err := ComputeSwapStep(priceOne, minPrice, trillion, 1, 1000, true, true)
		require.NoError(t, err)
		assert.Zero(t, step.AmountIn)
		assert.Zero(t, step.AmountOut)
		assert.Equal(t, uint64(1), step.FeeAmount)
		assert.Equal(t, priceOne, step.SqrtPriceNext)
	})
}

func TestComputeSwapStepByAmountOut(t *testing.T) {
	t.Run("exact output in range", func(t *testing.T) {
		step, err := ComputeSwapStep(priceOne, minPrice, trillion, 19_979, 1000, true, false)
		require.NoError(t, err)
		assert.Equal(t, uint64(19_979), step.AmountOut)
		assert.True(t, step.AmountIn >= step.AmountOut)
		assert.True(t, step.FeeAmount > 0)
		assert.True(t, step.SqrtPriceNext.Lt(priceOne))
	})

	t.Run("output clamps at the target", func(t *testing.T) {
		liq := uint256.NewInt(1_000_000_000)
		step, err := ComputeSwapStep(priceOne, priceTen, liq, 10_000_000, 1000, false, false)
		require.NoError(t, err)
		assert.Equal(t, priceTen, step.SqrtPriceNext)
		assert.True(t, step.AmountOut < 10_000_000)
	})
}

func TestComputeSwapStepEdges(t *testing.T) {
	t.Run("zero liquidity snaps to target", func(t *testing.T) {
		step, err := ComputeSwapStep(priceOne, priceTen, new(uint256.Int), 1000, 1000, false, true)
		require.NoError(t, err)
		assert.Zero(t, step.AmountIn)
		assert.Zero(t, step.AmountOut)
		assert.Zero(t, step.FeeAmount)
		assert.Equal(t, priceTen, step.SqrtPriceNext)
	})

	t.Run("target on the wrong side", func(t *testing.T) {
		_, err := ComputeSwapStep(priceOne, priceTen, trillion, 1000, 1000, true, true)
		assert.ErrorIs(t, err, ErrInvalidTargetPrice)

		_, err = ComputeSwapStep(priceTen, priceOne, trillion, 1000, 1000, false, true)
		assert.ErrorIs(t, err, ErrInvalidTargetPrice)
	})

	t.Run("fee conservation by amount in", func(t *testing.T) {
		for _, amount := range []uint64{100, 5_000, 20_000, 750_000} {
			step, err := ComputeSwapStep(priceOne, minPrice, trillion, amount, 3000, true, true)
			require.NoError(t, err)
			assert.True(t, step.AmountIn+step.FeeAmount <= amount)
		}
	})
}
