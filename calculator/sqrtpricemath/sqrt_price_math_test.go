package sqrtpricemath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Prices at ticks 0, 10 and -10.
var (
	priceOne   = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	priceTen   = uint256.MustFromDecimal("18455969290605290427")
	priceMinus = uint256.MustFromDecimal("18437523468038800957")
	trillion   = uint256.NewInt(1_000_000_000_000)
)

func TestGetAmountADelta(t *testing.T) {
	dest := new(uint256.Int)

	t.Run("rounds up and down around the exact value", func(t *testing.T) {
		require.NoError(t, GetAmountADelta(dest, priceOne, priceTen, trillion, true))
		assert.Equal(t, uint64(499850035), dest.Uint64())

		require.NoError(t, GetAmountADelta(dest, priceOne, priceTen, trillion, false))
		assert.Equal(t, uint64(499850034), dest.Uint64())
	})

	t.Run("argument order is irrelevant", func(t *testing.T) {
		a, b := new(uint256.Int), new(uint256.Int)
		require.NoError(t, GetAmountADelta(a, priceOne, priceTen, trillion, true))
		require.NoError(t, GetAmountADelta(b, priceTen, priceOne, trillion, true))
		assert.Equal(t, a, b)
	})

	t.Run("zero liquidity gives zero", func(t *testing.T) {
		require.NoError(t, GetAmountADelta(dest, priceOne, priceTen, new(uint256.Int), true))
		assert.True(t, dest.IsZero())
	})

	t.Run("zero price rejected", func(t *testing.T) {
		assert.ErrorIs(t, GetAmountADelta(dest, new(uint256.Int), priceTen, trillion, true), ErrSqrtPriceZero)
	})
}

func TestGetAmountBDelta(t *testing.T) {
	dest := new(uint256.Int)

	require.NoError(t, GetAmountBDelta(dest, priceMinus, priceOne, trillion, true))
	assert.Equal(t, uint64(499850035), dest.Uint64())

	require.NoError(t, GetAmountBDelta(dest, priceMinus, priceOne, trillion, false))
	assert.Equal(t, uint64(499850034), dest.Uint64())
}

func TestGetNextSqrtPriceFromInput(t *testing.T) {
	dest := new(uint256.Int)

	t.Run("a input pushes the price down", func(t *testing.T) {
		require.NoError(t, GetNextSqrtPriceFromInput(dest, priceOne, trillion, 19980, true))
		assert.Equal(t, uint256.MustFromDecimal("18446743705143612388"), dest)
		assert.True(t, dest.Lt(priceOne))
	})

	t.Run("b input pushes the price up", func(t *testing.T) {
		require.NoError(t, GetNextSqrtPriceFromInput(dest, priceOne, trillion, 19980, false))
		assert.True(t, dest.Gt(priceOne))
	})

	t.Run("zero amount keeps the price", func(t *testing.T) {
		require.NoError(t, GetNextSqrtPriceFromInput(dest, priceOne, trillion, 0, true))
		assert.Equal(t, priceOne, dest)
	})

	t.Run("rejects zero liquidity and zero price", func(t *testing.T) {
		assert.ErrorIs(t, GetNextSqrtPriceFromInput(dest, priceOne, new(uint256.Int), 1, true), ErrLiquidityZero)
		assert.ErrorIs(t, GetNextSqrtPriceFromInput(dest, new(uint256.Int), trillion, 1, true), ErrSqrtPriceZero)
	})
}

func TestGetNextSqrtPriceFromOutput(t *testing.T) {
	dest := new(uint256.Int)

	t.Run("a to b pays out token b below the current price", func(t *testing.T) {
		require.NoError(t, GetNextSqrtPriceFromOutput(dest, priceOne, trillion, 19979, true))
		assert.True(t, dest.Lt(priceOne))
	})

	t.Run("b to a pays out token a above the current price", func(t *testing.T) {
		require.NoError(t, GetNextSqrtPriceFromOutput(dest, priceOne, trillion, 19979, false))
		assert.True(t, dest.Gt(priceOne))
	})

	t.Run("underflow when output exceeds the range", func(t *testing.T) {
		small := uint256.NewInt(10)
		assert.ErrorIs(t, GetNextSqrtPriceFromOutput(dest, priceOne, small, 1<<40, true), ErrPriceUnderflow)
	})
}

// Moving the price with an input and recomputing the delta must never credit
// the trader more movement than paid for.
func TestInputRoundTripFavoursPool(t *testing.T) {
	for _, amount := range []uint64{1, 17, 999, 20_000, 5_000_000} {
		next := new(uint256.Int)
		require.NoError(t, GetNextSqrtPriceFromInput(next, priceOne, trillion, amount, true))

		back := new(uint256.Int)
		require.NoError(t, GetAmountADelta(back, next, priceOne, trillion, false))
		assert.True(t, back.Uint64() <= amount, "amount %d", amount)
	}
}
