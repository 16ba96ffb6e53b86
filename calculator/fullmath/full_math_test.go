package fullmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(dec string) *uint256.Int { return uint256.MustFromDecimal(dec) }

func TestMulDivRounding(t *testing.T) {
	dest := new(uint256.Int)

	t.Run("floor", func(t *testing.T) {
		require.NoError(t, MulDivFloor(dest, u("7"), u("3"), u("4")))
		assert.Equal(t, u("5"), dest)
	})

	t.Run("ceil", func(t *testing.T) {
		require.NoError(t, MulDivCeil(dest, u("7"), u("3"), u("4")))
		assert.Equal(t, u("6"), dest)

		require.NoError(t, MulDivCeil(dest, u("8"), u("3"), u("4")))
		assert.Equal(t, u("6"), dest, "exact division must not round")
	})

	t.Run("round half up", func(t *testing.T) {
		require.NoError(t, MulDivRound(dest, u("3"), u("1"), u("2")))
		assert.Equal(t, u("2"), dest)
		require.NoError(t, MulDivRound(dest, u("5"), u("1"), u("4")))
		assert.Equal(t, u("1"), dest)
	})

	t.Run("div by zero", func(t *testing.T) {
		assert.ErrorIs(t, MulDivFloor(dest, u("1"), u("1"), u("0")), ErrDivByZero)
		assert.ErrorIs(t, MulDivCeil(dest, u("1"), u("1"), u("0")), ErrDivByZero)
		assert.ErrorIs(t, MulDivRound(dest, u("1"), u("1"), u("0")), ErrDivByZero)
		assert.ErrorIs(t, DivFloor(dest, u("1"), u("0")), ErrDivByZero)
		assert.ErrorIs(t, DivCeil(dest, u("1"), u("0")), ErrDivByZero)
	})

	t.Run("product overflow", func(t *testing.T) {
		huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
		assert.ErrorIs(t, MulDivFloor(dest, huge, huge, u("1")), ErrMultiplicationOverflow)
	})
}

func TestMulShr(t *testing.T) {
	dest := new(uint256.Int)
	require.NoError(t, MulShr(dest, u("18446744073709551616"), u("3"), 64))
	assert.Equal(t, u("3"), dest)

	// Truncation, never rounding.
	require.NoError(t, MulShr(dest, u("18446744073709551615"), u("1"), 64))
	assert.Equal(t, u("0"), dest)
}

func TestMulShlChecked(t *testing.T) {
	dest := new(uint256.Int)
	require.NoError(t, MulShlChecked(dest, u("3"), u("5"), 64))
	assert.Equal(t, new(uint256.Int).Lsh(u("15"), 64), dest)

	big := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	assert.ErrorIs(t, MulShlChecked(dest, big, big, 64), ErrMultiplicationOverflow)
}

func TestMulDiv512(t *testing.T) {
	dest := new(uint256.Int)
	a := new(uint256.Int).Lsh(uint256.NewInt(1), 200)

	// The 512-bit path survives products past 2^256.
	require.NoError(t, MulDivFloor512(dest, a, a, a))
	assert.Equal(t, a, dest)

	require.NoError(t, MulDivCeil512(dest, u("7"), u("3"), u("4")))
	assert.Equal(t, u("6"), dest)

	t.Run("quotient overflow", func(t *testing.T) {
		assert.ErrorIs(t, MulDivFloor512(dest, a, a, u("1")), ErrMultiplicationOverflow)
	})
	t.Run("div by zero", func(t *testing.T) {
		assert.ErrorIs(t, MulDivFloor512(dest, a, a, u("0")), ErrDivByZero)
	})
}

func TestWrappingU128(t *testing.T) {
	dest := new(uint256.Int)

	t.Run("add wraps at 2^128", func(t *testing.T) {
		WrappingAddU128(dest, MaxU128, u("1"))
		assert.True(t, dest.IsZero())

		WrappingAddU128(dest, MaxU128, u("5"))
		assert.Equal(t, u("4"), dest)
	})

	t.Run("sub wraps below zero", func(t *testing.T) {
		WrappingSubU128(dest, u("3"), u("5"))
		assert.Equal(t, new(uint256.Int).Sub(MaxU128, u("1")), dest)
	})

	t.Run("sub then add is identity", func(t *testing.T) {
		a, b := u("123456789"), u("987654321987654321")
		d := new(uint256.Int)
		WrappingSubU128(d, a, b)
		WrappingAddU128(d, d, b)
		assert.Equal(t, a, d)
	})
}

func TestCheckedU128(t *testing.T) {
	dest := new(uint256.Int)
	require.NoError(t, CheckedAddU128(dest, MaxU128, u("0")))
	assert.ErrorIs(t, CheckedAddU128(dest, MaxU128, u("1")), ErrCastOverflow)
	assert.ErrorIs(t, CheckedSubU128(dest, u("1"), u("2")), ErrCastOverflow)
}

func TestCasts(t *testing.T) {
	v, err := CastU64(u("18446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64-1), v)

	_, err = CastU64(u("18446744073709551616"))
	assert.ErrorIs(t, err, ErrCastOverflow)

	_, err = CastU128(new(uint256.Int).Lsh(uint256.NewInt(1), 128))
	assert.ErrorIs(t, err, ErrCastOverflow)
}
