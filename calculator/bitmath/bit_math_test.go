package bitmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMostSignificantBit(t *testing.T) {
	t.Run("rejects nil and zero", func(t *testing.T) {
		_, err := MostSignificantBit(nil)
		assert.ErrorIs(t, err, ErrInputIsNil)
		_, err = MostSignificantBit(new(uint256.Int))
		assert.ErrorIs(t, err, ErrInputIsZero)
	})

	t.Run("powers of two", func(t *testing.T) {
		for _, exp := range []uint{0, 1, 7, 63, 64, 127, 128, 255} {
			x := new(uint256.Int).Lsh(uint256.NewInt(1), exp)
			msb, err := MostSignificantBit(x)
			require.NoError(t, err)
			assert.Equal(t, uint8(exp), msb)
		}
	})

	t.Run("property x >= 2^msb and x < 2^(msb+1)", func(t *testing.T) {
		x := uint256.MustFromDecimal("79226673515401279992447579055")
		msb, err := MostSignificantBit(x)
		require.NoError(t, err)
		lo := new(uint256.Int).Lsh(uint256.NewInt(1), uint(msb))
		assert.True(t, x.Cmp(lo) >= 0)
		if msb < 255 {
			hi := new(uint256.Int).Lsh(uint256.NewInt(1), uint(msb)+1)
			assert.True(t, x.Lt(hi))
		}
	})
}

func TestLeastSignificantBit(t *testing.T) {
	t.Run("rejects nil and zero", func(t *testing.T) {
		_, err := LeastSignificantBit(nil)
		assert.ErrorIs(t, err, ErrInputIsNil)
		_, err = LeastSignificantBit(new(uint256.Int))
		assert.ErrorIs(t, err, ErrInputIsZero)
	})

	t.Run("powers of two", func(t *testing.T) {
		for _, exp := range []uint{0, 1, 63, 64, 128, 255} {
			x := new(uint256.Int).Lsh(uint256.NewInt(1), exp)
			lsb, err := LeastSignificantBit(x)
			require.NoError(t, err)
			assert.Equal(t, uint8(exp), lsb)
		}
	})

	t.Run("mixed bits", func(t *testing.T) {
		x := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
		x.Or(x, new(uint256.Int).Lsh(uint256.NewInt(1), 9))
		lsb, err := LeastSignificantBit(x)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), lsb)
	})
}
