// Package fullmath provides the integer primitives the pool engine is built
// on: mul-div with explicit rounding, mul-shift-right through a 256-bit
// intermediate, and wrapping arithmetic on 128-bit accumulators.
//
// Unless stated otherwise the inputs are expected to fit in 128 bits, which
// makes every product below exact in a uint256.
package fullmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivByZero              = errors.New("division by zero")
	ErrMultiplicationOverflow = errors.New("multiplication overflow")
	ErrCastOverflow           = errors.New("value does not fit in target width")

	// MaxU128 is 2^128 - 1, the ceiling for liquidity, prices and growth
	// accumulators.
	MaxU128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")
	// MaxU64 is 2^64 - 1, the ceiling for token amounts.
	MaxU64 = uint256.NewInt(0).SetUint64(^uint64(0))

	one = uint256.NewInt(1)
)

// IsU128 reports whether x fits in 128 bits.
func IsU128(x *uint256.Int) bool {
	return x.BitLen() <= 128
}

// CastU64 converts x to a uint64, failing if it does not fit.
func CastU64(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrCastOverflow
	}
	return x.Uint64(), nil
}

// CastU128 verifies x fits in 128 bits and returns a copy.
func CastU128(x *uint256.Int) (*uint256.Int, error) {
	if !IsU128(x) {
		return nil, ErrCastOverflow
	}
	return new(uint256.Int).Set(x), nil
}

// MulDivFloor writes floor(a*b/denom) into dest. The product is computed in
// full 256-bit precision; a and b must individually fit in 128 bits.
func MulDivFloor(dest, a, b, denom *uint256.Int) error {
	if denom.IsZero() {
		return ErrDivByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return ErrMultiplicationOverflow
	}
	dest.Div(p, denom)
	return nil
}

// MulDivCeil writes ceil(a*b/denom) into dest.
func MulDivCeil(dest, a, b, denom *uint256.Int) error {
	if denom.IsZero() {
		return ErrDivByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return ErrMultiplicationOverflow
	}
	q, rem := new(uint256.Int).DivMod(p, denom, new(uint256.Int))
	if !rem.IsZero() {
		q.Add(q, one)
	}
	dest.Set(q)
	return nil
}

// MulDivRound writes round(a*b/denom) into dest, rounding half up.
func MulDivRound(dest, a, b, denom *uint256.Int) error {
	if denom.IsZero() {
		return ErrDivByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return ErrMultiplicationOverflow
	}
	half := new(uint256.Int).Rsh(denom, 1)
	p, overflow = p.AddOverflow(p, half)
	if overflow {
		return ErrMultiplicationOverflow
	}
	dest.Div(p, denom)
	return nil
}

// MulShr writes (a*b) >> shift into dest, with the product held in 256 bits.
func MulShr(dest, a, b *uint256.Int, shift uint) error {
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return ErrMultiplicationOverflow
	}
	dest.Rsh(p, shift)
	return nil
}

// MulShlChecked writes (a*b) << shift into dest, failing when the shifted
// product would not fit in 256 bits.
func MulShlChecked(dest, a, b *uint256.Int, shift uint) error {
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return ErrMultiplicationOverflow
	}
	if p.BitLen() > 256-int(shift) {
		return ErrMultiplicationOverflow
	}
	dest.Lsh(p, shift)
	return nil
}

// DivFloor writes floor(a/b) into dest.
func DivFloor(dest, a, b *uint256.Int) error {
	if b.IsZero() {
		return ErrDivByZero
	}
	dest.Div(a, b)
	return nil
}

// DivCeil writes ceil(a/b) into dest.
func DivCeil(dest, a, b *uint256.Int) error {
	if b.IsZero() {
		return ErrDivByZero
	}
	q, rem := new(uint256.Int).DivMod(a, b, new(uint256.Int))
	if !rem.IsZero() {
		q.Add(q, one)
	}
	dest.Set(q)
	return nil
}

// WrappingAddU128 writes (a+b) mod 2^128 into dest. Growth accumulators rely
// on this wrap being silent.
func WrappingAddU128(dest, a, b *uint256.Int) {
	dest.Add(a, b)
	dest.And(dest, MaxU128)
}

// WrappingSubU128 writes (a-b) mod 2^128 into dest. The difference modulo
// 2^128 is the correct accrual value even when b > a.
func WrappingSubU128(dest, a, b *uint256.Int) {
	dest.Sub(a, b)
	dest.And(dest, MaxU128)
}

// CheckedAddU128 writes a+b into dest, failing if the sum exceeds 128 bits.
func CheckedAddU128(dest, a, b *uint256.Int) error {
	s := new(uint256.Int).Add(a, b)
	if !IsU128(s) {
		return ErrCastOverflow
	}
	dest.Set(s)
	return nil
}

// MulDivFloor512 writes floor(a*b/denom) into dest, carrying the product at
// full width through a big.Int so inputs wider than 128 bits stay exact. The
// quotient must still fit in 256 bits.
func MulDivFloor512(dest, a, b, denom *uint256.Int) error {
	return mulDiv512(dest, a, b, denom, false)
}

// MulDivCeil512 is MulDivFloor512 with the quotient rounded up.
func MulDivCeil512(dest, a, b, denom *uint256.Int) error {
	return mulDiv512(dest, a, b, denom, true)
}

func mulDiv512(dest, a, b, denom *uint256.Int, roundUp bool) error {
	if denom.IsZero() {
		return ErrDivByZero
	}
	p := new(big.Int).Mul(a.ToBig(), b.ToBig())
	q, rem := new(big.Int).QuoRem(p, denom.ToBig(), new(big.Int))
	if roundUp && rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	out, overflow := uint256.FromBig(q)
	if overflow {
		return ErrMultiplicationOverflow
	}
	dest.Set(out)
	return nil
}

// CheckedSubU128 writes a-b into dest, failing when b > a.
func CheckedSubU128(dest, a, b *uint256.Int) error {
	if a.Cmp(b) < 0 {
		return ErrCastOverflow
	}
	dest.Sub(a, b)
	return nil
}
