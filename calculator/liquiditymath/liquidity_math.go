// Package liquiditymath relates liquidity to token amounts over a tick
// range, and applies signed liquidity deltas with overflow checks.
package liquiditymath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
	"github.com/defistate/clmm-engine-go/calculator/sqrtpricemath"
	"github.com/defistate/clmm-engine-go/calculator/tickmath"
)

var (
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
	ErrAmountOverflow     = errors.New("token amount does not fit in u64")

	maxU128Big = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// AddDelta applies a signed liquidity delta to an unsigned 128-bit liquidity
// value, returning an error if the result underflows zero or overflows.
func AddDelta(dest, x *uint256.Int, delta *big.Int) error {
	sum := new(big.Int).Add(x.ToBig(), delta)
	if sum.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if sum.Cmp(maxU128Big) > 0 {
		return ErrLiquidityOverflow
	}
	out, _ := uint256.FromBig(sum)
	dest.Set(out)
	return nil
}

// LiquidityFromAmountA inverts the token A delta formula: the largest L such
// that the A amount needed between the two prices does not exceed amount.
func LiquidityFromAmountA(amount uint64, sqrtPriceA, sqrtPriceB *uint256.Int) (*uint256.Int, error) {
	lo, hi := sqrtPriceA, sqrtPriceB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	if lo.IsZero() {
		return nil, sqrtpricemath.ErrSqrtPriceZero
	}
	diff := new(uint256.Int).Sub(hi, lo)
	if diff.IsZero() {
		return nil, ErrLiquidityUnderflow
	}

	prices := new(uint256.Int).Mul(lo, hi)
	l := new(uint256.Int)
	if err := fullmath.MulDivFloor512(l, uint256.NewInt(amount), prices, new(uint256.Int).Lsh(diff, 64)); err != nil {
		return nil, err
	}
	if !fullmath.IsU128(l) {
		return nil, ErrLiquidityOverflow
	}
	return l, nil
}

// LiquidityFromAmountB inverts the token B delta formula.
func LiquidityFromAmountB(amount uint64, sqrtPriceA, sqrtPriceB *uint256.Int) (*uint256.Int, error) {
	lo, hi := sqrtPriceA, sqrtPriceB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	diff := new(uint256.Int).Sub(hi, lo)
	if diff.IsZero() {
		return nil, ErrLiquidityUnderflow
	}

	l := new(uint256.Int)
	if err := fullmath.DivFloor(l, new(uint256.Int).Lsh(uint256.NewInt(amount), 64), diff); err != nil {
		return nil, err
	}
	if !fullmath.IsU128(l) {
		return nil, ErrLiquidityOverflow
	}
	return l, nil
}

// AmountsForLiquidity computes the token amounts backing a liquidity delta
// over [tickLower, tickUpper) given the pool's current tick and sqrt price.
// Current tick below the range puts the whole position in A, above puts it
// in B, in between splits it at the current price.
func AmountsForLiquidity(sqrtPriceCurrent *uint256.Int, tickCurrent, tickLower, tickUpper int32, liquidity *uint256.Int, roundUp bool) (amountA, amountB uint64, err error) {
	priceLower, err := tickmath.GetSqrtPriceAtTick(tickLower)
	if err != nil {
		return 0, 0, err
	}
	priceUpper, err := tickmath.GetSqrtPriceAtTick(tickUpper)
	if err != nil {
		return 0, 0, err
	}

	a := new(uint256.Int)
	b := new(uint256.Int)
	switch {
	case tickCurrent < tickLower:
		err = sqrtpricemath.GetAmountADelta(a, priceLower, priceUpper, liquidity, roundUp)
	case tickCurrent >= tickUpper:
		err = sqrtpricemath.GetAmountBDelta(b, priceLower, priceUpper, liquidity, roundUp)
	default:
		if err = sqrtpricemath.GetAmountADelta(a, sqrtPriceCurrent, priceUpper, liquidity, roundUp); err == nil {
			err = sqrtpricemath.GetAmountBDelta(b, priceLower, sqrtPriceCurrent, liquidity, roundUp)
		}
	}
	if err != nil {
		return 0, 0, err
	}

	amountA, errA := fullmath.CastU64(a)
	amountB, errB := fullmath.CastU64(b)
	if errA != nil || errB != nil {
		return 0, 0, ErrAmountOverflow
	}
	return amountA, amountB, nil
}
