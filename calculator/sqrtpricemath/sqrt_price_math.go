// Package sqrtpricemath computes token deltas and next prices along the
// Q64.64 square-root price curve at constant liquidity.
//
// Rounding always favours the pool: deltas the trader owes round up, deltas
// the pool pays round down, and next-price computations round so the price
// never moves further than the paid amount justifies.
package sqrtpricemath

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
)

const resolution = 64

var (
	ErrLiquidityZero  = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero  = errors.New("sqrt price must be greater than zero")
	ErrPriceUnderflow = errors.New("next sqrt price underflows")
	ErrPriceOverflow  = errors.New("next sqrt price overflows u128")
)

// GetAmountADelta writes the token A amount between two sqrt prices at
// liquidity L into dest: L * (pHi - pLo) * 2^64 / (pHi * pLo).
func GetAmountADelta(dest, sqrtPriceA, sqrtPriceB, liquidity *uint256.Int, roundUp bool) error {
	lo, hi := sqrtPriceA, sqrtPriceB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	if lo.IsZero() {
		return ErrSqrtPriceZero
	}

	diff := new(uint256.Int).Sub(hi, lo)
	num := new(uint256.Int)
	if err := fullmath.MulShlChecked(num, liquidity, diff, resolution); err != nil {
		return err
	}
	denom := new(uint256.Int).Mul(hi, lo)
	if roundUp {
		return fullmath.DivCeil(dest, num, denom)
	}
	return fullmath.DivFloor(dest, num, denom)
}

// GetAmountBDelta writes the token B amount between two sqrt prices at
// liquidity L into dest: L * (pHi - pLo) / 2^64.
func GetAmountBDelta(dest, sqrtPriceA, sqrtPriceB, liquidity *uint256.Int, roundUp bool) error {
	lo, hi := sqrtPriceA, sqrtPriceB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}

	diff := new(uint256.Int).Sub(hi, lo)
	prod, overflow := new(uint256.Int).MulOverflow(liquidity, diff)
	if overflow {
		return fullmath.ErrMultiplicationOverflow
	}
	if roundUp {
		rem := new(uint256.Int).And(prod, fullmath.MaxU64)
		dest.Rsh(prod, resolution)
		if !rem.IsZero() {
			dest.AddUint64(dest, 1)
		}
		return nil
	}
	dest.Rsh(prod, resolution)
	return nil
}

// getNextSqrtPriceFromAmountARoundingUp moves the price by an amount of
// token A. Adding A pushes the price down, removing A pushes it up. The
// result rounds up so the pool never credits more movement than paid for.
func getNextSqrtPriceFromAmountARoundingUp(dest, sqrtPrice, liquidity *uint256.Int, amount uint64, add bool) error {
	if amount == 0 {
		dest.Set(sqrtPrice)
		return nil
	}

	numerator := new(uint256.Int).Lsh(liquidity, resolution)
	product := new(uint256.Int).Mul(uint256.NewInt(amount), sqrtPrice)

	if add {
		denominator := new(uint256.Int).Add(numerator, product)
		return fullmath.MulDivCeil512(dest, numerator, sqrtPrice, denominator)
	}

	if numerator.Cmp(product) <= 0 {
		return ErrPriceOverflow
	}
	denominator := new(uint256.Int).Sub(numerator, product)
	if err := fullmath.MulDivCeil512(dest, numerator, sqrtPrice, denominator); err != nil {
		return err
	}
	if !fullmath.IsU128(dest) {
		return ErrPriceOverflow
	}
	return nil
}

// getNextSqrtPriceFromAmountBRoundingDown moves the price by an amount of
// token B. Adding B pushes the price up, removing B pushes it down. The
// price delta rounds down on add and up on remove, again in the pool's
// favour.
func getNextSqrtPriceFromAmountBRoundingDown(dest, sqrtPrice, liquidity *uint256.Int, amount uint64, add bool) error {
	shifted := new(uint256.Int).Lsh(uint256.NewInt(amount), resolution)

	if add {
		quot := new(uint256.Int)
		if err := fullmath.DivFloor(quot, shifted, liquidity); err != nil {
			return err
		}
		dest.Add(sqrtPrice, quot)
		if !fullmath.IsU128(dest) {
			return ErrPriceOverflow
		}
		return nil
	}

	quot := new(uint256.Int)
	if err := fullmath.DivCeil(quot, shifted, liquidity); err != nil {
		return err
	}
	if sqrtPrice.Cmp(quot) <= 0 {
		return ErrPriceUnderflow
	}
	dest.Sub(sqrtPrice, quot)
	return nil
}

// GetNextSqrtPriceFromInput calculates the next sqrt price after paying
// amountIn of the input token in the given direction.
func GetNextSqrtPriceFromInput(dest, sqrtPrice, liquidity *uint256.Int, amountIn uint64, aToB bool) error {
	if sqrtPrice.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if aToB {
		return getNextSqrtPriceFromAmountARoundingUp(dest, sqrtPrice, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmountBRoundingDown(dest, sqrtPrice, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput calculates the next sqrt price after receiving
// amountOut of the output token in the given direction.
func GetNextSqrtPriceFromOutput(dest, sqrtPrice, liquidity *uint256.Int, amountOut uint64, aToB bool) error {
	if sqrtPrice.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if aToB {
		return getNextSqrtPriceFromAmountBRoundingDown(dest, sqrtPrice, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmountARoundingUp(dest, sqrtPrice, liquidity, amountOut, false)
}
