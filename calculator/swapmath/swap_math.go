// Package swapmath computes the result of a swap within a single tick range
// segment: how much goes in, how much comes out, where the sqrt price lands,
// and what fee is taken.
package swapmath

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
	"github.com/defistate/clmm-engine-go/calculator/sqrtpricemath"
)

// FeeRateDenominator scales pool fee rates: a rate of 1000 is 0.1%.
const FeeRateDenominator = 1_000_000

var (
	ErrInvalidTargetPrice = errors.New("target price is on the wrong side for the swap direction")
	ErrAmountOverflow     = errors.New("step amount does not fit in u64")

	feeDenom = uint256.NewInt(FeeRateDenominator)
)

// Step is the outcome of one swap segment at constant liquidity.
type Step struct {
	AmountIn      uint64
	AmountOut     uint64
	FeeAmount     uint64
	SqrtPriceNext *uint256.Int
}

// ComputeSwapStep runs one segment between the current price and the target
// price at the given liquidity. amountRemaining is interpreted as gross
// input (fee included) when byAmountIn, and as requested output otherwise.
//
// Zero liquidity is not an error: the step reports the price snapping to the
// target with nothing exchanged, and the caller moves on to the next tick.
func ComputeSwapStep(sqrtPriceCurrent, sqrtPriceTarget, liquidity *uint256.Int, amountRemaining uint64, feeRate uint64, aToB, byAmountIn bool) (Step, error) {
	if aToB && sqrtPriceCurrent.Lt(sqrtPriceTarget) {
		return Step{}, ErrInvalidTargetPrice
	}
	if !aToB && !sqrtPriceCurrent.Lt(sqrtPriceTarget) {
		return Step{}, ErrInvalidTargetPrice
	}

	if liquidity.IsZero() {
		return Step{SqrtPriceNext: new(uint256.Int).Set(sqrtPriceTarget)}, nil
	}

	if byAmountIn {
		return stepByAmountIn(sqrtPriceCurrent, sqrtPriceTarget, liquidity, amountRemaining, feeRate, aToB)
	}
	return stepByAmountOut(sqrtPriceCurrent, sqrtPriceTarget, liquidity, amountRemaining, feeRate, aToB)
}

func stepByAmountIn(sqrtPriceCurrent, sqrtPriceTarget, liquidity *uint256.Int, amountRemaining, feeRate uint64, aToB bool) (Step, error) {
	step := Step{SqrtPriceNext: new(uint256.Int)}

	netRemaining := new(uint256.Int)
	if err := fullmath.MulDivFloor(netRemaining, uint256.NewInt(amountRemaining), new(uint256.Int).SubUint64(feeDenom, feeRate), feeDenom); err != nil {
		return Step{}, err
	}

	maxIn := new(uint256.Int)
	if err := deltaIn(maxIn, sqrtPriceCurrent, sqrtPriceTarget, liquidity, aToB); err != nil {
		return Step{}, err
	}

	if maxIn.Gt(netRemaining) {
		// The whole net input is consumed inside this segment.
		step.AmountIn = netRemaining.Uint64()
		step.FeeAmount = amountRemaining - step.AmountIn
		if err := sqrtpricemath.GetNextSqrtPriceFromInput(step.SqrtPriceNext, sqrtPriceCurrent, liquidity, step.AmountIn, aToB); err != nil {
			return Step{}, err
		}
	} else {
		// The segment runs all the way to the target price.
		in, err := fullmath.CastU64(maxIn)
		if err != nil {
			return Step{}, ErrAmountOverflow
		}
		step.AmountIn = in
		step.SqrtPriceNext.Set(sqrtPriceTarget)
		fee, err := feeForInput(in, feeRate)
		if err != nil {
			return Step{}, err
		}
		step.FeeAmount = fee
	}

	out := new(uint256.Int)
	if err := deltaOut(out, sqrtPriceCurrent, step.SqrtPriceNext, liquidity, aToB); err != nil {
		return Step{}, err
	}
	amountOut, err := fullmath.CastU64(out)
	if err != nil {
		return Step{}, ErrAmountOverflow
	}
	step.AmountOut = amountOut
	return step, nil
}

func stepByAmountOut(sqrtPriceCurrent, sqrtPriceTarget, liquidity *uint256.Int, amountRemaining, feeRate uint64, aToB bool) (Step, error) {
	step := Step{SqrtPriceNext: new(uint256.Int)}

	maxOut := new(uint256.Int)
	if err := deltaOut(maxOut, sqrtPriceCurrent, sqrtPriceTarget, liquidity, aToB); err != nil {
		return Step{}, err
	}

	if maxOut.GtUint64(amountRemaining) {
		step.AmountOut = amountRemaining
		if err := sqrtpricemath.GetNextSqrtPriceFromOutput(step.SqrtPriceNext, sqrtPriceCurrent, liquidity, step.AmountOut, aToB); err != nil {
			return Step{}, err
		}
	} else {
		out, err := fullmath.CastU64(maxOut)
		if err != nil {
			return Step{}, ErrAmountOverflow
		}
		step.AmountOut = out
		step.SqrtPriceNext.Set(sqrtPriceTarget)
	}

	in := new(uint256.Int)
	if err := deltaIn(in, sqrtPriceCurrent, step.SqrtPriceNext, liquidity, aToB); err != nil {
		return Step{}, err
	}
	amountIn, err := fullmath.CastU64(in)
	if err != nil {
		return Step{}, ErrAmountOverflow
	}
	step.AmountIn = amountIn

	fee, err := feeForInput(step.AmountIn, feeRate)
	if err != nil {
		return Step{}, err
	}
	step.FeeAmount = fee
	return step, nil
}

// deltaIn is the input-token delta between two prices: token A when selling
// A, token B when selling B. Rounds up, the trader owes it.
func deltaIn(dest, sqrtPriceFrom, sqrtPriceTo, liquidity *uint256.Int, aToB bool) error {
	if aToB {
		return sqrtpricemath.GetAmountADelta(dest, sqrtPriceTo, sqrtPriceFrom, liquidity, true)
	}
	return sqrtpricemath.GetAmountBDelta(dest, sqrtPriceFrom, sqrtPriceTo, liquidity, true)
}

// deltaOut is the output-token delta between two prices. Rounds down, the
// pool pays it.
func deltaOut(dest, sqrtPriceFrom, sqrtPriceTo, liquidity *uint256.Int, aToB bool) error {
	if aToB {
		return sqrtpricemath.GetAmountBDelta(dest, sqrtPriceTo, sqrtPriceFrom, liquidity, false)
	}
	return sqrtpricemath.GetAmountADelta(dest, sqrtPriceFrom, sqrtPriceTo, liquidity, false)
}

// feeForInput computes ceil(in * feeRate / (D - feeRate)), the fee charged on
// top of a net input amount.
func feeForInput(amountIn, feeRate uint64) (uint64, error) {
	fee := new(uint256.Int)
	if err := fullmath.MulDivCeil(fee, uint256.NewInt(amountIn), uint256.NewInt(feeRate), new(uint256.Int).SubUint64(feeDenom, feeRate)); err != nil {
		return 0, err
	}
	return fullmath.CastU64(fee)
}
