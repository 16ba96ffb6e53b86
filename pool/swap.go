package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/swapmath"
	"github.com/defistate/clmm-engine-go/calculator/tickmath"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// SwapStepTrace records one segment of a simulated swap.
type SwapStepTrace struct {
	CurrentSqrtPrice *uint256.Int
	TargetSqrtPrice  *uint256.Int
	CurrentLiquidity *uint256.Int
	AmountIn         uint64
	AmountOut        uint64
	FeeAmount        uint64
	Remaining        uint64
}

// SwapResult is the outcome of a swap or a swap simulation.
type SwapResult struct {
	AmountIn       uint64
	AmountOut      uint64
	FeeAmount      uint64
	RefFeeAmount   uint64
	SqrtPriceAfter *uint256.Int
	TickAfter      int32
	// IsExceed is set by simulations that ran out of active ticks before
	// exhausting the requested amount.
	IsExceed bool
	Steps    []SwapStepTrace
}

// swapOutcome is the mutating loop's running state.
type swapOutcome struct {
	amountIn  uint64
	amountOut uint64
	feeAmount uint64
	refFee    uint64
	isExceed  bool
	steps     []SwapStepTrace
}

// swapBackup captures the state a swap loop mutates, so a failing swap can
// roll the pool back and stay all-or-nothing. Positions are untouched by
// swaps and need no copy.
type swapBackup struct {
	sqrtPrice        *uint256.Int
	tickCurrent      int32
	liquidity        *uint256.Int
	feeGrowthGlobalA *uint256.Int
	feeGrowthGlobalB *uint256.Int
	feeProtocolA     uint64
	feeProtocolB     uint64
	ticks            map[int32]*Tick
	rewarderGrowth   []*uint256.Int
}

func (p *Pool) backupSwapState() *swapBackup {
	b := &swapBackup{
		sqrtPrice:        new(uint256.Int).Set(p.sqrtPrice),
		tickCurrent:      p.tickCurrent,
		liquidity:        new(uint256.Int).Set(p.liquidity),
		feeGrowthGlobalA: new(uint256.Int).Set(p.feeGrowthGlobalA),
		feeGrowthGlobalB: new(uint256.Int).Set(p.feeGrowthGlobalB),
		feeProtocolA:     p.feeProtocolA,
		feeProtocolB:     p.feeProtocolB,
		ticks:            make(map[int32]*Tick, len(p.ticks)),
	}
	for idx, t := range p.ticks {
		b.ticks[idx] = cloneTick(t)
	}
	for _, r := range p.rewarders {
		b.rewarderGrowth = append(b.rewarderGrowth, new(uint256.Int).Set(r.GrowthGlobal))
	}
	return b
}

func (p *Pool) restoreSwapState(b *swapBackup) {
	p.sqrtPrice = b.sqrtPrice
	p.tickCurrent = b.tickCurrent
	p.liquidity = b.liquidity
	p.feeGrowthGlobalA = b.feeGrowthGlobalA
	p.feeGrowthGlobalB = b.feeGrowthGlobalB
	p.feeProtocolA = b.feeProtocolA
	p.feeProtocolB = b.feeProtocolB
	p.ticks = b.ticks
	for k, g := range b.rewarderGrowth {
		p.rewarders[k].GrowthGlobal = g
	}
}

// validateSqrtPriceLimit enforces that the limit sits on the far side of
// the current price for the swap direction and within the global bounds.
func (p *Pool) validateSqrtPriceLimit(limit *uint256.Int, aToB bool) error {
	if limit == nil {
		return ErrWrongSqrtPriceLimit
	}
	if aToB {
		if !p.sqrtPrice.Gt(limit) || limit.Lt(tickmath.MinSqrtPrice) {
			return ErrWrongSqrtPriceLimit
		}
		return nil
	}
	if !p.sqrtPrice.Lt(limit) || limit.Gt(tickmath.MaxSqrtPrice) {
		return ErrWrongSqrtPriceLimit
	}
	return nil
}

// executeSwap walks active ticks in the trade direction, running one
// swap-step per segment, splitting fees, and crossing each tick it reaches,
// until the amount is exhausted or the price hits the limit.
//
// With trace set the loop records per-step traces and reports tick-range
// exhaustion through isExceed instead of an error.
func (p *Pool) executeSwap(aToB, byAmountIn bool, amount uint64, limit *uint256.Int, refRate uint64, trace bool) (*swapOutcome, error) {
	out := &swapOutcome{}
	remaining := amount

	for remaining > 0 && !p.sqrtPrice.Eq(limit) {
		nextTick, ok := p.directory.NextActive(p.tickCurrent, aToB)
		if !ok {
			if trace {
				out.isExceed = true
				break
			}
			return nil, ErrNotEnoughLiquidity
		}
		tickRecord, ok := p.ticks[nextTick]
		if !ok {
			return nil, ErrInvariantViolated
		}

		target := tickRecord.SqrtPrice
		if aToB {
			if limit.Gt(target) {
				target = limit
			}
		} else {
			if limit.Lt(target) {
				target = limit
			}
		}

		step, err := swapmath.ComputeSwapStep(p.sqrtPrice, target, p.liquidity, remaining, p.feeRate, aToB, byAmountIn)
		if err != nil {
			return nil, err
		}

		var consumed uint64
		if byAmountIn {
			consumed = step.AmountIn + step.FeeAmount
		} else {
			consumed = step.AmountOut
		}
		if consumed > remaining {
			return nil, ErrRemainderUnderflow
		}
		remaining -= consumed

		out.amountIn += step.AmountIn
		out.amountOut += step.AmountOut
		out.feeAmount += step.FeeAmount

		refFee, err := p.splitStepFee(step.FeeAmount, aToB, refRate)
		if err != nil {
			return nil, err
		}
		out.refFee += refFee

		if trace {
			out.steps = append(out.steps, SwapStepTrace{
				CurrentSqrtPrice: new(uint256.Int).Set(p.sqrtPrice),
				TargetSqrtPrice:  new(uint256.Int).Set(target),
				CurrentLiquidity: new(uint256.Int).Set(p.liquidity),
				AmountIn:         step.AmountIn,
				AmountOut:        step.AmountOut,
				FeeAmount:        step.FeeAmount,
				Remaining:        remaining,
			})
		}

		if step.SqrtPriceNext.Eq(tickRecord.SqrtPrice) {
			// The segment ran to the tick boundary: cross it.
			if err := p.crossTick(tickRecord, aToB); err != nil {
				return nil, err
			}
			if p.metrics != nil {
				p.metrics.TicksCrossedTotal.Inc()
			}
			if aToB {
				p.tickCurrent = nextTick - 1
			} else {
				p.tickCurrent = nextTick
			}
			p.sqrtPrice.Set(tickRecord.SqrtPrice)
		} else if !step.SqrtPriceNext.Eq(p.sqrtPrice) {
			p.sqrtPrice.Set(step.SqrtPriceNext)
			tick, err := tickmath.GetTickAtSqrtPrice(p.sqrtPrice)
			if err != nil {
				return nil, ErrInvalidSqrtPrice
			}
			p.tickCurrent = tick
		}
	}

	return out, nil
}

// FlashSwap trades against the pool, handing the output tokens to the
// caller before the input is paid. The returned receipt must be settled
// through RepayFlashSwap in the same transaction; until then the pool's
// other state-changing operations refuse (see receipt.go for the exception).
//
// amountLimit is the caller's slippage bound: with byAmountIn it is the
// minimum acceptable output, otherwise the maximum acceptable input, with
// zero meaning unbounded.
func (p *Pool) FlashSwap(caller common.Address, partner string, aToB, byAmountIn bool, amount, amountLimit uint64, sqrtPriceLimit *uint256.Int) (tokenregistry.Asset, tokenregistry.Asset, *FlashSwapReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	zeroA, zeroB := tokenregistry.Zero(p.tokenA), tokenregistry.Zero(p.tokenB)
	if err := p.checkMutable(); err != nil {
		return zeroA, zeroB, nil, err
	}
	if amount == 0 {
		return zeroA, zeroB, nil, ErrAmountIncorrect
	}
	if err := p.validateSqrtPriceLimit(sqrtPriceLimit, aToB); err != nil {
		return zeroA, zeroB, nil, err
	}
	if err := p.updateRewarders(); err != nil {
		return zeroA, zeroB, nil, err
	}

	refRate := p.deps.Partners.RefFeeRate(partner)
	if refRate > protocolFeeDenominator {
		refRate = protocolFeeDenominator
	}

	backup := p.backupSwapState()
	out, err := p.executeSwap(aToB, byAmountIn, amount, sqrtPriceLimit, refRate, false)
	if err != nil {
		p.restoreSwapState(backup)
		return zeroA, zeroB, nil, err
	}
	if byAmountIn && out.amountOut < amountLimit {
		p.restoreSwapState(backup)
		return zeroA, zeroB, nil, ErrAmountOutBelowLimit
	}
	if !byAmountIn && amountLimit != 0 && out.amountIn+out.feeAmount > amountLimit {
		p.restoreSwapState(backup)
		return zeroA, zeroB, nil, ErrAmountInAboveLimit
	}

	outToken := p.tokenB
	if !aToB {
		outToken = p.tokenA
	}
	outAsset, err := p.vault.Withdraw(outToken, out.amountOut)
	if err != nil {
		p.restoreSwapState(backup)
		return zeroA, zeroB, nil, err
	}

	receipt := &FlashSwapReceipt{
		pool:         p,
		payAmount:    out.amountIn + out.feeAmount,
		refFeeAmount: out.refFee,
		aToB:         aToB,
		partner:      partner,
	}
	p.outstandingReceipts++

	if p.metrics != nil {
		p.metrics.SwapsTotal.Inc()
	}
	p.emit(SwapEvent{
		AToB:         aToB,
		Pool:         p.index,
		SwapFrom:     caller,
		Partner:      partner,
		AmountIn:     out.amountIn + out.feeAmount,
		AmountOut:    out.amountOut,
		RefAmount:    out.refFee,
		FeeAmount:    out.feeAmount,
		VaultAAmount: p.vault.Balance(p.tokenA),
		VaultBAmount: p.vault.Balance(p.tokenB),
	})

	if aToB {
		return zeroA, outAsset, receipt, nil
	}
	return outAsset, zeroB, receipt, nil
}

// CalculateSwapResult simulates a swap against a snapshot of the pool and
// returns the per-step trace. The live pool is untouched.
func (p *Pool) CalculateSwapResult(aToB, byAmountIn bool, amount uint64, sqrtPriceLimit *uint256.Int) (*SwapResult, error) {
	p.mu.Lock()
	sim := p.cloneLocked()
	p.mu.Unlock()

	if sqrtPriceLimit == nil {
		sqrtPriceLimit = tickmath.MinSqrtPrice
		if !aToB {
			sqrtPriceLimit = tickmath.MaxSqrtPrice
		}
	}
	if err := sim.validateSqrtPriceLimit(sqrtPriceLimit, aToB); err != nil {
		return nil, err
	}

	out, err := sim.executeSwap(aToB, byAmountIn, amount, sqrtPriceLimit, 0, true)
	if err != nil {
		return nil, err
	}
	return &SwapResult{
		AmountIn:       out.amountIn,
		AmountOut:      out.amountOut,
		FeeAmount:      out.feeAmount,
		RefFeeAmount:   out.refFee,
		SqrtPriceAfter: new(uint256.Int).Set(sim.sqrtPrice),
		TickAfter:      sim.tickCurrent,
		IsExceed:       out.isExceed,
		Steps:          out.steps,
	}, nil
}
