package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
	"github.com/defistate/clmm-engine-go/calculator/liquiditymath"
	"github.com/defistate/clmm-engine-go/calculator/tickmath"
)

// Tick is created lazily when a position first references the index and
// destroyed when its gross liquidity drops back to zero. The outside
// accumulators hold the growth attributed to the side of the tick that does
// not contain the current tick, maintained by flipping on every cross.
type Tick struct {
	Index          int32
	SqrtPrice      *uint256.Int
	LiquidityNet   *big.Int
	LiquidityGross *uint256.Int

	FeeGrowthOutsideA     *uint256.Int
	FeeGrowthOutsideB     *uint256.Int
	RewarderGrowthOutside [RewarderCount]*uint256.Int
}

// upsertTick records a liquidity delta at a position endpoint, creating the
// tick on first reference. A freshly created tick seeds its outside
// accumulators with the current globals when the current tick is at or
// above it, and zero otherwise, so the outside invariant holds from birth.
func (p *Pool) upsertTick(index int32, deltaL *uint256.Int, isLower bool) (*Tick, error) {
	t, ok := p.ticks[index]
	if !ok {
		sqrtPrice, err := tickmath.GetSqrtPriceAtTick(index)
		if err != nil {
			return nil, ErrInvalidTick
		}
		t = &Tick{
			Index:             index,
			SqrtPrice:         sqrtPrice,
			LiquidityNet:      new(big.Int),
			LiquidityGross:    new(uint256.Int),
			FeeGrowthOutsideA: new(uint256.Int),
			FeeGrowthOutsideB: new(uint256.Int),
		}
		for k := range t.RewarderGrowthOutside {
			t.RewarderGrowthOutside[k] = new(uint256.Int)
		}
		if p.tickCurrent >= index {
			t.FeeGrowthOutsideA.Set(p.feeGrowthGlobalA)
			t.FeeGrowthOutsideB.Set(p.feeGrowthGlobalB)
			for k, r := range p.rewarders {
				t.RewarderGrowthOutside[k].Set(r.GrowthGlobal)
			}
		}
		p.ticks[index] = t
		if err := p.directory.Mark(index); err != nil {
			return nil, err
		}
	}

	if err := fullmath.CheckedAddU128(t.LiquidityGross, t.LiquidityGross, deltaL); err != nil {
		return nil, ErrLiquidityOverflow
	}
	net := deltaL.ToBig()
	if !isLower {
		net.Neg(net)
	}
	t.LiquidityNet.Add(t.LiquidityNet, net)
	if t.LiquidityNet.BitLen() > 127 {
		return nil, ErrLiquidityOverflow
	}
	return t, nil
}

// debitTick removes a liquidity delta at an endpoint, deleting the tick
// record and its directory bit once no position references it.
func (p *Pool) debitTick(index int32, deltaL *uint256.Int, isLower bool) error {
	t, ok := p.ticks[index]
	if !ok {
		return ErrInvariantViolated
	}
	if err := fullmath.CheckedSubU128(t.LiquidityGross, t.LiquidityGross, deltaL); err != nil {
		return ErrLiquidityUnderflow
	}
	net := deltaL.ToBig()
	if isLower {
		net.Neg(net)
	}
	t.LiquidityNet.Add(t.LiquidityNet, net)
	if t.LiquidityNet.BitLen() > 127 {
		return ErrLiquidityOverflow
	}

	if t.LiquidityGross.IsZero() {
		delete(p.ticks, index)
		return p.directory.Unmark(index)
	}
	return nil
}

// crossTick flips the outside accumulators of a tick the price just crossed
// and applies its net liquidity to the active liquidity, signed by the
// traversal direction.
func (p *Pool) crossTick(t *Tick, aToB bool) error {
	net := t.LiquidityNet
	if aToB {
		net = new(big.Int).Neg(net)
	}
	if err := liquiditymath.AddDelta(p.liquidity, p.liquidity, net); err != nil {
		return err
	}

	fullmath.WrappingSubU128(t.FeeGrowthOutsideA, p.feeGrowthGlobalA, t.FeeGrowthOutsideA)
	fullmath.WrappingSubU128(t.FeeGrowthOutsideB, p.feeGrowthGlobalB, t.FeeGrowthOutsideB)
	for k, r := range p.rewarders {
		fullmath.WrappingSubU128(t.RewarderGrowthOutside[k], r.GrowthGlobal, t.RewarderGrowthOutside[k])
	}
	return nil
}

// growthInside resolves the classic global-minus-below-minus-above formula
// for one accumulator over [lower, upper). All subtractions wrap on the
// 128-bit width.
func growthInside(tickCurrent int32, lower, upper *Tick, global, outsideLower, outsideUpper *uint256.Int) *uint256.Int {
	below := new(uint256.Int)
	if tickCurrent >= lower.Index {
		below.Set(outsideLower)
	} else {
		fullmath.WrappingSubU128(below, global, outsideLower)
	}

	above := new(uint256.Int)
	if tickCurrent < upper.Index {
		above.Set(outsideUpper)
	} else {
		fullmath.WrappingSubU128(above, global, outsideUpper)
	}

	inside := new(uint256.Int)
	fullmath.WrappingSubU128(inside, global, below)
	fullmath.WrappingSubU128(inside, inside, above)
	return inside
}

func (p *Pool) feeGrowthInside(lower, upper *Tick) (a, b *uint256.Int) {
	a = growthInside(p.tickCurrent, lower, upper, p.feeGrowthGlobalA, lower.FeeGrowthOutsideA, upper.FeeGrowthOutsideA)
	b = growthInside(p.tickCurrent, lower, upper, p.feeGrowthGlobalB, lower.FeeGrowthOutsideB, upper.FeeGrowthOutsideB)
	return a, b
}

func (p *Pool) rewarderGrowthInside(lower, upper *Tick, k int) *uint256.Int {
	return growthInside(p.tickCurrent, lower, upper, p.rewarders[k].GrowthGlobal, lower.RewarderGrowthOutside[k], upper.RewarderGrowthOutside[k])
}
