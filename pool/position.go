package pool

import (
	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
)

// Position is an LP's commitment of liquidity to [TickLower, TickUpper).
// Accruals are measured as the difference between the current inside growth
// and the snapshot taken at the last refresh, scaled by liquidity.
type Position struct {
	PoolIndex uint64
	Index     uint64
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int

	FeeGrowthInsideA *uint256.Int
	FeeGrowthInsideB *uint256.Int
	FeeOwedA         uint64
	FeeOwedB         uint64

	Rewards [RewarderCount]PositionReward
}

// PositionReward is one rewarder slot's view of a position.
type PositionReward struct {
	GrowthInside *uint256.Int
	AmountOwed   uint64
}

func newPosition(poolIndex, index uint64, tickLower, tickUpper int32) *Position {
	pos := &Position{
		PoolIndex:        poolIndex,
		Index:            index,
		TickLower:        tickLower,
		TickUpper:        tickUpper,
		Liquidity:        new(uint256.Int),
		FeeGrowthInsideA: new(uint256.Int),
		FeeGrowthInsideB: new(uint256.Int),
	}
	for k := range pos.Rewards {
		pos.Rewards[k].GrowthInside = new(uint256.Int)
	}
	return pos
}

// refreshPosition settles the position's accruals up to now and re-snapshots
// the inside growth. It must run before any change to the position's
// liquidity and before any collection, so accruals are always measured
// against the liquidity they were earned with.
func (p *Pool) refreshPosition(pos *Position) error {
	lower, okL := p.ticks[pos.TickLower]
	upper, okU := p.ticks[pos.TickUpper]
	if !okL || !okU {
		if pos.Liquidity.IsZero() {
			// Endpoint ticks are gone; nothing can have accrued since the
			// liquidity went to zero.
			return nil
		}
		return ErrInvariantViolated
	}

	fga, fgb := p.feeGrowthInside(lower, upper)

	owedA, err := accrual(pos.Liquidity, fga, pos.FeeGrowthInsideA)
	if err != nil {
		return ErrFeeOverflow
	}
	owedB, err := accrual(pos.Liquidity, fgb, pos.FeeGrowthInsideB)
	if err != nil {
		return ErrFeeOverflow
	}
	var sumA, sumB uint64
	if sumA = pos.FeeOwedA + owedA; sumA < pos.FeeOwedA {
		return ErrFeeOverflow
	}
	if sumB = pos.FeeOwedB + owedB; sumB < pos.FeeOwedB {
		return ErrFeeOverflow
	}
	pos.FeeOwedA = sumA
	pos.FeeOwedB = sumB
	pos.FeeGrowthInsideA.Set(fga)
	pos.FeeGrowthInsideB.Set(fgb)

	for k := range p.rewarders {
		rg := p.rewarderGrowthInside(lower, upper, k)
		owed, err := accrual(pos.Liquidity, rg, pos.Rewards[k].GrowthInside)
		if err != nil {
			return ErrRewardOverflow
		}
		sum := pos.Rewards[k].AmountOwed + owed
		if sum < pos.Rewards[k].AmountOwed {
			return ErrRewardOverflow
		}
		pos.Rewards[k].AmountOwed = sum
		pos.Rewards[k].GrowthInside.Set(rg)
	}
	return nil
}

// accrual computes mul_shr(liquidity, growth - snapshot, 64) with a
// wrapping subtraction and a 256-bit intermediate product.
func accrual(liquidity, growth, snapshot *uint256.Int) (uint64, error) {
	delta := new(uint256.Int)
	fullmath.WrappingSubU128(delta, growth, snapshot)

	owed := new(uint256.Int)
	if err := fullmath.MulShr(owed, liquidity, delta, 64); err != nil {
		return 0, err
	}
	return fullmath.CastU64(owed)
}

// isEmpty reports whether the position can be closed.
func (pos *Position) isEmpty() bool {
	if !pos.Liquidity.IsZero() || pos.FeeOwedA != 0 || pos.FeeOwedB != 0 {
		return false
	}
	for k := range pos.Rewards {
		if pos.Rewards[k].AmountOwed != 0 {
			return false
		}
	}
	return true
}

// PositionInfo is a read-only snapshot of a position for callers outside
// the engine.
type PositionInfo struct {
	Index      uint64
	TickLower  int32
	TickUpper  int32
	Liquidity  *uint256.Int
	FeeOwedA   uint64
	FeeOwedB   uint64
	RewardOwed [RewarderCount]uint64
}

// PositionInfo returns the stored state of a position without refreshing
// its accruals.
func (p *Pool) PositionInfo(index uint64) (PositionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[index]
	if !ok {
		return PositionInfo{}, ErrPositionNotExist
	}
	info := PositionInfo{
		Index:     pos.Index,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		Liquidity: new(uint256.Int).Set(pos.Liquidity),
		FeeOwedA:  pos.FeeOwedA,
		FeeOwedB:  pos.FeeOwedB,
	}
	for k := range pos.Rewards {
		info.RewardOwed[k] = pos.Rewards[k].AmountOwed
	}
	return info, nil
}
