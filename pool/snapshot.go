package pool

import (
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/defistate/clmm-engine-go/tickdirectory"
)

// cloneTick creates a deep copy of a tick record, ensuring the pointer
// fields get their own memory.
func cloneTick(t *Tick) *Tick {
	c := &Tick{
		Index:             t.Index,
		SqrtPrice:         new(uint256.Int).Set(t.SqrtPrice),
		LiquidityNet:      new(big.Int).Set(t.LiquidityNet),
		LiquidityGross:    new(uint256.Int).Set(t.LiquidityGross),
		FeeGrowthOutsideA: new(uint256.Int).Set(t.FeeGrowthOutsideA),
		FeeGrowthOutsideB: new(uint256.Int).Set(t.FeeGrowthOutsideB),
	}
	for k := range t.RewarderGrowthOutside {
		c.RewarderGrowthOutside[k] = new(uint256.Int).Set(t.RewarderGrowthOutside[k])
	}
	return c
}

func clonePosition(pos *Position) *Position {
	c := &Position{
		PoolIndex:        pos.PoolIndex,
		Index:            pos.Index,
		TickLower:        pos.TickLower,
		TickUpper:        pos.TickUpper,
		Liquidity:        new(uint256.Int).Set(pos.Liquidity),
		FeeGrowthInsideA: new(uint256.Int).Set(pos.FeeGrowthInsideA),
		FeeGrowthInsideB: new(uint256.Int).Set(pos.FeeGrowthInsideB),
		FeeOwedA:         pos.FeeOwedA,
		FeeOwedB:         pos.FeeOwedB,
	}
	for k := range pos.Rewards {
		c.Rewards[k] = PositionReward{
			GrowthInside: new(uint256.Int).Set(pos.Rewards[k].GrowthInside),
			AmountOwed:   pos.Rewards[k].AmountOwed,
		}
	}
	return c
}

// cloneLocked deep-copies the pool state for simulation. The clone shares
// no mutable memory with the live pool; it gets its own vault with the
// same balances, and its events and metrics are discarded. Caller must
// hold the live pool's lock.
func (p *Pool) cloneLocked() *Pool {
	c := &Pool{
		index:              p.index,
		tokenA:             p.tokenA,
		tokenB:             p.tokenB,
		tickSpacing:        p.tickSpacing,
		uri:                p.uri,
		paused:             p.paused,
		feeRate:            p.feeRate,
		protocolFeeRate:    p.protocolFeeRate,
		sqrtPrice:          new(uint256.Int).Set(p.sqrtPrice),
		tickCurrent:        p.tickCurrent,
		liquidity:          new(uint256.Int).Set(p.liquidity),
		feeGrowthGlobalA:   new(uint256.Int).Set(p.feeGrowthGlobalA),
		feeGrowthGlobalB:   new(uint256.Int).Set(p.feeGrowthGlobalB),
		feeProtocolA:       p.feeProtocolA,
		feeProtocolB:       p.feeProtocolB,
		rewarderLastUpdate: p.rewarderLastUpdate,
		positions:          make(map[uint64]*Position, len(p.positions)),
		positionSeq:        p.positionSeq,
		ticks:              make(map[int32]*Tick, len(p.ticks)),
		directory:          tickdirectory.New(p.tickSpacing),
		vault:              p.vault.Clone(),
		deps:               p.deps,
		log:                zap.NewNop(),
		sink:               NopSink{},
	}

	for idx, pos := range p.positions {
		c.positions[idx] = clonePosition(pos)
	}
	for idx, t := range p.ticks {
		c.ticks[idx] = cloneTick(t)
		// Directory bit and tick record share a lifecycle; rebuild both.
		if err := c.directory.Mark(idx); err != nil {
			panic(err)
		}
	}
	for _, r := range p.rewarders {
		c.rewarders = append(c.rewarders, &Rewarder{
			Token:              r.Token,
			Authority:          r.Authority,
			PendingAuthority:   r.PendingAuthority,
			EmissionsPerSecond: new(uint256.Int).Set(r.EmissionsPerSecond),
			GrowthGlobal:       new(uint256.Int).Set(r.GrowthGlobal),
		})
	}
	return c
}
