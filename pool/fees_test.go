package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clmm-engine-go/calculator/tickmath"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// Literal partner/protocol split: protocol rate 2000 (20% of fees), partner
// referral 3000 (30% of the protocol cut). A raw fee of 1000 divides into
// 200 protocol gross, 60 referral, 140 protocol kept, 800 to liquidity.
func TestFeeSplitLiteral(t *testing.T) {
	e := newTestEnv(t, 1)
	e.openWithLiquidity(t, lp, -10, 10, trillion)

	growthBefore, _ := e.pool.FeeGrowthGlobal()
	require.True(t, growthBefore.IsZero())

	e.pool.mu.Lock()
	ref, err := e.pool.splitStepFee(1000, true, 3000)
	e.pool.mu.Unlock()
	require.NoError(t, err)

	assert.Equal(t, uint64(60), ref)
	protoA, protoB := e.pool.ProtocolFees()
	assert.Equal(t, uint64(140), protoA)
	assert.Zero(t, protoB)

	growthA, _ := e.pool.FeeGrowthGlobal()
	// 800 << 64 / 1e12
	assert.Equal(t, uint64(14_757_395_258), growthA.Uint64())
}

// End to end with a registered partner: every fee token lands in exactly
// one bucket.
func TestFeeConservationWithPartner(t *testing.T) {
	e := newTestEnv(t, 1)
	e.partners.SetRate("router", 3000)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)

	assetA, assetB, receipt, err := e.pool.FlashSwap(trader, "router", true, true, 1_000_000, 0, tickmath.MinSqrtPrice)
	require.NoError(t, err)
	require.Zero(t, assetA.Amount())
	require.True(t, assetB.Amount() > 0)

	require.NoError(t, e.pool.RepayFlashSwap(e.tokens.Mint(tokenA, receipt.PayAmount()), tokenregistry.Zero(tokenB), receipt))

	// Partner got its referral in the input token.
	assert.Equal(t, receipt.RefFeeAmount(), e.partners.Received("router", tokenA))
	assert.True(t, receipt.RefFeeAmount() > 0)

	// Protocol + referral + liquidity-distributed == total fee.
	protoA, _ := e.pool.ProtocolFees()
	feeCollected, _, err := e.pool.CollectFee(lp, index, true)
	require.NoError(t, err)

	var swapEvent *SwapEvent
	for i := range e.sink.Events {
		if ev, ok := e.sink.Events[i].(SwapEvent); ok {
			swapEvent = &ev
		}
	}
	require.NotNil(t, swapEvent)

	distributed := protoA + receipt.RefFeeAmount() + feeCollected.Amount()
	assert.True(t, distributed <= swapEvent.FeeAmount)
	// The liquidity growth accumulator floors once per step; with a single
	// position holding all liquidity at most one unit per step is stranded.
	assert.True(t, swapEvent.FeeAmount-distributed <= 1, "fee %d distributed %d", swapEvent.FeeAmount, distributed)
}
