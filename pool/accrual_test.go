package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
)

// A position spanning the active range earns exactly
// mul_shr(L, fee_growth_delta, 64) per side, no more, no less.
func TestPositionFeeAccrual(t *testing.T) {
	e := newTestEnv(t, 1)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)

	// Alternating in-range swaps; the price never leaves the range.
	for i := 0; i < 50; i++ {
		e.swapIn(t, i%2 == 0, 20_000)
	}
	growthA, growthB := e.pool.FeeGrowthGlobal()

	feeA, feeB, err := e.pool.CollectFee(lp, index, true)
	require.NoError(t, err)

	expectA := new(uint256.Int)
	require.NoError(t, fullmath.MulShr(expectA, trillion, growthA, 64))
	expectB := new(uint256.Int)
	require.NoError(t, fullmath.MulShr(expectB, trillion, growthB, 64))

	assert.Equal(t, expectA.Uint64(), feeA.Amount())
	assert.Equal(t, expectB.Uint64(), feeB.Amount())
	assert.True(t, feeA.Amount() > 0)
	assert.True(t, feeB.Amount() > 0)

	t.Run("second collect pays nothing", func(t *testing.T) {
		feeA, feeB, err := e.pool.CollectFee(lp, index, true)
		require.NoError(t, err)
		assert.Zero(t, feeA.Amount())
		assert.Zero(t, feeB.Amount())
	})
}

// A bystander position out of range during one-sided trading earns nothing.
func TestOutOfRangePositionEarnsNothing(t *testing.T) {
	e := newTestEnv(t, 1)
	e.openWithLiquidity(t, lp, -10, 10, trillion)
	bystander, _, _ := e.openWithLiquidity(t, lp, 100, 200, billion)

	for i := 0; i < 10; i++ {
		e.swapIn(t, i%2 == 0, 20_000)
	}

	feeA, feeB, err := e.pool.CollectFee(lp, bystander, true)
	require.NoError(t, err)
	assert.Zero(t, feeA.Amount())
	assert.Zero(t, feeB.Amount())
}

// Adding and removing the same liquidity on a quiescent pool returns the
// deposit, allowing one unit of rounding per side in the pool's favour.
func TestAddRemoveRoundTrip(t *testing.T) {
	e := newTestEnv(t, 1)
	index, addA, addB := e.openWithLiquidity(t, lp, -10, 10, trillion)

	assetA, assetB, err := e.pool.RemoveLiquidity(lp, index, trillion)
	require.NoError(t, err)

	assert.True(t, assetA.Amount() <= addA && assetA.Amount() >= addA-1)
	assert.True(t, assetB.Amount() <= addB && assetB.Amount() >= addB-1)

	info, err := e.pool.PositionInfo(index)
	require.NoError(t, err)
	assert.True(t, info.Liquidity.IsZero())

	// Emptied endpoints disappear from the tick set and the directory.
	_, ok := e.pool.Tick(-10)
	assert.False(t, ok)
	_, ok = e.pool.Tick(10)
	assert.False(t, ok)
}

func TestPartialRemoveKeepsTicks(t *testing.T) {
	e := newTestEnv(t, 1)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)

	half := new(uint256.Int).Rsh(trillion, 1)
	_, _, err := e.pool.RemoveLiquidity(lp, index, half)
	require.NoError(t, err)

	tick, ok := e.pool.Tick(10)
	require.True(t, ok)
	assert.Equal(t, half, tick.LiquidityGross)

	_, _, err = e.pool.RemoveLiquidity(lp, index, trillion)
	assert.ErrorIs(t, err, ErrLiquidityUnderflow)
}

// Close is only possible once liquidity, fees and rewards are all cleared.
func TestCloseGuard(t *testing.T) {
	e := newTestEnv(t, 1)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)
	e.swapIn(t, true, 20_000)

	assert.ErrorIs(t, e.pool.ClosePosition(lp, index), ErrPoolLiquidityIsNotZero)

	_, _, err := e.pool.RemoveLiquidity(lp, index, trillion)
	require.NoError(t, err)
	assert.ErrorIs(t, e.pool.ClosePosition(lp, index), ErrPoolLiquidityIsNotZero, "fees still owed")

	_, _, err = e.pool.CollectFee(lp, index, true)
	require.NoError(t, err)
	require.NoError(t, e.pool.ClosePosition(lp, index))

	_, err = e.pool.PositionInfo(index)
	assert.ErrorIs(t, err, ErrPositionNotExist)

	t.Run("closing again fails", func(t *testing.T) {
		assert.ErrorIs(t, e.pool.ClosePosition(lp, index), ErrPositionNotExist)
	})
}

// Fees accrued before a liquidity change stick to the old balance: the
// refresh on add must snapshot accruals before bumping L.
func TestRefreshBeforeLiquidityChange(t *testing.T) {
	e := newTestEnv(t, 1)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)

	e.swapIn(t, true, 20_000)
	growthA, _ := e.pool.FeeGrowthGlobal()
	expect := new(uint256.Int)
	require.NoError(t, fullmath.MulShr(expect, trillion, growthA, 64))

	// Double the position, then collect: the accrual must match the old L.
	receipt, err := e.pool.AddLiquidity(lp, index, trillion)
	require.NoError(t, err)
	amountA, amountB := receipt.Owed()
	require.NoError(t, e.pool.RepayAddLiquidity(e.tokens.Mint(tokenA, amountA), e.tokens.Mint(tokenB, amountB), receipt))

	feeA, _, err := e.pool.CollectFee(lp, index, true)
	require.NoError(t, err)
	assert.Equal(t, expect.Uint64(), feeA.Amount())
}

// Vault solvency: the vault always covers owed fees, protocol fees and the
// withdrawal of all liquidity.
func TestVaultSolvency(t *testing.T) {
	e := newTestEnv(t, 1)
	index, _, _ := e.openWithLiquidity(t, lp, -10, 10, trillion)

	for i := 0; i < 20; i++ {
		e.swapIn(t, i%2 == 0, 50_000)
	}

	_, _, err := e.pool.RemoveLiquidity(lp, index, trillion)
	require.NoError(t, err)
	_, _, err = e.pool.CollectFee(lp, index, true)
	require.NoError(t, err)
	_, _, err = e.pool.CollectProtocolFee(admin)
	require.NoError(t, err)

	// Everything owed was paid out without ever failing a withdrawal; the
	// vault keeps only rounding dust.
	vaultA, vaultB := e.pool.VaultBalances()
	assert.True(t, vaultA < 64, "vault A dust %d", vaultA)
	assert.True(t, vaultB < 64, "vault B dust %d", vaultB)
}
