package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clmm-engine-go/collab"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

func TestCreatePool(t *testing.T) {
	e := newTestEnv(t, 1)

	t.Run("create pool event carries the collection", func(t *testing.T) {
		require.NotEmpty(t, e.sink.Events)
		ev, ok := e.sink.Events[0].(CreatePoolEvent)
		require.True(t, ok)
		assert.Equal(t, admin, ev.Creator)
		assert.Equal(t, tokenA, ev.TokenA)
		assert.Equal(t, tokenB, ev.TokenB)
		assert.Equal(t, uint32(1), ev.TickSpacing)
		assert.Contains(t, ev.CollectionName, "TKA-TKB")
	})

	t.Run("same pair and spacing rejected", func(t *testing.T) {
		_, err := e.registry.CreatePool(admin, tokenA, tokenB, 1, priceOne, "")
		assert.ErrorIs(t, err, ErrPoolAlreadyExists)
	})

	t.Run("same pair different spacing allowed", func(t *testing.T) {
		p, err := e.registry.CreatePool(admin, tokenA, tokenB, 10, priceOne, "")
		require.NoError(t, err)
		assert.Equal(t, uint64(3000), p.FeeRate(), "fee rate comes from the tier registry")
	})

	t.Run("same token rejected", func(t *testing.T) {
		_, err := e.registry.CreatePool(admin, tokenA, tokenA, 1, priceOne, "")
		assert.ErrorIs(t, err, ErrSameTokenType)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		_, err := e.registry.CreatePool(admin, tokenA, tokenregistry.TokenID(42), 1, priceOne, "")
		assert.ErrorIs(t, err, tokenregistry.ErrUnknownToken)
	})

	t.Run("unknown fee tier rejected", func(t *testing.T) {
		_, err := e.registry.CreatePool(admin, tokenA, tokenB, 7, priceOne, "")
		assert.ErrorIs(t, err, collab.ErrUnknownFeeTier)
	})

	t.Run("create authority required", func(t *testing.T) {
		_, err := e.registry.CreatePool(trader, tokenA, tokenB, 60, priceOne, "")
		assert.ErrorIs(t, err, ErrNoPrivilege)
	})

	t.Run("init price bounds", func(t *testing.T) {
		_, err := e.registry.CreatePool(admin, tokenA, tokenB, 60, uint256.NewInt(1), "")
		assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
	})
}

func TestRegistryLookups(t *testing.T) {
	e := newTestEnv(t, 1)

	p, ok := e.registry.Pool(tokenA, tokenB, 1)
	require.True(t, ok)
	assert.Equal(t, e.pool, p)

	p, ok = e.registry.PoolByIndex(1)
	require.True(t, ok)
	assert.Equal(t, e.pool, p)

	_, ok = e.registry.Pool(tokenB, tokenA, 1)
	assert.False(t, ok, "pair key is ordered")

	indices := e.registry.PoolsForToken(tokenA)
	assert.Equal(t, []uint64{1}, indices)

	assert.Empty(t, e.registry.PoolsForToken(reward))
}
