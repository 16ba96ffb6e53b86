package pool

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/defistate/clmm-engine-go/calculator/tickmath"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

type poolKey struct {
	tokenA      tokenregistry.TokenID
	tokenB      tokenregistry.TokenID
	tickSpacing uint32
}

// Registry owns every pool: one per (tokenA, tokenB, tickSpacing) triple.
// It is the factory surface the engine presents to the host runtime.
type Registry struct {
	mu         sync.Mutex
	deps       Deps
	pools      map[poolKey]*Pool
	byIndex    map[uint64]*Pool
	tokenPools map[tokenregistry.TokenID]mapset.Set[uint64]
	seq        uint64

	log     *zap.Logger
	sink    EventSink
	metrics *Metrics
}

// RegistryOption tweaks a Registry at construction.
type RegistryOption func(*Registry)

func WithLogger(log *zap.Logger) RegistryOption { return func(r *Registry) { r.log = log } }
func WithEventSink(s EventSink) RegistryOption  { return func(r *Registry) { r.sink = s } }
func WithMetrics(m *Metrics) RegistryOption     { return func(r *Registry) { r.metrics = m } }

func NewRegistry(deps Deps, opts ...RegistryOption) *Registry {
	r := &Registry{
		deps:       deps,
		pools:      make(map[poolKey]*Pool),
		byIndex:    make(map[uint64]*Pool),
		tokenPools: make(map[tokenregistry.TokenID]mapset.Set[uint64]),
		seq:        1,
		log:        zap.NewNop(),
		sink:       NopSink{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreatePool instantiates a pool for the pair at the given tick spacing and
// initial sqrt price. The fee rate comes from the fee-tier registry, the
// position NFT collection is created alongside.
func (r *Registry) CreatePool(creator common.Address, tokenA, tokenB tokenregistry.TokenID, tickSpacing uint32, initSqrtPrice *uint256.Int, uri string) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deps.ACL.ProtocolPaused() {
		return nil, ErrPoolIsPaused
	}
	if !r.deps.ACL.IsPoolCreateAuthority(creator) {
		return nil, ErrNoPrivilege
	}
	if tokenA == tokenB {
		return nil, ErrSameTokenType
	}
	if tickSpacing == 0 || int32(tickSpacing) > tickmath.MaxTick {
		return nil, ErrInvalidTick
	}
	if _, err := r.deps.Tokens.Get(tokenA); err != nil {
		return nil, err
	}
	if _, err := r.deps.Tokens.Get(tokenB); err != nil {
		return nil, err
	}

	key := poolKey{tokenA: tokenA, tokenB: tokenB, tickSpacing: tickSpacing}
	if _, ok := r.pools[key]; ok {
		return nil, ErrPoolAlreadyExists
	}

	feeRate, err := r.deps.FeeTiers.FeeRateForSpacing(tickSpacing)
	if err != nil {
		return nil, fmt.Errorf("resolve fee tier: %w", err)
	}

	index := r.seq
	p, err := newPool(index, tokenA, tokenB, tickSpacing, feeRate, initSqrtPrice, uri, r.deps, r.log, r.sink, r.metrics)
	if err != nil {
		return nil, err
	}
	r.seq++
	r.pools[key] = p
	r.byIndex[index] = p
	for _, tok := range []tokenregistry.TokenID{tokenA, tokenB} {
		set, ok := r.tokenPools[tok]
		if !ok {
			set = mapset.NewSet[uint64]()
			r.tokenPools[tok] = set
		}
		set.Add(index)
	}

	symbolA, _ := r.deps.Tokens.Symbol(tokenA)
	symbolB, _ := r.deps.Tokens.Symbol(tokenB)
	collection := fmt.Sprintf("%s-%s[%d] Positions", symbolA, symbolB, tickSpacing)
	r.deps.NFT.CreateCollection(index, collection)

	ev := CreatePoolEvent{
		Creator:        creator,
		PoolAddress:    p.vault.Address(),
		CollectionName: collection,
		TokenA:         tokenA,
		TokenB:         tokenB,
		TickSpacing:    tickSpacing,
	}
	r.log.Info("pool created",
		zap.Uint64("index", index),
		zap.String("collection", collection),
		zap.Uint32("tick_spacing", tickSpacing))
	r.sink.Publish(ev)
	if r.metrics != nil {
		r.metrics.EventsTotal.WithLabelValues(ev.EventName()).Inc()
	}
	return p, nil
}

// Pool looks up a pool by pair and spacing.
func (r *Registry) Pool(tokenA, tokenB tokenregistry.TokenID, tickSpacing uint32) (*Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[poolKey{tokenA: tokenA, tokenB: tokenB, tickSpacing: tickSpacing}]
	return p, ok
}

// PoolByIndex looks up a pool by its creation index.
func (r *Registry) PoolByIndex(index uint64) (*Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byIndex[index]
	return p, ok
}

// PoolsForToken returns the indices of every pool one token participates in.
func (r *Registry) PoolsForToken(token tokenregistry.TokenID) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.tokenPools[token]
	if !ok {
		return nil
	}
	return set.ToSlice()
}
