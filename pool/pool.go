// Package pool implements the concentrated-liquidity pool engine: position
// accounting, swaps across active ticks, fee and reward accrual, and the
// must-use settlement receipts.
//
// Each exported operation is atomic. It either commits completely or
// returns an error with no state change observable; operations against the
// same pool are serialised, different pools are independent.
package pool

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
	"github.com/defistate/clmm-engine-go/calculator/liquiditymath"
	"github.com/defistate/clmm-engine-go/calculator/tickmath"
	"github.com/defistate/clmm-engine-go/collab"
	"github.com/defistate/clmm-engine-go/tickdirectory"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

const (
	// MaxFeeRate caps the swap fee at 20% over the 1_000_000 denominator.
	MaxFeeRate = 200_000
	// DefaultProtocolFeeRate is the protocol's share of swap fees in basis
	// points over 10_000.
	DefaultProtocolFeeRate = 2000
)

// Deps bundles the collaborators one pool consumes.
type Deps struct {
	ACL      collab.AccessControl
	Partners collab.PartnerRegistry
	FeeTiers collab.FeeTierRegistry
	NFT      collab.PositionNFT
	Clock    collab.Clock
	Tokens   *tokenregistry.Registry
}

// Pool is one (tokenA, tokenB, tickSpacing) market.
type Pool struct {
	mu sync.Mutex

	index       uint64
	tokenA      tokenregistry.TokenID
	tokenB      tokenregistry.TokenID
	tickSpacing uint32
	uri         string
	paused      bool

	feeRate         uint64
	protocolFeeRate uint64

	sqrtPrice   *uint256.Int
	tickCurrent int32
	liquidity   *uint256.Int

	feeGrowthGlobalA *uint256.Int
	feeGrowthGlobalB *uint256.Int
	feeProtocolA     uint64
	feeProtocolB     uint64

	rewarders          []*Rewarder
	rewarderLastUpdate uint64

	positions   map[uint64]*Position
	positionSeq uint64
	ticks       map[int32]*Tick
	directory   *tickdirectory.Directory

	vault               *tokenregistry.Vault
	outstandingReceipts int

	deps    Deps
	log     *zap.Logger
	sink    EventSink
	metrics *Metrics
}

func newPool(index uint64, tokenA, tokenB tokenregistry.TokenID, tickSpacing uint32, feeRate uint64, initSqrtPrice *uint256.Int, uri string, deps Deps, log *zap.Logger, sink EventSink, metrics *Metrics) (*Pool, error) {
	tick, err := tickmath.GetTickAtSqrtPrice(initSqrtPrice)
	if err != nil {
		return nil, ErrInvalidSqrtPrice
	}
	if feeRate > MaxFeeRate {
		return nil, ErrInvalidFeeRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Pool{
		index:              index,
		tokenA:             tokenA,
		tokenB:             tokenB,
		tickSpacing:        tickSpacing,
		uri:                uri,
		feeRate:            feeRate,
		protocolFeeRate:    DefaultProtocolFeeRate,
		sqrtPrice:          new(uint256.Int).Set(initSqrtPrice),
		tickCurrent:        tick,
		liquidity:          new(uint256.Int),
		feeGrowthGlobalA:   new(uint256.Int),
		feeGrowthGlobalB:   new(uint256.Int),
		positions:          make(map[uint64]*Position),
		positionSeq:        1,
		ticks:              make(map[int32]*Tick),
		directory:          tickdirectory.New(tickSpacing),
		vault:              tokenregistry.NewVault(poolAddress(index)),
		rewarderLastUpdate: deps.Clock.NowSeconds(),
		deps:               deps,
		log:                log,
		sink:               sink,
		metrics:            metrics,
	}, nil
}

// poolAddress derives a synthetic address for the pool vault from the pool
// index.
func poolAddress(index uint64) common.Address {
	var addr common.Address
	for i := 0; i < 8; i++ {
		addr[19-i] = byte(index >> (8 * i))
	}
	addr[0] = 0xcc
	return addr
}

// checkMutable gates every state-mutating entry point: no unsettled
// receipt, pool not paused, protocol not paused.
func (p *Pool) checkMutable() error {
	if p.outstandingReceipts > 0 {
		return ErrReceiptOutstanding
	}
	if p.paused || p.deps.ACL.ProtocolPaused() {
		return ErrPoolIsPaused
	}
	return nil
}

func (p *Pool) emit(e Event) {
	p.log.Debug("pool event", zap.String("event", e.EventName()), zap.Uint64("pool", p.index), zap.Any("payload", e))
	if p.metrics != nil {
		p.metrics.EventsTotal.WithLabelValues(e.EventName()).Inc()
	}
	p.sink.Publish(e)
}

// --- Accessors ---

func (p *Pool) Index() uint64                 { return p.index }
func (p *Pool) TokenA() tokenregistry.TokenID { return p.tokenA }
func (p *Pool) TokenB() tokenregistry.TokenID { return p.tokenB }
func (p *Pool) TickSpacing() uint32           { return p.tickSpacing }
func (p *Pool) URI() string                   { return p.uri }

func (p *Pool) FeeRate() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeRate
}

func (p *Pool) SqrtPrice() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.sqrtPrice)
}

func (p *Pool) TickCurrent() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickCurrent
}

func (p *Pool) Liquidity() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.liquidity)
}

func (p *Pool) FeeGrowthGlobal() (a, b *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.feeGrowthGlobalA), new(uint256.Int).Set(p.feeGrowthGlobalB)
}

func (p *Pool) ProtocolFees() (a, b uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeProtocolA, p.feeProtocolB
}

func (p *Pool) VaultBalances() (a, b uint64) {
	return p.vault.Balance(p.tokenA), p.vault.Balance(p.tokenB)
}

// Tick returns a copy of the tick record at index, if present.
func (p *Pool) Tick(index int32) (Tick, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.ticks[index]
	if !ok {
		return Tick{}, false
	}
	return *cloneTick(t), true
}

// --- Position lifecycle ---

// OpenPosition creates an empty position over [tickLower, tickUpper) and
// mints its ownership NFT to the caller.
func (p *Pool) OpenPosition(caller common.Address, tickLower, tickUpper int32) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return 0, err
	}
	if tickLower >= tickUpper ||
		!tickmath.IsValidTick(tickLower, p.tickSpacing) ||
		!tickmath.IsValidTick(tickUpper, p.tickSpacing) {
		return 0, ErrInvalidTick
	}

	index := p.positionSeq
	p.positionSeq++
	p.positions[index] = newPosition(p.index, index, tickLower, tickUpper)
	p.deps.NFT.Mint(caller, p.index, index)

	p.emit(OpenPositionEvent{
		User:      caller,
		Pool:      p.index,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Index:     index,
	})
	return index, nil
}

// ClosePosition drops an emptied position and burns its NFT. It refuses
// while any liquidity, fee or reward remains unclaimed.
func (p *Pool) ClosePosition(caller common.Address, index uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return err
	}
	if err := p.updateRewarders(); err != nil {
		return err
	}
	if err := p.refreshPosition(pos); err != nil {
		return err
	}
	if !pos.isEmpty() {
		return ErrPoolLiquidityIsNotZero
	}

	delete(p.positions, index)
	if err := p.deps.NFT.Burn(p.index, index); err != nil {
		return err
	}
	p.emit(ClosePositionEvent{User: caller, Pool: p.index, Index: index})
	return nil
}

// ownedPosition resolves a position and authorises the caller as the
// holder of its NFT.
func (p *Pool) ownedPosition(caller common.Address, index uint64) (*Position, error) {
	pos, ok := p.positions[index]
	if !ok {
		return nil, ErrPositionNotExist
	}
	holder, err := p.deps.NFT.HolderOf(p.index, index)
	if err != nil || holder != caller {
		return nil, ErrPositionOwner
	}
	return pos, nil
}

// --- Liquidity ---

// AddLiquidity commits deltaL more liquidity to a position. It returns a
// receipt for the token amounts owed, which must be settled through
// RepayAddLiquidity before the pool accepts another state-changing operation
// (see receipt.go for the exception).
func (p *Pool) AddLiquidity(caller common.Address, index uint64, deltaL *uint256.Int) (*AddLiquidityReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return nil, err
	}
	if deltaL == nil || deltaL.IsZero() {
		return nil, ErrInvalidDeltaLiquidity
	}
	if !fullmath.IsU128(deltaL) {
		return nil, ErrLiquidityOverflow
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return nil, err
	}
	if err := p.updateRewarders(); err != nil {
		return nil, err
	}

	amountA, amountB, err := p.applyAddLiquidity(pos, deltaL)
	if err != nil {
		return nil, err
	}

	p.outstandingReceipts++
	p.emit(AddLiquidityEvent{
		Pool:      p.index,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		Liquidity: deltaL.Dec(),
		AmountA:   amountA,
		AmountB:   amountB,
		Index:     index,
	})
	return &AddLiquidityReceipt{pool: p, positionIndex: index, amountA: amountA, amountB: amountB}, nil
}

// AddLiquidityFixToken fixes one token amount and derives the liquidity
// delta from it, then proceeds exactly like AddLiquidity.
func (p *Pool) AddLiquidityFixToken(caller common.Address, index uint64, amount uint64, fixA bool) (*AddLiquidityReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrAmountIncorrect
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return nil, err
	}
	if err := p.updateRewarders(); err != nil {
		return nil, err
	}

	deltaL, err := p.liquidityFromFixedToken(pos, amount, fixA)
	if err != nil {
		return nil, err
	}
	if deltaL.IsZero() {
		return nil, ErrInvalidDeltaLiquidity
	}

	amountA, amountB, err := p.applyAddLiquidity(pos, deltaL)
	if err != nil {
		return nil, err
	}
	// The fixed side may round below the requested amount but never above.
	if fixA && amountA > amount || !fixA && amountB > amount {
		return nil, ErrAmountIncorrect
	}

	p.outstandingReceipts++
	p.emit(AddLiquidityEvent{
		Pool:      p.index,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		Liquidity: deltaL.Dec(),
		AmountA:   amountA,
		AmountB:   amountB,
		Index:     index,
	})
	return &AddLiquidityReceipt{pool: p, positionIndex: index, amountA: amountA, amountB: amountB}, nil
}

// liquidityFromFixedToken inverts the three-region amount formula for one
// fixed token amount at the current price.
func (p *Pool) liquidityFromFixedToken(pos *Position, amount uint64, fixA bool) (*uint256.Int, error) {
	priceLower, err := tickmath.GetSqrtPriceAtTick(pos.TickLower)
	if err != nil {
		return nil, err
	}
	priceUpper, err := tickmath.GetSqrtPriceAtTick(pos.TickUpper)
	if err != nil {
		return nil, err
	}

	switch {
	case p.tickCurrent < pos.TickLower:
		if !fixA {
			return nil, ErrAmountIncorrect
		}
		return liquiditymath.LiquidityFromAmountA(amount, priceLower, priceUpper)
	case p.tickCurrent >= pos.TickUpper:
		if fixA {
			return nil, ErrAmountIncorrect
		}
		return liquiditymath.LiquidityFromAmountB(amount, priceLower, priceUpper)
	case fixA:
		return liquiditymath.LiquidityFromAmountA(amount, p.sqrtPrice, priceUpper)
	default:
		return liquiditymath.LiquidityFromAmountB(amount, priceLower, p.sqrtPrice)
	}
}

// applyAddLiquidity settles accruals, credits the position and its endpoint
// ticks, and bumps active liquidity when the range is live. Caller must
// hold the lock and have refreshed rewarders.
func (p *Pool) applyAddLiquidity(pos *Position, deltaL *uint256.Int) (amountA, amountB uint64, err error) {
	// Refresh first so accruals are measured against the prior liquidity.
	// A position without liquidity has nothing to settle; if an endpoint tick
	// is missing, its snapshots are taken below once both ticks exist.
	wasEmpty := pos.Liquidity.IsZero()
	if err = p.refreshPosition(pos); err != nil {
		return 0, 0, err
	}
	amountA, amountB, err = liquiditymath.AmountsForLiquidity(p.sqrtPrice, p.tickCurrent, pos.TickLower, pos.TickUpper, deltaL, true)
	if err != nil {
		return 0, 0, err
	}
	if _, err = p.upsertTick(pos.TickLower, deltaL, true); err != nil {
		return 0, 0, err
	}
	if _, err = p.upsertTick(pos.TickUpper, deltaL, false); err != nil {
		return 0, 0, err
	}
	if wasEmpty {
		// Both endpoint ticks exist now; with zero liquidity this only
		// re-snapshots the inside growth.
		if err = p.refreshPosition(pos); err != nil {
			return 0, 0, err
		}
	}
	if err = fullmath.CheckedAddU128(pos.Liquidity, pos.Liquidity, deltaL); err != nil {
		return 0, 0, ErrLiquidityOverflow
	}
	if pos.TickLower <= p.tickCurrent && p.tickCurrent < pos.TickUpper {
		if err = fullmath.CheckedAddU128(p.liquidity, p.liquidity, deltaL); err != nil {
			return 0, 0, ErrLiquidityOverflow
		}
	}
	return amountA, amountB, nil
}

// RemoveLiquidity withdraws deltaL liquidity from a position and pays out
// the backing token amounts from the pool vault.
func (p *Pool) RemoveLiquidity(caller common.Address, index uint64, deltaL *uint256.Int) (tokenregistry.Asset, tokenregistry.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	zeroA, zeroB := tokenregistry.Zero(p.tokenA), tokenregistry.Zero(p.tokenB)
	if err := p.checkMutable(); err != nil {
		return zeroA, zeroB, err
	}
	if deltaL == nil || deltaL.IsZero() {
		return zeroA, zeroB, ErrInvalidDeltaLiquidity
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return zeroA, zeroB, err
	}
	if pos.Liquidity.Lt(deltaL) {
		return zeroA, zeroB, ErrLiquidityUnderflow
	}
	if err := p.updateRewarders(); err != nil {
		return zeroA, zeroB, err
	}
	if err := p.refreshPosition(pos); err != nil {
		return zeroA, zeroB, err
	}

	amountA, amountB, err := liquiditymath.AmountsForLiquidity(p.sqrtPrice, p.tickCurrent, pos.TickLower, pos.TickUpper, deltaL, false)
	if err != nil {
		return zeroA, zeroB, err
	}

	pos.Liquidity.Sub(pos.Liquidity, deltaL)
	if err := p.debitTick(pos.TickLower, deltaL, true); err != nil {
		return zeroA, zeroB, err
	}
	if err := p.debitTick(pos.TickUpper, deltaL, false); err != nil {
		return zeroA, zeroB, err
	}

	if pos.TickLower <= p.tickCurrent && p.tickCurrent < pos.TickUpper {
		if err := fullmath.CheckedSubU128(p.liquidity, p.liquidity, deltaL); err != nil {
			return zeroA, zeroB, ErrLiquidityUnderflow
		}
	}

	assetA, err := p.vault.Withdraw(p.tokenA, amountA)
	if err != nil {
		return zeroA, zeroB, err
	}
	assetB, err := p.vault.Withdraw(p.tokenB, amountB)
	if err != nil {
		return zeroA, zeroB, err
	}

	p.emit(RemoveLiquidityEvent{
		Pool:      p.index,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		Liquidity: deltaL.Dec(),
		AmountA:   amountA,
		AmountB:   amountB,
		Index:     index,
	})
	return assetA, assetB, nil
}

// --- Collection ---

// CollectFee pays out a position's accrued swap fees. With recalculate the
// accruals are refreshed first; without it the stored owed amounts are paid
// as-is.
func (p *Pool) CollectFee(caller common.Address, index uint64, recalculate bool) (tokenregistry.Asset, tokenregistry.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	zeroA, zeroB := tokenregistry.Zero(p.tokenA), tokenregistry.Zero(p.tokenB)
	if err := p.checkMutable(); err != nil {
		return zeroA, zeroB, err
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return zeroA, zeroB, err
	}
	if recalculate {
		if err := p.updateRewarders(); err != nil {
			return zeroA, zeroB, err
		}
		if err := p.refreshPosition(pos); err != nil {
			return zeroA, zeroB, err
		}
	}

	amountA, amountB := pos.FeeOwedA, pos.FeeOwedB
	pos.FeeOwedA, pos.FeeOwedB = 0, 0

	assetA, err := p.vault.Withdraw(p.tokenA, amountA)
	if err != nil {
		return zeroA, zeroB, err
	}
	assetB, err := p.vault.Withdraw(p.tokenB, amountB)
	if err != nil {
		return zeroA, zeroB, err
	}

	p.emit(CollectFeeEvent{Pool: p.index, Index: index, AmountA: amountA, AmountB: amountB})
	return assetA, assetB, nil
}

// CollectRewarder pays out one rewarder slot's accrued emissions for a
// position.
func (p *Pool) CollectRewarder(caller common.Address, index uint64, rewarderIndex int, recalculate bool) (tokenregistry.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return tokenregistry.Asset{}, err
	}
	r, err := p.rewarderAt(rewarderIndex)
	if err != nil {
		return tokenregistry.Asset{}, err
	}
	pos, err := p.ownedPosition(caller, index)
	if err != nil {
		return tokenregistry.Asset{}, err
	}
	if recalculate {
		if err := p.updateRewarders(); err != nil {
			return tokenregistry.Asset{}, err
		}
		if err := p.refreshPosition(pos); err != nil {
			return tokenregistry.Asset{}, err
		}
	}

	amount := pos.Rewards[rewarderIndex].AmountOwed
	asset, err := p.vault.Withdraw(r.Token, amount)
	if err != nil {
		return tokenregistry.Asset{}, ErrRewardAmountInsufficient
	}
	pos.Rewards[rewarderIndex].AmountOwed = 0

	p.emit(CollectRewardEvent{Pool: p.index, Index: index, RewarderIndex: rewarderIndex, Amount: amount})
	return asset, nil
}

// CollectProtocolFee drains the protocol's accrued fee share.
func (p *Pool) CollectProtocolFee(caller common.Address) (tokenregistry.Asset, tokenregistry.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	zeroA, zeroB := tokenregistry.Zero(p.tokenA), tokenregistry.Zero(p.tokenB)
	if err := p.checkMutable(); err != nil {
		return zeroA, zeroB, err
	}
	if !p.deps.ACL.IsProtocolFeeClaimAuthority(caller) {
		return zeroA, zeroB, ErrNoPrivilege
	}

	amountA, amountB := p.feeProtocolA, p.feeProtocolB
	p.feeProtocolA, p.feeProtocolB = 0, 0

	assetA, err := p.vault.Withdraw(p.tokenA, amountA)
	if err != nil {
		return zeroA, zeroB, err
	}
	assetB, err := p.vault.Withdraw(p.tokenB, amountB)
	if err != nil {
		return zeroA, zeroB, err
	}

	p.emit(CollectProtocolFeeEvent{Pool: p.index, AmountA: amountA, AmountB: amountB})
	return assetA, assetB, nil
}

// --- Admin ---

// UpdateFeeRate changes the swap fee rate, protocol authority only.
func (p *Pool) UpdateFeeRate(caller common.Address, feeRate uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	if !p.deps.ACL.IsProtocolAuthority(caller) {
		return ErrNoPrivilege
	}
	if feeRate > MaxFeeRate {
		return ErrInvalidFeeRate
	}

	old := p.feeRate
	p.feeRate = feeRate
	p.emit(UpdateFeeRateEvent{Pool: p.index, OldFeeRate: old, NewFeeRate: feeRate})
	return nil
}

// SetProtocolFeeRate changes the protocol's share of swap fees.
func (p *Pool) SetProtocolFeeRate(caller common.Address, rate uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	if !p.deps.ACL.IsProtocolAuthority(caller) {
		return ErrNoPrivilege
	}
	if rate > protocolFeeDenominator {
		return ErrInvalidFeeRate
	}
	p.protocolFeeRate = rate
	return nil
}

// SetPause flips the pool-level pause switch.
func (p *Pool) SetPause(caller common.Address, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outstandingReceipts > 0 {
		return ErrReceiptOutstanding
	}
	if !p.deps.ACL.IsProtocolAuthority(caller) {
		return ErrNoPrivilege
	}
	p.paused = paused
	return nil
}

// UpdatePoolURI replaces the pool's metadata URI.
func (p *Pool) UpdatePoolURI(caller common.Address, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	if !p.deps.ACL.AllowSetPositionURI(caller) {
		return ErrNoPrivilege
	}
	if uri == "" {
		return ErrAmountIncorrect
	}
	p.uri = uri
	return nil
}

// ResetInitPrice re-seeds the pool price before any liquidity exists. No
// ungated variant of this operation is provided.
func (p *Pool) ResetInitPrice(caller common.Address, sqrtPrice *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	if !p.deps.ACL.AllowResetInitialPrice(caller) {
		return ErrNoPrivilege
	}
	if len(p.positions) != 0 || !p.liquidity.IsZero() {
		return ErrPoolLiquidityIsNotZero
	}
	tick, err := tickmath.GetTickAtSqrtPrice(sqrtPrice)
	if err != nil {
		return ErrInvalidSqrtPrice
	}

	p.sqrtPrice.Set(sqrtPrice)
	p.tickCurrent = tick
	return nil
}
