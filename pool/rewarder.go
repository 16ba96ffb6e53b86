package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// RewarderCount is the fixed number of rewarder slots a pool can hold.
const RewarderCount = 3

// secondsPerDay bounds emission changes: the vault must hold at least one
// day of the new emission rate.
const secondsPerDay = 86_400

// Rewarder is one liquidity-mining slot. Emissions are Q64.64 token units
// per second, distributed pro rata to active liquidity through the growth
// accumulator.
type Rewarder struct {
	Token              tokenregistry.TokenID
	Authority          common.Address
	PendingAuthority   common.Address
	EmissionsPerSecond *uint256.Int
	GrowthGlobal       *uint256.Int
}

// updateRewarders advances every rewarder's growth accumulator to now. It
// runs at the start of each state-mutating operation, before any liquidity
// change, so an operation's own liquidity never earns its own emissions.
func (p *Pool) updateRewarders() error {
	now := p.deps.Clock.NowSeconds()
	if now < p.rewarderLastUpdate {
		return ErrInvalidTime
	}
	if now == p.rewarderLastUpdate || p.liquidity.IsZero() {
		p.rewarderLastUpdate = now
		return nil
	}

	dt := uint256.NewInt(now - p.rewarderLastUpdate)
	for _, r := range p.rewarders {
		if r.EmissionsPerSecond.IsZero() {
			continue
		}
		delta := new(uint256.Int)
		if err := fullmath.MulDivFloor(delta, dt, r.EmissionsPerSecond, p.liquidity); err != nil {
			return err
		}
		fullmath.WrappingAddU128(r.GrowthGlobal, r.GrowthGlobal, delta)
	}
	p.rewarderLastUpdate = now
	return nil
}

// DepositReward funds the pool vault with reward tokens. Anyone may top a
// rewarder up; emission changes check this balance.
func (p *Pool) DepositReward(asset tokenregistry.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vault.Deposit(asset)
}

// InitializeRewarder appends a rewarder slot. Slots are permanent once
// added; emission starts at zero.
func (p *Pool) InitializeRewarder(caller common.Address, token tokenregistry.TokenID, authority common.Address) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return 0, err
	}
	if !p.deps.ACL.IsProtocolAuthority(caller) {
		return 0, ErrNoPrivilege
	}
	if len(p.rewarders) >= RewarderCount {
		return 0, ErrInvalidRewardIndex
	}
	if err := p.updateRewarders(); err != nil {
		return 0, err
	}

	p.rewarders = append(p.rewarders, &Rewarder{
		Token:              token,
		Authority:          authority,
		EmissionsPerSecond: new(uint256.Int),
		GrowthGlobal:       new(uint256.Int),
	})
	return len(p.rewarders) - 1, nil
}

// UpdateEmission sets a rewarder's per-second emission. The pool vault must
// already hold at least one day's worth of the reward token at the new rate.
func (p *Pool) UpdateEmission(caller common.Address, rewarderIndex int, emissionsPerSecond *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	r, err := p.rewarderAt(rewarderIndex)
	if err != nil {
		return err
	}
	if caller != r.Authority {
		return ErrRewardAuth
	}
	if err := p.updateRewarders(); err != nil {
		return err
	}

	dayNeed := new(uint256.Int)
	if err := fullmath.MulShr(dayNeed, emissionsPerSecond, uint256.NewInt(secondsPerDay), 64); err != nil {
		return err
	}
	need, err := fullmath.CastU64(dayNeed)
	if err != nil || p.vault.Balance(r.Token) < need {
		return ErrRewardAmountInsufficient
	}

	r.EmissionsPerSecond = new(uint256.Int).Set(emissionsPerSecond)
	p.emit(UpdateEmissionEvent{
		Pool:               p.index,
		RewarderIndex:      rewarderIndex,
		Token:              r.Token,
		EmissionsPerSecond: emissionsPerSecond.Dec(),
	})
	return nil
}

// TransferRewardAuthority begins the two-phase authority handover.
func (p *Pool) TransferRewardAuthority(caller common.Address, rewarderIndex int, newAuthority common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	r, err := p.rewarderAt(rewarderIndex)
	if err != nil {
		return err
	}
	if caller != r.Authority {
		return ErrRewardAuth
	}
	if err := p.updateRewarders(); err != nil {
		return err
	}

	r.PendingAuthority = newAuthority
	p.emit(TransferRewardAuthEvent{
		Pool:          p.index,
		RewarderIndex: rewarderIndex,
		OldAuthority:  r.Authority,
		NewAuthority:  newAuthority,
	})
	return nil
}

// AcceptRewardAuthority completes the handover from the pending address.
func (p *Pool) AcceptRewardAuthority(caller common.Address, rewarderIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkMutable(); err != nil {
		return err
	}
	r, err := p.rewarderAt(rewarderIndex)
	if err != nil {
		return err
	}
	if caller != r.PendingAuthority || caller == (common.Address{}) {
		return ErrRewardAuth
	}
	if err := p.updateRewarders(); err != nil {
		return err
	}

	r.Authority = caller
	r.PendingAuthority = common.Address{}
	p.emit(AcceptRewardAuthEvent{
		Pool:          p.index,
		RewarderIndex: rewarderIndex,
		Authority:     caller,
	})
	return nil
}

func (p *Pool) rewarderAt(index int) (*Rewarder, error) {
	if index < 0 || index >= len(p.rewarders) {
		return nil, ErrInvalidRewardIndex
	}
	return p.rewarders[index], nil
}
