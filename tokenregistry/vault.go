package tokenregistry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Vault holds token balances on behalf of one owner. The pool engine keeps
// its vault unexported, so withdrawal is only reachable through pool
// operations that maintain the solvency invariant.
type Vault struct {
	mu       sync.Mutex
	address  common.Address
	balances map[TokenID]uint64
}

func NewVault(address common.Address) *Vault {
	return &Vault{address: address, balances: make(map[TokenID]uint64)}
}

func (v *Vault) Address() common.Address { return v.address }

func (v *Vault) Balance(id TokenID) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[id]
}

func (v *Vault) Deposit(a Asset) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[a.token] += a.amount
}

// Clone returns an independent vault with the same balances. Used by
// simulations that must not touch the live vault.
func (v *Vault) Clone() *Vault {
	v.mu.Lock()
	defer v.mu.Unlock()
	balances := make(map[TokenID]uint64, len(v.balances))
	for id, amount := range v.balances {
		balances[id] = amount
	}
	return &Vault{address: v.address, balances: balances}
}

func (v *Vault) Withdraw(id TokenID, amount uint64) (Asset, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balances[id]
	if bal < amount {
		return Asset{}, fmt.Errorf("withdraw %d of token %d with balance %d: %w", amount, id, bal, ErrBalanceTooLow)
	}
	v.balances[id] = bal - amount
	return Asset{token: id, amount: amount}, nil
}
