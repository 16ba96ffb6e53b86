package tokenregistry

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenID is the opaque handle the pool engine uses for a fungible asset.
// The registry resolves it to metadata; the engine never inspects it.
type TokenID uint64

// Token is a safe, structured representation of a token's data for external use.
type Token struct {
	ID       TokenID        `json:"id"`
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

var (
	ErrUnknownToken  = errors.New("token is not registered")
	ErrTokenExists   = errors.New("token id already registered")
	ErrBalanceTooLow = errors.New("vault balance is too low")
)

// Registry resolves token handles to metadata.
type Registry struct {
	mu     sync.RWMutex
	tokens map[TokenID]Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[TokenID]Token)}
}

func (r *Registry) Register(t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[t.ID]; ok {
		return ErrTokenExists
	}
	r.tokens[t.ID] = t
	return nil
}

func (r *Registry) Get(id TokenID) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[id]
	if !ok {
		return Token{}, ErrUnknownToken
	}
	return t, nil
}

func (r *Registry) Symbol(id TokenID) (string, error) {
	t, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return t.Symbol, nil
}

// Mint issues a fresh asset. Issuance authority sits with the token module,
// outside the pool engine; the engine only ever moves assets it received.
func (r *Registry) Mint(id TokenID, amount uint64) Asset {
	return Asset{token: id, amount: amount}
}
