package collab

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clmm-engine-go/tokenregistry"
)

var ErrNoSuchPosition = errors.New("no NFT for that position")

// StaticAccessControl grants every capability to a fixed admin address.
type StaticAccessControl struct {
	Admin  common.Address
	Paused bool
}

func (s *StaticAccessControl) IsProtocolAuthority(a common.Address) bool         { return a == s.Admin }
func (s *StaticAccessControl) IsPoolCreateAuthority(a common.Address) bool       { return a == s.Admin }
func (s *StaticAccessControl) IsProtocolFeeClaimAuthority(a common.Address) bool { return a == s.Admin }
func (s *StaticAccessControl) AllowResetInitialPrice(a common.Address) bool      { return a == s.Admin }
func (s *StaticAccessControl) AllowSetPositionURI(a common.Address) bool         { return a == s.Admin }
func (s *StaticAccessControl) ProtocolPaused() bool                              { return s.Paused }

// MemoryPartnerRegistry keeps partner rates and accumulates received fees.
type MemoryPartnerRegistry struct {
	mu       sync.Mutex
	rates    map[string]uint64
	received map[string][]tokenregistry.Asset
}

func NewMemoryPartnerRegistry() *MemoryPartnerRegistry {
	return &MemoryPartnerRegistry{
		rates:    make(map[string]uint64),
		received: make(map[string][]tokenregistry.Asset),
	}
}

func (m *MemoryPartnerRegistry) SetRate(name string, rate uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[name] = rate
}

func (m *MemoryPartnerRegistry) RefFeeRate(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rates[name]
}

func (m *MemoryPartnerRegistry) ReceiveRefFee(name string, asset tokenregistry.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received[name] = append(m.received[name], asset)
}

// Received returns the total amount of a token handed to a partner.
func (m *MemoryPartnerRegistry) Received(name string, token tokenregistry.TokenID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, a := range m.received[name] {
		if a.Token() == token {
			total += a.Amount()
		}
	}
	return total
}

// StaticFeeTiers maps tick spacings to fee rates.
type StaticFeeTiers map[uint32]uint64

var ErrUnknownFeeTier = errors.New("no fee tier for that tick spacing")

func (s StaticFeeTiers) FeeRateForSpacing(tickSpacing uint32) (uint64, error) {
	rate, ok := s[tickSpacing]
	if !ok {
		return 0, ErrUnknownFeeTier
	}
	return rate, nil
}

// MemoryPositionNFT tracks position ownership in a map.
type MemoryPositionNFT struct {
	mu          sync.Mutex
	collections map[uint64]string
	holders     map[[2]uint64]common.Address
}

func NewMemoryPositionNFT() *MemoryPositionNFT {
	return &MemoryPositionNFT{
		collections: make(map[uint64]string),
		holders:     make(map[[2]uint64]common.Address),
	}
}

func (m *MemoryPositionNFT) CreateCollection(poolIndex uint64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[poolIndex] = name
}

func (m *MemoryPositionNFT) Mint(owner common.Address, poolIndex, positionIndex uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[[2]uint64{poolIndex, positionIndex}] = owner
}

func (m *MemoryPositionNFT) Burn(poolIndex, positionIndex uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]uint64{poolIndex, positionIndex}
	if _, ok := m.holders[key]; !ok {
		return ErrNoSuchPosition
	}
	delete(m.holders, key)
	return nil
}

func (m *MemoryPositionNFT) PositionName(poolIndex, positionIndex uint64) string {
	return fmt.Sprintf("Pool %d Position %d", poolIndex, positionIndex)
}

func (m *MemoryPositionNFT) HolderOf(poolIndex, positionIndex uint64) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, ok := m.holders[[2]uint64{poolIndex, positionIndex}]
	if !ok {
		return common.Address{}, ErrNoSuchPosition
	}
	return holder, nil
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

func (SystemClock) NowSeconds() uint64 { return uint64(time.Now().Unix()) }

// ManualClock is a settable clock for tests.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(now uint64) *ManualClock { return &ManualClock{now: now} }

func (c *ManualClock) NowSeconds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}
