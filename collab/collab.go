// Package collab declares the interfaces the pool engine consumes from its
// collaborators: access control, the partner and fee-tier registries, the
// position NFT wrapper, and the clock. Reference in-memory implementations
// live alongside for tests and the console.
package collab

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// AccessControl answers the capability predicates the engine gates
// privileged operations on.
type AccessControl interface {
	IsProtocolAuthority(common.Address) bool
	IsPoolCreateAuthority(common.Address) bool
	IsProtocolFeeClaimAuthority(common.Address) bool
	AllowResetInitialPrice(common.Address) bool
	AllowSetPositionURI(common.Address) bool
	// ProtocolPaused is the protocol-level pause switch, checked in addition
	// to the per-pool one.
	ProtocolPaused() bool
}

// PartnerRegistry resolves a partner name to its referral fee share and
// receives the referral cut of protocol fees.
type PartnerRegistry interface {
	// RefFeeRate returns the partner's share of the protocol fee in basis
	// points over a denominator of 10_000. Unknown partners earn zero.
	RefFeeRate(name string) uint64
	ReceiveRefFee(name string, asset tokenregistry.Asset)
}

// FeeTierRegistry maps a tick spacing to the swap fee rate pools of that
// spacing charge.
type FeeTierRegistry interface {
	FeeRateForSpacing(tickSpacing uint32) (uint64, error)
}

// PositionNFT mints and burns the ownership tokens for positions. The
// engine authorises position operations by asking who holds the NFT.
type PositionNFT interface {
	CreateCollection(poolIndex uint64, name string)
	Mint(owner common.Address, poolIndex, positionIndex uint64)
	Burn(poolIndex, positionIndex uint64) error
	PositionName(poolIndex, positionIndex uint64) string
	HolderOf(poolIndex, positionIndex uint64) (common.Address, error)
}

// Clock supplies wall-clock seconds, non-decreasing between consecutive
// reads within a pool.
type Clock interface {
	NowSeconds() uint64
}
