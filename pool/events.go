package pool

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// Event is implemented by every outbound event the engine emits.
type Event interface {
	EventName() string
}

// EventSink receives events as operations commit. The engine never blocks
// on a sink; implementations must return promptly.
type EventSink interface {
	Publish(Event)
}

// CollectorSink buffers events in memory, mainly for tests and the console.
type CollectorSink struct {
	Events []Event
}

func (c *CollectorSink) Publish(e Event) { c.Events = append(c.Events, e) }

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Publish(Event) {}

type CreatePoolEvent struct {
	Creator        common.Address        `json:"creator"`
	PoolAddress    common.Address        `json:"pool_address"`
	CollectionName string                `json:"collection_name"`
	TokenA         tokenregistry.TokenID `json:"token_a"`
	TokenB         tokenregistry.TokenID `json:"token_b"`
	TickSpacing    uint32                `json:"tick_spacing"`
}

func (CreatePoolEvent) EventName() string { return "CreatePool" }

type OpenPositionEvent struct {
	User      common.Address `json:"user"`
	Pool      uint64         `json:"pool"`
	TickLower int32          `json:"tick_lower"`
	TickUpper int32          `json:"tick_upper"`
	Index     uint64         `json:"index"`
}

func (OpenPositionEvent) EventName() string { return "OpenPosition" }

type ClosePositionEvent struct {
	User  common.Address `json:"user"`
	Pool  uint64         `json:"pool"`
	Index uint64         `json:"index"`
}

func (ClosePositionEvent) EventName() string { return "ClosePosition" }

type AddLiquidityEvent struct {
	Pool      uint64 `json:"pool"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	AmountA   uint64 `json:"amount_a"`
	AmountB   uint64 `json:"amount_b"`
	Index     uint64 `json:"index"`
}

func (AddLiquidityEvent) EventName() string { return "AddLiquidity" }

type RemoveLiquidityEvent struct {
	Pool      uint64 `json:"pool"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	AmountA   uint64 `json:"amount_a"`
	AmountB   uint64 `json:"amount_b"`
	Index     uint64 `json:"index"`
}

func (RemoveLiquidityEvent) EventName() string { return "RemoveLiquidity" }

type SwapEvent struct {
	AToB         bool           `json:"a_to_b"`
	Pool         uint64         `json:"pool"`
	SwapFrom     common.Address `json:"swap_from"`
	Partner      string         `json:"partner"`
	AmountIn     uint64         `json:"amount_in"`
	AmountOut    uint64         `json:"amount_out"`
	RefAmount    uint64         `json:"ref_amount"`
	FeeAmount    uint64         `json:"fee_amount"`
	VaultAAmount uint64         `json:"vault_a_amount"`
	VaultBAmount uint64         `json:"vault_b_amount"`
}

func (SwapEvent) EventName() string { return "Swap" }

type CollectFeeEvent struct {
	Pool    uint64 `json:"pool"`
	Index   uint64 `json:"index"`
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
}

func (CollectFeeEvent) EventName() string { return "CollectFee" }

type CollectProtocolFeeEvent struct {
	Pool    uint64 `json:"pool"`
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
}

func (CollectProtocolFeeEvent) EventName() string { return "CollectProtocolFee" }

type CollectRewardEvent struct {
	Pool          uint64 `json:"pool"`
	Index         uint64 `json:"index"`
	RewarderIndex int    `json:"rewarder_index"`
	Amount        uint64 `json:"amount"`
}

func (CollectRewardEvent) EventName() string { return "CollectReward" }

type UpdateFeeRateEvent struct {
	Pool       uint64 `json:"pool"`
	OldFeeRate uint64 `json:"old_fee_rate"`
	NewFeeRate uint64 `json:"new_fee_rate"`
}

func (UpdateFeeRateEvent) EventName() string { return "UpdateFeeRate" }

type UpdateEmissionEvent struct {
	Pool               uint64                `json:"pool"`
	RewarderIndex      int                   `json:"rewarder_index"`
	Token              tokenregistry.TokenID `json:"token"`
	EmissionsPerSecond string                `json:"emissions_per_second"`
}

func (UpdateEmissionEvent) EventName() string { return "UpdateEmission" }

type TransferRewardAuthEvent struct {
	Pool          uint64         `json:"pool"`
	RewarderIndex int            `json:"rewarder_index"`
	OldAuthority  common.Address `json:"old_authority"`
	NewAuthority  common.Address `json:"new_authority"`
}

func (TransferRewardAuthEvent) EventName() string { return "TransferRewardAuth" }

type AcceptRewardAuthEvent struct {
	Pool          uint64         `json:"pool"`
	RewarderIndex int            `json:"rewarder_index"`
	Authority     common.Address `json:"authority"`
}

func (AcceptRewardAuthEvent) EventName() string { return "AcceptRewardAuth" }
