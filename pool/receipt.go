package pool

import (
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

// The receipts below are the engine's reentrancy discipline. Their only
// producers are AddLiquidity/AddLiquidityFixToken and FlashSwap, their only
// consumers the matching Repay calls. While a receipt is outstanding every
// other state-changing entry point on the pool except DepositReward refuses
// with ErrReceiptOutstanding, so an operation that leaves the vault
// transiently short cannot commit without paying its debt in the same
// transaction. Read-only queries, including CalculateSwapResult, still answer.

// AddLiquidityReceipt records the token amounts a liquidity add owes the
// pool vault.
type AddLiquidityReceipt struct {
	pool          *Pool
	positionIndex uint64
	amountA       uint64
	amountB       uint64
	settled       bool
}

// Owed returns the amounts the receipt demands.
func (r *AddLiquidityReceipt) Owed() (amountA, amountB uint64) {
	return r.amountA, r.amountB
}

// RepayAddLiquidity settles an add-liquidity receipt. Both assets must
// carry exactly the owed amounts.
func (p *Pool) RepayAddLiquidity(assetA, assetB tokenregistry.Asset, r *AddLiquidityReceipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r == nil || r.pool != p {
		return ErrAmountIncorrect
	}
	if r.settled {
		return ErrReceiptSettled
	}
	if assetA.Token() != p.tokenA || assetB.Token() != p.tokenB {
		return ErrAmountIncorrect
	}
	if assetA.Amount() != r.amountA || assetB.Amount() != r.amountB {
		return ErrAmountIncorrect
	}

	p.vault.Deposit(assetA)
	p.vault.Deposit(assetB)
	r.settled = true
	p.outstandingReceipts--
	return nil
}

// FlashSwapReceipt records the input-side debt of a flash swap, including
// the referral fee that must be routed to the partner on repayment.
type FlashSwapReceipt struct {
	pool         *Pool
	payAmount    uint64
	refFeeAmount uint64
	aToB         bool
	partner      string
	settled      bool
}

func (r *FlashSwapReceipt) PayAmount() uint64    { return r.payAmount }
func (r *FlashSwapReceipt) RefFeeAmount() uint64 { return r.refFeeAmount }
func (r *FlashSwapReceipt) AToB() bool           { return r.aToB }
func (r *FlashSwapReceipt) Partner() string      { return r.partner }

// RepayFlashSwap settles a flash swap. The input-side asset must carry
// exactly the receipt's pay amount; the referral fee is skimmed off the top
// for the partner and the remainder lands in the pool vault. The other
// side's asset must be zero and is destroyed.
func (p *Pool) RepayFlashSwap(assetA, assetB tokenregistry.Asset, r *FlashSwapReceipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r == nil || r.pool != p {
		return ErrAmountIncorrect
	}
	if r.settled {
		return ErrReceiptSettled
	}
	if assetA.Token() != p.tokenA || assetB.Token() != p.tokenB {
		return ErrAmountIncorrect
	}

	in, other := assetA, assetB
	if !r.aToB {
		in, other = assetB, assetA
	}
	if in.Amount() != r.payAmount {
		return ErrAmountIncorrect
	}
	if err := other.DestroyZero(); err != nil {
		return ErrAmountIncorrect
	}

	if r.refFeeAmount > 0 {
		ref, err := in.Extract(r.refFeeAmount)
		if err != nil {
			return ErrAmountIncorrect
		}
		p.deps.Partners.ReceiveRefFee(r.partner, ref)
	}
	p.vault.Deposit(in)
	r.settled = true
	p.outstandingReceipts--
	return nil
}
