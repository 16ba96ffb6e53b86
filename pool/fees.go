package pool

import (
	"github.com/holiman/uint256"

	"github.com/defistate/clmm-engine-go/calculator/fullmath"
)

// protocolFeeDenominator scales both the protocol share of swap fees and
// the partner's referral share of the protocol cut.
const protocolFeeDenominator = 10_000

// splitStepFee distributes one swap step's fee: the protocol takes its cut
// rounded up, the partner referral comes off the protocol cut rounded down,
// and whatever remains accrues to active liquidity through the growth
// accumulator. Returns the referral portion, which travels with the receipt
// rather than the pool.
//
// Conservation: protocol_kept + ref + liquidity == fee, always.
func (p *Pool) splitStepFee(fee uint64, aToB bool, refRate uint64) (refFee uint64, err error) {
	if fee == 0 {
		return 0, nil
	}

	protocolFee := ceilDivU64(fee, p.protocolFeeRate, protocolFeeDenominator)
	liquidityFee := fee - protocolFee
	refFee = protocolFee * refRate / protocolFeeDenominator
	protocolFee -= refFee

	if aToB {
		p.feeProtocolA += protocolFee
	} else {
		p.feeProtocolB += protocolFee
	}

	if liquidityFee > 0 && !p.liquidity.IsZero() {
		growth := new(uint256.Int)
		if err := fullmath.DivFloor(growth, new(uint256.Int).Lsh(uint256.NewInt(liquidityFee), 64), p.liquidity); err != nil {
			return 0, err
		}
		target := p.feeGrowthGlobalB
		if aToB {
			target = p.feeGrowthGlobalA
		}
		fullmath.WrappingAddU128(target, target, growth)
	}
	return refFee, nil
}

// ceilDivU64 is ceil(x*num/denom) on u64 inputs small enough that the
// product fits 128 bits.
func ceilDivU64(x, num, denom uint64) uint64 {
	out := new(uint256.Int)
	// Inputs are bounded well below 2^64, the ceil division cannot fail.
	if err := fullmath.MulDivCeil(out, uint256.NewInt(x), uint256.NewInt(num), uint256.NewInt(denom)); err != nil {
		panic(err)
	}
	return out.Uint64()
}
