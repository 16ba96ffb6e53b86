// Package tickmath converts between tick indices and Q64.64 square-root
// prices. A tick t corresponds to price 1.0001^t, so its square-root price is
// 1.0001^(t/2) scaled by 2^64.
package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/defistate/clmm-engine-go/calculator/bitmath"
)

const (
	// MinTick is the minimum tick that may be passed to GetSqrtPriceAtTick.
	MinTick = int32(-443636)
	// MaxTick is the maximum tick that may be passed to GetSqrtPriceAtTick.
	MaxTick = int32(443636)
)

var (
	// MinSqrtPrice is the Q64.64 square-root price at MinTick.
	MinSqrtPrice = uint256.MustFromDecimal("4295048016")
	// MaxSqrtPrice is the Q64.64 square-root price at MaxTick.
	MaxSqrtPrice = uint256.MustFromDecimal("79226673515401279992447579055")

	ErrInvalidTick      = errors.New("tick out of bounds")
	ErrInvalidSqrtPrice = errors.New("sqrt price out of bounds")

	q64 = uint256.MustFromDecimal("18446744073709551616")
	q96 = uint256.MustFromDecimal("79228162514264337593543950336")

	// negRatios[k] is 1.0001^(-2^(k-1)) in Q64, i.e. the square root of
	// 1.0001^(-2^k). Multiplying these per set bit of |t| walks the whole
	// negative side with 64-bit precision.
	negRatios = [19]*uint256.Int{
		uint256.MustFromDecimal("18445821805675392311"),
		uint256.MustFromDecimal("18444899583751176498"),
		uint256.MustFromDecimal("18443055278223354162"),
		uint256.MustFromDecimal("18439367220385604838"),
		uint256.MustFromDecimal("18431993317065449817"),
		uint256.MustFromDecimal("18417254355718160513"),
		uint256.MustFromDecimal("18387811781193591352"),
		uint256.MustFromDecimal("18329067761203520168"),
		uint256.MustFromDecimal("18212142134806087854"),
		uint256.MustFromDecimal("17980523815641551639"),
		uint256.MustFromDecimal("17526086738831147013"),
		uint256.MustFromDecimal("16651378430235024244"),
		uint256.MustFromDecimal("15030750278693429944"),
		uint256.MustFromDecimal("12247334978882834399"),
		uint256.MustFromDecimal("8131365268884726200"),
		uint256.MustFromDecimal("3584323654723342297"),
		uint256.MustFromDecimal("696457651847595233"),
		uint256.MustFromDecimal("26294789957452057"),
		uint256.MustFromDecimal("37481735321082"),
	}

	// posRatios[k] is 1.0001^(2^(k-1)) in Q96. The positive side runs at the
	// wider format and normalises with a final >> 32 so the product chain
	// keeps 64 significant fractional bits.
	posRatios = [19]*uint256.Int{
		uint256.MustFromDecimal("79232123823359799118286999567"),
		uint256.MustFromDecimal("79236085330515764027303304731"),
		uint256.MustFromDecimal("79244008939048815603706035061"),
		uint256.MustFromDecimal("79259858533276714757314932305"),
		uint256.MustFromDecimal("79291567232598584799939703904"),
		uint256.MustFromDecimal("79355022692464371645785046466"),
		uint256.MustFromDecimal("79482085999252804386437311141"),
		uint256.MustFromDecimal("79736823300114093921829183326"),
		uint256.MustFromDecimal("80248749790819932309965073892"),
		uint256.MustFromDecimal("81282483887344747381513967011"),
		uint256.MustFromDecimal("83390072131320151908154831281"),
		uint256.MustFromDecimal("87770609709833776024991924138"),
		uint256.MustFromDecimal("97234110755111693312479820773"),
		uint256.MustFromDecimal("119332217159966728226237229890"),
		uint256.MustFromDecimal("179736315981702064433883588727"),
		uint256.MustFromDecimal("407748233172238350107850275304"),
		uint256.MustFromDecimal("2098478828474011932436660412517"),
		uint256.MustFromDecimal("55581415166113811149459800483533"),
		uint256.MustFromDecimal("38992368544603139932233054999993551"),
	}

	// log2(sqrt(1.0001))^-1 in Q32, and the bracket error margins in Q64, used by
	// GetTickAtSqrtPrice.
	logB2X32          = big.NewInt(59543866431248)
	logMarginLowerX64 = big.NewInt(184467440737095516)
	logMarginUpperX64 = new(big.Int).SetUint64(15793534762490258745)
)

// GetSqrtPriceAtTick returns the Q64.64 square-root price for tick.
func GetSqrtPriceAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrInvalidTick
	}
	if tick < 0 {
		return sqrtPriceAtNegativeTick(uint32(-tick)), nil
	}
	return sqrtPriceAtPositiveTick(uint32(tick)), nil
}

func sqrtPriceAtNegativeTick(absTick uint32) *uint256.Int {
	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(negRatios[0])
	} else {
		ratio.Set(q64)
	}
	for k := 1; k < len(negRatios); k++ {
		if absTick&(1<<k) != 0 {
			ratio.Mul(ratio, negRatios[k]).Rsh(ratio, 64)
		}
	}
	return ratio
}

func sqrtPriceAtPositiveTick(absTick uint32) *uint256.Int {
	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(posRatios[0])
	} else {
		ratio.Set(q96)
	}
	for k := 1; k < len(posRatios); k++ {
		if absTick&(1<<k) != 0 {
			ratio.Mul(ratio, posRatios[k]).Rsh(ratio, 96)
		}
	}
	return ratio.Rsh(ratio, 32)
}

// GetTickAtSqrtPrice returns the greatest tick whose square-root price is at
// most sqrtPrice. It derives log2 of the price from the MSB position plus a
// 14-iteration fractional refinement, rescales to log base 1.0001, and
// resolves the remaining one-tick ambiguity against GetSqrtPriceAtTick.
func GetTickAtSqrtPrice(sqrtPrice *uint256.Int) (int32, error) {
	if sqrtPrice == nil || sqrtPrice.Lt(MinSqrtPrice) || sqrtPrice.Gt(MaxSqrtPrice) {
		return 0, ErrInvalidSqrtPrice
	}

	msb, err := bitmath.MostSignificantBit(sqrtPrice)
	if err != nil {
		return 0, err
	}

	// Normalise the price into [2^63, 2^64) and square it out bit by bit to
	// recover the fractional part of log2 in Q64.
	r := new(uint256.Int)
	if msb >= 64 {
		r.Rsh(sqrtPrice, uint(msb-63))
	} else {
		r.Lsh(sqrtPrice, uint(63-msb))
	}

	var fracX64 uint64
	bit := uint64(1) << 63
	for i := 0; i < 14; i++ {
		r.Mul(r, r)
		over := new(uint256.Int).Rsh(r, 127).Uint64()
		r.Rsh(r, uint(63+over))
		fracX64 += bit * over
		bit >>= 1
	}

	log2X32 := big.NewInt(int64(msb) - 64)
	log2X32.Lsh(log2X32, 32)
	log2X32.Add(log2X32, new(big.Int).SetUint64(fracX64>>32))

	logBpX64 := new(big.Int).Mul(log2X32, logB2X32)

	tickLow := new(big.Int).Sub(logBpX64, logMarginLowerX64)
	tickLow.Rsh(tickLow, 64)
	tickHigh := new(big.Int).Add(logBpX64, logMarginUpperX64)
	tickHigh.Rsh(tickHigh, 64)

	lo, hi := int32(tickLow.Int64()), int32(tickHigh.Int64())
	if lo == hi {
		return lo, nil
	}
	atHigh, err := GetSqrtPriceAtTick(hi)
	if err != nil {
		return 0, err
	}
	if atHigh.Cmp(sqrtPrice) <= 0 {
		return hi, nil
	}
	return lo, nil
}

// IsValidTick reports whether tick is in range and aligned to tickSpacing.
func IsValidTick(tick int32, tickSpacing uint32) bool {
	if tickSpacing == 0 || tick < MinTick || tick > MaxTick {
		return false
	}
	return tick%int32(tickSpacing) == 0
}

// PriceDecimal renders a Q64.64 square-root price as a human-readable price
// of token A in terms of token B, adjusted for token decimals.
func PriceDecimal(sqrtPrice *uint256.Int, decimalsA, decimalsB uint8) decimal.Decimal {
	sp := decimal.NewFromBigInt(sqrtPrice.ToBig(), 0).
		Div(decimal.NewFromBigInt(q64.ToBig(), 0))
	price := sp.Mul(sp)
	scale := decimal.New(1, int32(decimalsA)-int32(decimalsB))
	return price.Mul(scale)
}
