// Package univ3math implements the Q64.96 price, tick and liquidity math used
// to size concentrated liquidity positions.
package univ3math

import (
	"math"
	"math/big"
)

const (
	MinTick = -887272
	MaxTick = 887272
)

// Q96 is 2^96, the fixed point scale of sqrt prices
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// PriceToTick returns the tick whose price is the greatest one not above p
func PriceToTick(p float64) int32 {
	return int32(math.Floor(math.Log(p) / math.Log(1.0001)))
}

// PriceToSqrtP converts a price into a Q64.96 square root price
func PriceToSqrtP(p float64) *big.Int {
	return floatToQ96(math.Sqrt(p))
}

// TickToSqrtP converts a tick into a Q64.96 square root price
func TickToSqrtP(tick int32) *big.Int {
	return floatToQ96(math.Pow(1.0001, float64(tick)/2))
}

func floatToQ96(f float64) *big.Int {
	// multiplying by a power of two is exact in big.Float
	v := new(big.Float).SetFloat64(f)
	v.SetMantExp(v, 96)
	out, _ := v.Int(nil)
	return out
}

// Liquidity0 returns the liquidity provided by amount of token0 between two sqrt prices
func Liquidity0(amount, pa, pb *big.Int) *big.Int {
	pa, pb = ordered(pa, pb)
	num := new(big.Int).Mul(amount, pa)
	num.Mul(num, pb)
	num.Quo(num, Q96)
	return num.Quo(num, new(big.Int).Sub(pb, pa))
}

// Liquidity1 returns the liquidity provided by amount of token1 between two sqrt prices
func Liquidity1(amount, pa, pb *big.Int) *big.Int {
	pa, pb = ordered(pa, pb)
	num := new(big.Int).Mul(amount, Q96)
	return num.Quo(num, new(big.Int).Sub(pb, pa))
}

// CalcAmount0 returns the token0 amount backing liq between two sqrt prices
func CalcAmount0(liq, pa, pb *big.Int) *big.Int {
	pa, pb = ordered(pa, pb)
	num := new(big.Int).Mul(liq, Q96)
	num.Mul(num, new(big.Int).Sub(pb, pa))
	num.Quo(num, pa)
	return num.Quo(num, pb)
}

// CalcAmount1 returns the token1 amount backing liq between two sqrt prices
func CalcAmount1(liq, pa, pb *big.Int) *big.Int {
	pa, pb = ordered(pa, pb)
	num := new(big.Int).Mul(liq, new(big.Int).Sub(pb, pa))
	return num.Quo(num, Q96)
}

func ordered(pa, pb *big.Int) (*big.Int, *big.Int) {
	if pa.Cmp(pb) > 0 {
		return pb, pa
	}
	return pa, pb
}

// MinBig returns the smaller of a and b
func MinBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
