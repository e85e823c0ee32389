// Package math provides big-integer pricing helpers shared by the
// opportunity detector and the profit calculator.
package math

import "math/big"

var bpsDenominator = big.NewInt(10_000)

// Min returns a copy of the smaller of x and y.
func Min(x, y *big.Int) *big.Int {
	if x.Cmp(y) <= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// Max returns a copy of the larger of x and y.
func Max(x, y *big.Int) *big.Int {
	if x.Cmp(y) >= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi *big.Int) *big.Int {
	if x.Cmp(lo) < 0 {
		return new(big.Int).Set(lo)
	}
	if x.Cmp(hi) > 0 {
		return new(big.Int).Set(hi)
	}
	return new(big.Int).Set(x)
}

// PriceImpactBps returns the price impact, in basis points, of
// swapping amountIn into a pool holding reserveIn:
// amountIn * 10000 / (reserveIn + amountIn).
func PriceImpactBps(amountIn, reserveIn *big.Int) *big.Int {
	if amountIn == nil || reserveIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 {
		return new(big.Int)
	}
	impact := new(big.Int).Mul(amountIn, bpsDenominator)
	return impact.Div(impact, new(big.Int).Add(reserveIn, amountIn))
}

// SpreadBps measures the relative gap between two quotes in basis
// points of the smaller one. A non-positive quote yields zero; the
// caller is expected to have screened out empty pools first.
func SpreadBps(a, b *big.Int) *big.Int {
	if a == nil || b == nil || a.Sign() <= 0 || b.Sign() <= 0 {
		return new(big.Int)
	}
	lo, hi := a, b
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	gap := new(big.Int).Sub(hi, lo)
	gap.Mul(gap, bpsDenominator)
	return gap.Div(gap, lo)
}

// ApplyBps scales x by bps basis points, rounding down.
func ApplyBps(x *big.Int, bps int64) *big.Int {
	if x == nil || x.Sign() == 0 || bps == 0 {
		return new(big.Int)
	}
	scaled := new(big.Int).Mul(x, big.NewInt(bps))
	return scaled.Div(scaled, bpsDenominator)
}
