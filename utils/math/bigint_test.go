package math

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxClamp(t *testing.T) {
	three := big.NewInt(3)
	five := big.NewInt(5)

	assert.Equal(t, int64(3), Min(three, five).Int64())
	assert.Equal(t, int64(3), Min(five, three).Int64())
	assert.Equal(t, int64(5), Max(three, five).Int64())
	assert.Equal(t, int64(5), Max(five, three).Int64())

	lo := big.NewInt(10)
	hi := big.NewInt(20)
	assert.Equal(t, int64(10), Clamp(big.NewInt(1), lo, hi).Int64())
	assert.Equal(t, int64(20), Clamp(big.NewInt(99), lo, hi).Int64())
	assert.Equal(t, int64(15), Clamp(big.NewInt(15), lo, hi).Int64())

	// Results are copies, not aliases of the arguments.
	got := Min(three, five)
	got.SetInt64(42)
	assert.Equal(t, int64(3), three.Int64())
}

func TestPriceImpactBps(t *testing.T) {
	// 1000 into 99_000 of reserve moves the pool by 1%.
	impact := PriceImpactBps(big.NewInt(1000), big.NewInt(99_000))
	assert.Equal(t, int64(100), impact.Int64())

	// A trade as large as the reserve itself is a 50% move.
	impact = PriceImpactBps(big.NewInt(1000), big.NewInt(1000))
	assert.Equal(t, int64(5000), impact.Int64())

	assert.Zero(t, PriceImpactBps(big.NewInt(0), big.NewInt(1000)).Sign())
	assert.Zero(t, PriceImpactBps(big.NewInt(1000), big.NewInt(0)).Sign())
	assert.Zero(t, PriceImpactBps(nil, big.NewInt(1000)).Sign())
}

func TestSpreadBps(t *testing.T) {
	assert.Equal(t, int64(200), SpreadBps(big.NewInt(102), big.NewInt(100)).Int64())
	assert.Equal(t, int64(200), SpreadBps(big.NewInt(100), big.NewInt(102)).Int64())
	assert.Equal(t, int64(9900), SpreadBps(big.NewInt(199), big.NewInt(100)).Int64())
	assert.Zero(t, SpreadBps(big.NewInt(100), big.NewInt(100)).Sign())
	assert.Zero(t, SpreadBps(big.NewInt(0), big.NewInt(100)).Sign())
	assert.Zero(t, SpreadBps(big.NewInt(100), nil).Sign())
}

func TestApplyBps(t *testing.T) {
	assert.Equal(t, int64(3000), ApplyBps(big.NewInt(1_000_000), 30).Int64())
	assert.Equal(t, int64(500), ApplyBps(big.NewInt(1000), 5000).Int64())
	assert.Zero(t, ApplyBps(big.NewInt(0), 30).Sign())
	assert.Zero(t, ApplyBps(big.NewInt(1_000_000), 0).Sign())
	assert.Zero(t, ApplyBps(nil, 30).Sign())
}
