package uniswap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/ledger"
)

func newTestV3Router(t *testing.T) *V3Router {
	t.Helper()
	r, err := NewV3Router(PolygonV3Router, PolygonV3Factory)
	require.NoError(t, err)
	return r
}

func TestPoolAddress(t *testing.T) {
	fee := big.NewInt(FeeTierMedium)

	pool := PoolAddress(PolygonV3Factory, wmatic, usdc, fee)
	assert.NotEqual(t, common.Address{}, pool)

	t.Run("token order does not matter", func(t *testing.T) {
		assert.Equal(t, pool, PoolAddress(PolygonV3Factory, usdc, wmatic, fee))
	})

	t.Run("fee tier selects a different pool", func(t *testing.T) {
		low := PoolAddress(PolygonV3Factory, wmatic, usdc, big.NewInt(FeeTierLow))
		high := PoolAddress(PolygonV3Factory, wmatic, usdc, big.NewInt(FeeTierHigh))
		assert.NotEqual(t, pool, low)
		assert.NotEqual(t, pool, high)
		assert.NotEqual(t, low, high)
	})

	t.Run("factory selects a different pool", func(t *testing.T) {
		other := PoolAddress(testFactory, wmatic, usdc, fee)
		assert.NotEqual(t, pool, other)
	})
}

func TestNormalizeFee(t *testing.T) {
	assert.Equal(t, big.NewInt(DefaultFeeTier), normalizeFee(nil))
	assert.Equal(t, big.NewInt(DefaultFeeTier), normalizeFee(new(big.Int)))
	assert.Equal(t, big.NewInt(FeeTierLow), normalizeFee(big.NewInt(FeeTierLow)))
}

func TestV3AmountOut(t *testing.T) {
	reserve := big.NewInt(1_000_000)
	tests := []struct {
		name string
		fee  int64
		want int64
	}{
		{"low tier", FeeTierLow, 998},
		{"medium tier", FeeTierMedium, 996},
		{"high tier", FeeTierHigh, 989},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v3AmountOut(big.NewInt(1000), reserve, reserve, big.NewInt(tt.fee))
			assert.Equal(t, big.NewInt(tt.want), out)
		})
	}
}

func TestV3SwapExactIn(t *testing.T) {
	r := newTestV3Router(t)
	state := ledger.New()
	state.SetBlock(100, 1000)

	fee := big.NewInt(FeeTierMedium)
	pool := r.PoolFor(wmatic, usdc, fee)
	state.Mint(wmatic, pool, big.NewInt(1_000_000))
	state.Mint(usdc, pool, big.NewInt(1_000_000))
	state.Mint(wmatic, trader, big.NewInt(1000))
	state.Approve(wmatic, trader, r.Address(), big.NewInt(1000))

	out, err := r.SwapExactIn(context.Background(), state, trader, dex.SwapParams{
		TokenIn:   wmatic,
		TokenOut:  usdc,
		FeeTier:   fee,
		Recipient: trader,
		Deadline:  big.NewInt(2000),
		AmountIn:  big.NewInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(996), out)

	assert.Equal(t, int64(0), state.BalanceOf(wmatic, trader).Int64())
	assert.Equal(t, big.NewInt(996), state.BalanceOf(usdc, trader))
	assert.Equal(t, big.NewInt(1_001_000), state.BalanceOf(wmatic, pool))
	assert.Equal(t, big.NewInt(999_004), state.BalanceOf(usdc, pool))
}

func TestV3SwapFailures(t *testing.T) {
	r := newTestV3Router(t)
	fee := big.NewInt(FeeTierMedium)

	base := func() (*ledger.Ledger, dex.SwapParams) {
		state := ledger.New()
		state.SetBlock(100, 1000)
		pool := r.PoolFor(wmatic, usdc, fee)
		state.Mint(wmatic, pool, big.NewInt(1_000_000))
		state.Mint(usdc, pool, big.NewInt(1_000_000))
		state.Mint(wmatic, trader, big.NewInt(1000))
		state.Approve(wmatic, trader, r.Address(), big.NewInt(1000))
		return state, dex.SwapParams{
			TokenIn:   wmatic,
			TokenOut:  usdc,
			FeeTier:   fee,
			Recipient: trader,
			Deadline:  big.NewInt(2000),
			AmountIn:  big.NewInt(1000),
		}
	}

	t.Run("transaction too old", func(t *testing.T) {
		state, p := base()
		p.Deadline = big.NewInt(500)
		_, err := r.SwapExactIn(context.Background(), state, trader, p)
		require.Error(t, err)
		assert.True(t, apperror.IsExternalCall(err))
		assert.Contains(t, err.Error(), "too old")
	})

	t.Run("too little received", func(t *testing.T) {
		state, p := base()
		p.AmountOutMinimum = big.NewInt(997)
		_, err := r.SwapExactIn(context.Background(), state, trader, p)
		require.Error(t, err)
		assert.True(t, apperror.IsExternalCall(err))
		assert.Contains(t, err.Error(), "too little received")
		assert.Equal(t, big.NewInt(1000), state.BalanceOf(wmatic, trader))
	})

	t.Run("unseeded fee tier has no liquidity", func(t *testing.T) {
		state, p := base()
		p.FeeTier = big.NewInt(FeeTierLow)
		_, err := r.SwapExactIn(context.Background(), state, trader, p)
		require.Error(t, err)
		assert.True(t, apperror.IsExternalCall(err))
		assert.Contains(t, err.Error(), "no liquidity")
	})
}

func TestV3Quote(t *testing.T) {
	r := newTestV3Router(t)
	state := ledger.New()

	fee := big.NewInt(FeeTierMedium)
	pool := r.PoolFor(wmatic, usdc, fee)
	state.Mint(wmatic, pool, big.NewInt(1_000_000))
	state.Mint(usdc, pool, big.NewInt(1_000_000))

	out, err := r.Quote(context.Background(), state, wmatic, usdc, fee, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(996), out)
	assert.Equal(t, big.NewInt(1_000_000), state.BalanceOf(wmatic, pool))
}

func TestV3EncodeSwapExactIn(t *testing.T) {
	r := newTestV3Router(t)
	data, err := r.EncodeSwapExactIn(dex.SwapParams{
		TokenIn:   wmatic,
		TokenOut:  usdc,
		FeeTier:   big.NewInt(FeeTierMedium),
		Recipient: trader,
		Deadline:  big.NewInt(1234),
		AmountIn:  big.NewInt(1000),
	})
	require.NoError(t, err)

	// exactInputSingle selector.
	assert.Equal(t, []byte{0x41, 0x4b, 0xf3, 0x89}, data[:4])
}
