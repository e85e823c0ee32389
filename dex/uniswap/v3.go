package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/ledger"
)

// Polygon mainnet deployment.
var (
	PolygonV3Router  = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	PolygonV3Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")

	// PoolInitCodeHash is the V3 pool creation-code hash used in the
	// CREATE2 derivation.
	PoolInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
)

// Fee tiers in parts per million.
const (
	FeeTierLow     = 500
	FeeTierMedium  = 3000
	FeeTierHigh    = 10000
	DefaultFeeTier = FeeTierMedium
)

// FeeTiers lists the tiers probed when searching for a pool.
var FeeTiers = []int64{FeeTierLow, FeeTierMedium, FeeTierHigh}

const feeDenominator = 1_000_000

const v3RouterABI = `[{
	"inputs": [{
		"components": [
			{"internalType": "address", "name": "tokenIn", "type": "address"},
			{"internalType": "address", "name": "tokenOut", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"},
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"internalType": "struct ISwapRouter.ExactInputSingleParams",
		"name": "params",
		"type": "tuple"
	}],
	"name": "exactInputSingle",
	"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
	"stateMutability": "payable",
	"type": "function"
}]`

// PoolAddress derives the deterministic V3 pool address for a token
// pair and fee tier: keccak256(0xff ++ factory ++ salt ++ initCodeHash)
// with salt = keccak256(abi.encode(token0, token1, fee)).
func PoolAddress(factory, tokenA, tokenB common.Address, fee *big.Int) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		common.LeftPadBytes(fee.Bytes(), 32),
	)
	return common.BytesToAddress(crypto.Keccak256(
		[]byte{0xff}, factory.Bytes(), salt, PoolInitCodeHash.Bytes(),
	))
}

// V3Router adapts the Uniswap V3 swap router. Locally each derived
// pool account's ledger balances stand in for its liquidity; output is
// the fee-tier constant-product approximation.
type V3Router struct {
	router  common.Address
	factory common.Address
	abi     abi.ABI
}

// NewV3Router creates the adapter for one V3 deployment.
func NewV3Router(router, factory common.Address) (*V3Router, error) {
	if router == (common.Address{}) || factory == (common.Address{}) {
		return nil, fmt.Errorf("v3 router needs router and factory addresses")
	}
	parsed, err := abi.JSON(strings.NewReader(v3RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v3 router ABI: %w", err)
	}
	return &V3Router{router: router, factory: factory, abi: parsed}, nil
}

// Name returns the exchange name.
func (r *V3Router) Name() string {
	return "UniswapV3"
}

// Address returns the router contract address.
func (r *V3Router) Address() common.Address {
	return r.router
}

// PoolFor derives the pool address for a pair and fee tier on this
// deployment's factory.
func (r *V3Router) PoolFor(tokenA, tokenB common.Address, fee *big.Int) common.Address {
	return PoolAddress(r.factory, tokenA, tokenB, fee)
}

func normalizeFee(fee *big.Int) *big.Int {
	if fee == nil || fee.Sign() <= 0 {
		return big.NewInt(DefaultFeeTier)
	}
	return fee
}

// Quote returns the fee-tier constant-product output for the hop.
func (r *V3Router) Quote(_ context.Context, state *ledger.Ledger, tokenIn, tokenOut common.Address, feeTier, amountIn *big.Int) (*big.Int, error) {
	fee := normalizeFee(feeTier)
	pool := r.PoolFor(tokenIn, tokenOut, fee)
	reserveIn := state.BalanceOf(tokenIn, pool)
	reserveOut := state.BalanceOf(tokenOut, pool)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, apperror.ExternalCall("UniswapV3: no liquidity in pool %s", pool.Hex())
	}
	return v3AmountOut(amountIn, reserveIn, reserveOut, fee), nil
}

// SwapExactIn executes the hop against the derived pool's ledger
// balances.
func (r *V3Router) SwapExactIn(_ context.Context, state *ledger.Ledger, caller common.Address, p dex.SwapParams) (*big.Int, error) {
	if p.Deadline != nil && p.Deadline.Cmp(new(big.Int).SetUint64(state.Timestamp())) < 0 {
		return nil, apperror.ExternalCall("UniswapV3: transaction too old")
	}
	fee := normalizeFee(p.FeeTier)
	pool := r.PoolFor(p.TokenIn, p.TokenOut, fee)
	reserveIn := state.BalanceOf(p.TokenIn, pool)
	reserveOut := state.BalanceOf(p.TokenOut, pool)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, apperror.ExternalCall("UniswapV3: no liquidity in pool %s", pool.Hex())
	}

	amountOut := v3AmountOut(p.AmountIn, reserveIn, reserveOut, fee)
	if p.AmountOutMinimum != nil && amountOut.Cmp(p.AmountOutMinimum) < 0 {
		return nil, apperror.ExternalCall("UniswapV3: too little received (got %s, want >= %s)",
			amountOut, p.AmountOutMinimum)
	}

	if err := state.TransferFrom(p.TokenIn, caller, r.router, pool, p.AmountIn); err != nil {
		return nil, fmt.Errorf("UniswapV3: pull input: %w", err)
	}
	if err := state.Transfer(p.TokenOut, pool, p.Recipient, amountOut); err != nil {
		return nil, fmt.Errorf("UniswapV3: pay output: %w", err)
	}
	return amountOut, nil
}

// EncodeSwapExactIn packs exactInputSingle calldata for the hop.
func (r *V3Router) EncodeSwapExactIn(p dex.SwapParams) ([]byte, error) {
	minOut := p.AmountOutMinimum
	if minOut == nil {
		minOut = new(big.Int)
	}
	deadline := p.Deadline
	if deadline == nil {
		deadline = new(big.Int)
	}
	priceLimit := p.SqrtPriceLimitX96
	if priceLimit == nil {
		priceLimit = new(big.Int)
	}
	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               normalizeFee(p.FeeTier),
		Recipient:         p.Recipient,
		Deadline:          deadline,
		AmountIn:          p.AmountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: priceLimit,
	}
	data, err := r.abi.Pack("exactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack exactInputSingle: %w", err)
	}
	return data, nil
}

// v3AmountOut approximates the pool output with constant-product math
// at the pool's fee tier.
func v3AmountOut(amountIn, reserveIn, reserveOut, fee *big.Int) *big.Int {
	if amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	feeFactor := new(big.Int).Sub(big.NewInt(feeDenominator), fee)
	amountInWithFee := new(big.Int).Mul(amountIn, feeFactor)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator)),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}
