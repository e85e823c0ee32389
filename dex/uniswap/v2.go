// Package uniswap implements the Uniswap-lineage exchange adapters:
// the constant-product V2 core shared by its forks and the
// concentrated-liquidity V3 router, plus the deterministic pair/pool
// address derivations.
package uniswap

import (
	"bytes"
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

// v2RouterABI covers the single exact-input entry point the executor
// encodes.
const v2RouterABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapExactTokensForTokens",
	"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// SortTokens orders a token pair the way the factories do before
// hashing the CREATE2 salt.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		return tokenB, tokenA
	}
	return tokenA, tokenB
}

// V2Router adapts a Uniswap V2 style router (QuickSwap, SushiSwap, the
// canonical deployment) to the dex.Router capability table. The pair
// account's ledger balances are its reserves.
type V2Router struct {
	name     string
	router   common.Address
	factory  common.Address
	initCode common.Hash
	abi      abi.ABI
}

// NewV2Router creates an adapter for one V2 fork deployment.
func NewV2Router(name string, router, factory common.Address, initCode common.Hash) (*V2Router, error) {
	if router == (common.Address{}) || factory == (common.Address{}) {
		return nil, fmt.Errorf("v2 router %q needs router and factory addresses", name)
	}
	parsed, err := abi.JSON(strings.NewReader(v2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v2 router ABI: %w", err)
	}
	return &V2Router{
		name:     name,
		router:   router,
		factory:  factory,
		initCode: initCode,
		abi:      parsed,
	}, nil
}

// Name returns the exchange name.
func (r *V2Router) Name() string {
	return r.name
}

// Address returns the router contract address.
func (r *V2Router) Address() common.Address {
	return r.router
}

// PairFor derives the CREATE2 pair address for two tokens.
func (r *V2Router) PairFor(tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256(
		[]byte{0xff}, r.factory.Bytes(), salt, r.initCode.Bytes(),
	))
}

// reserves reads the pair's current reserves for the hop direction.
func (r *V2Router) reserves(state *ledger.Ledger, tokenIn, tokenOut common.Address) (pair common.Address, reserveIn, reserveOut *big.Int) {
	pair = r.PairFor(tokenIn, tokenOut)
	return pair, state.BalanceOf(tokenIn, pair), state.BalanceOf(tokenOut, pair)
}

// Quote returns the constant-product output for the hop without
// touching state.
func (r *V2Router) Quote(_ context.Context, state *ledger.Ledger, tokenIn, tokenOut common.Address, _, amountIn *big.Int) (*big.Int, error) {
	_, reserveIn, reserveOut := r.reserves(state, tokenIn, tokenOut)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, apperror.ExternalCall("%s: no liquidity for %s/%s", r.name, tokenIn.Hex(), tokenOut.Hex())
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut), nil
}

// SwapExactIn executes the hop against the ledger: debit the caller
// through the allowance it granted this router, credit the recipient
// from the pair account.
func (r *V2Router) SwapExactIn(_ context.Context, state *ledger.Ledger, caller common.Address, p dex.SwapParams) (*big.Int, error) {
	if p.Deadline != nil && p.Deadline.Cmp(new(big.Int).SetUint64(state.Timestamp())) < 0 {
		return nil, apperror.ExternalCall("%s: swap deadline expired", r.name)
	}
	pair, reserveIn, reserveOut := r.reserves(state, p.TokenIn, p.TokenOut)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, apperror.ExternalCall("%s: no liquidity for %s/%s", r.name, p.TokenIn.Hex(), p.TokenOut.Hex())
	}

	amountOut := GetAmountOut(p.AmountIn, reserveIn, reserveOut)
	if p.AmountOutMinimum != nil && amountOut.Cmp(p.AmountOutMinimum) < 0 {
		return nil, apperror.ExternalCall("%s: insufficient output amount (got %s, want >= %s)",
			r.name, amountOut, p.AmountOutMinimum)
	}

	if err := state.TransferFrom(p.TokenIn, caller, r.router, pair, p.AmountIn); err != nil {
		return nil, fmt.Errorf("%s: pull input: %w", r.name, err)
	}
	if err := state.Transfer(p.TokenOut, pair, p.Recipient, amountOut); err != nil {
		return nil, fmt.Errorf("%s: pay output: %w", r.name, err)
	}
	return amountOut, nil
}

// EncodeSwapExactIn packs swapExactTokensForTokens calldata for the
// hop.
func (r *V2Router) EncodeSwapExactIn(p dex.SwapParams) ([]byte, error) {
	minOut := p.AmountOutMinimum
	if minOut == nil {
		minOut = new(big.Int)
	}
	deadline := p.Deadline
	if deadline == nil {
		deadline = new(big.Int)
	}
	data, err := r.abi.Pack("swapExactTokensForTokens",
		p.AmountIn,
		minOut,
		[]common.Address{p.TokenIn, p.TokenOut},
		p.Recipient,
		deadline,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s swap: %w", r.name, err)
	}
	return data, nil
}

// GetAmountOut is the 0.3%-fee constant-product output formula.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, big.NewInt(1000)),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}

// GetAmountIn is the inverse formula: input required for a desired
// output.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return new(big.Int)
	}
	numerator := new(big.Int).Mul(
		new(big.Int).Mul(reserveIn, amountOut),
		big.NewInt(1000),
	)
	denominator := new(big.Int).Mul(
		new(big.Int).Sub(reserveOut, amountOut),
		big.NewInt(997),
	)
	amountIn := new(big.Int).Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1))
}
