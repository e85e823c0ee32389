package flashloan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex/uniswap"
	"github.com/polymev/flasharb/ledger"
)

var feeDenominator = big.NewInt(1_000_000)

// FlashFee is the pool fee on a borrowed amount, rounded up:
// ceil(amount * feeTier / 1e6).
func FlashFee(amount, feeTier *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	product := new(big.Int).Mul(amount, feeTier)
	fee, rem := new(big.Int).DivMod(product, feeDenominator, new(big.Int))
	if rem.Sign() != 0 {
		fee.Add(fee, big.NewInt(1))
	}
	return fee
}

// Pool is a hosted flash lending pool at its deterministic address.
// Its reserves are the ledger balances held by that address.
type Pool struct {
	address common.Address
	token0  common.Address
	token1  common.Address
	feeTier *big.Int
}

// NewPool derives the pool for a token pair and fee tier under the
// given factory.
func NewPool(factory, tokenA, tokenB common.Address, feeTier *big.Int) (*Pool, error) {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return nil, apperror.Validation("pool needs two token addresses")
	}
	if tokenA == tokenB {
		return nil, apperror.Validation("pool tokens must differ")
	}
	if feeTier == nil || feeTier.Sign() <= 0 {
		return nil, apperror.Validation("missing fee tier")
	}
	token0, token1 := uniswap.SortTokens(tokenA, tokenB)
	return &Pool{
		address: uniswap.PoolAddress(factory, token0, token1, feeTier),
		token0:  token0,
		token1:  token1,
		feeTier: new(big.Int).Set(feeTier),
	}, nil
}

// Address returns the derived pool address.
func (p *Pool) Address() common.Address {
	return p.address
}

// Token0 returns the lower-ordered pool token.
func (p *Pool) Token0() common.Address {
	return p.token0
}

// Token1 returns the higher-ordered pool token.
func (p *Pool) Token1() common.Address {
	return p.token1
}

// FeeTier returns the pool fee tier in parts per million.
func (p *Pool) FeeTier() *big.Int {
	return new(big.Int).Set(p.feeTier)
}

// FlashFee is the fee charged on one borrowed amount at this pool's
// tier.
func (p *Pool) FlashFee(amount *big.Int) *big.Int {
	return FlashFee(amount, p.feeTier)
}

// Flash lends amount0/amount1 to the recipient, invokes the borrower
// callback and verifies that each token balance came back at least
// principal plus fee higher than it left. Callback errors propagate
// unchanged; the caller owns snapshotting around the whole cycle.
func (p *Pool) Flash(ctx context.Context, state *ledger.Ledger, recipient common.Address, borrower Borrower, amount0, amount1 *big.Int, data []byte) error {
	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}

	balance0Before := state.BalanceOf(p.token0, p.address)
	balance1Before := state.BalanceOf(p.token1, p.address)
	if balance0Before.Cmp(amount0) < 0 || balance1Before.Cmp(amount1) < 0 {
		return apperror.ExternalCall("pool %s cannot cover borrow of %s/%s", p.address.Hex(), amount0, amount1)
	}

	fee0 := p.FlashFee(amount0)
	fee1 := p.FlashFee(amount1)

	if amount0.Sign() > 0 {
		if err := state.Transfer(p.token0, p.address, recipient, amount0); err != nil {
			return err
		}
	}
	if amount1.Sign() > 0 {
		if err := state.Transfer(p.token1, p.address, recipient, amount1); err != nil {
			return err
		}
	}

	if err := borrower.FlashCallback(ctx, state, p.address, fee0, fee1, data); err != nil {
		return err
	}

	required0 := new(big.Int).Add(balance0Before, fee0)
	required1 := new(big.Int).Add(balance1Before, fee1)
	balance0After := state.BalanceOf(p.token0, p.address)
	balance1After := state.BalanceOf(p.token1, p.address)
	if balance0After.Cmp(required0) < 0 {
		return apperror.InsufficientRepayment("pool %s short on %s: have %s, need %s",
			p.address.Hex(), p.token0.Hex(), balance0After, required0)
	}
	if balance1After.Cmp(required1) < 0 {
		return apperror.InsufficientRepayment("pool %s short on %s: have %s, need %s",
			p.address.Hex(), p.token1.Hex(), balance1After, required1)
	}
	return nil
}
