package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/flashloan"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/types"
)

// swapDeadlineSlack bounds each hop's router deadline, in seconds past
// the host clock.
const swapDeadlineSlack = 300

// FlashCallback is re-entered synchronously by the pool during Flash.
// It authenticates the caller against the pool derived from the
// decoded payload, runs the swap chain, verifies the final holdings
// cover principal plus fee and repays the pool. Profit stays in the
// engine account for the distribution step.
func (e *Engine) FlashCallback(ctx context.Context, state *ledger.Ledger, caller common.Address, fee0, fee1 *big.Int, data []byte) error {
	pending := e.pending
	if pending == nil {
		return apperror.Authorization("unsolicited flash callback from %s", caller.Hex())
	}
	if pending.consumed {
		return apperror.Authorization("flash callback replayed by %s", caller.Hex())
	}
	if caller != pending.pool {
		return apperror.Authorization("flash callback from %s, expected pool %s", caller.Hex(), pending.pool.Hex())
	}
	pending.consumed = true

	req, err := flashloan.DecodeRequest(data)
	if err != nil {
		return err
	}
	if err := e.requireExpectedPool(caller, req); err != nil {
		return err
	}

	if err := e.executeSwapChain(ctx, state, req); err != nil {
		return err
	}

	owed0 := new(big.Int).Add(req.Amount0, fee0)
	owed1 := new(big.Int).Add(req.Amount1, fee1)
	balance0 := state.BalanceOf(req.Token0, e.address)
	balance1 := state.BalanceOf(req.Token1, e.address)
	if balance0.Cmp(owed0) < 0 {
		return apperror.InsufficientRepayment("final %s holdings %s below principal plus fee %s",
			req.Token0.Hex(), balance0, owed0)
	}
	if balance1.Cmp(owed1) < 0 {
		return apperror.InsufficientRepayment("final %s holdings %s below principal plus fee %s",
			req.Token1.Hex(), balance1, owed1)
	}

	if owed0.Sign() > 0 {
		if err := state.Transfer(req.Token0, e.address, caller, owed0); err != nil {
			return err
		}
	}
	if owed1.Sign() > 0 {
		if err := state.Transfer(req.Token1, e.address, caller, owed1); err != nil {
			return err
		}
	}

	pending.result = &types.ExecutionResult{
		Profit0: new(big.Int).Sub(balance0, owed0),
		Profit1: new(big.Int).Sub(balance1, owed1),
	}

	e.logger.Debug("Flash callback settled",
		zap.String("pool", caller.Hex()),
		zap.String("repaid0", owed0.String()),
		zap.String("repaid1", owed1.String()))
	return nil
}

// executeSwapChain runs the hops strictly in order. Each hop resolves
// its router through the registry, scopes a fresh allowance to exactly
// the hop input and fails the whole chain on any error.
func (e *Engine) executeSwapChain(ctx context.Context, state *ledger.Ledger, req *types.ArbitrageRequest) error {
	deadline := new(big.Int).SetUint64(state.Timestamp() + swapDeadlineSlack)

	for i := 0; i < req.Hops(); i++ {
		router, err := e.registry.Lookup(req.Routers[i])
		if err != nil {
			return err
		}
		tokenIn, tokenOut := req.Path[i], req.Path[i+1]
		amountIn := req.Amounts[i]

		// Reset, then grant exactly the hop input.
		state.Approve(tokenIn, e.address, router.Address(), new(big.Int))
		state.Approve(tokenIn, e.address, router.Address(), amountIn)

		out, err := router.SwapExactIn(ctx, state, e.address, dex.SwapParams{
			TokenIn:          tokenIn,
			TokenOut:         tokenOut,
			FeeTier:          req.FeeTier,
			Recipient:        e.address,
			Deadline:         deadline,
			AmountIn:         amountIn,
			AmountOutMinimum: req.MinOut(i),
		})
		if err != nil {
			return fmt.Errorf("hop %d via %s: %w", i, router.Name(), err)
		}

		e.logger.Debug("Hop filled",
			zap.Int("hop", i),
			zap.String("router", router.Name()),
			zap.String("amount_in", amountIn.String()),
			zap.String("amount_out", out.String()))
	}
	return nil
}
