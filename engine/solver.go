package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/types"
)

// SolverCall is the coordinator ingress: the coordinator submits a
// solver's request together with its bid. The embedded unit runs
// exactly as the direct path does; the bid is settled before the
// remaining surplus moves to the owner, all under the same snapshot.
func (e *Engine) SolverCall(ctx context.Context, state *ledger.Ledger, caller common.Address, params *types.SolverCallParams) (*types.ExecutionResult, error) {
	if err := e.requireCoordinator(caller); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.SolverFrom != e.cfg.GetOwner() {
		return nil, apperror.Authorization("solver origin %s is not the owner", params.SolverFrom.Hex())
	}

	return e.run(ctx, state, params.Request, func(s *ledger.Ledger) error {
		if err := e.payBid(s, params); err != nil {
			return err
		}
		return e.sweep(s, params.Request)
	})
}

// payBid settles the solver bid out of the engine account. A zero bid
// is a no-op. The zero token address marks a native-currency bid; the
// engine's native balance is checked before any transfer so a
// shortfall moves nothing.
func (e *Engine) payBid(state *ledger.Ledger, params *types.SolverCallParams) error {
	if params.BidAmount == nil || params.BidAmount.Sign() == 0 {
		return nil
	}

	if params.BidToken == types.NativeToken {
		balance := state.NativeBalanceOf(e.address)
		if balance.Cmp(params.BidAmount) < 0 {
			return apperror.ExternalCall("bid of %s native exceeds engine balance %s",
				params.BidAmount, balance)
		}
		return state.TransferNative(e.address, params.ExecutionEnvironment, params.BidAmount)
	}

	return state.Transfer(params.BidToken, e.address, params.ExecutionEnvironment, params.BidAmount)
}
