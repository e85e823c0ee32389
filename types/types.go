// Package types holds the request shapes exchanged between the
// watcher, the detector, the execution engine and the bundle
// submitter.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
)

// NativeToken is the marker address for native-currency bids.
var NativeToken = common.Address{}

// ArbitrageRequest describes one atomic flash-borrow unit: borrow
// amount0/amount1 of token0/token1 from the pool identified by
// (token0, token1, feeTier), run the hop chain described by
// path/amounts/routers, repay and keep the surplus.
//
// Shape invariant: len(Path) >= 2 and
// len(Amounts) == len(Routers) == len(Path)-1.
type ArbitrageRequest struct {
	Token0  common.Address
	Token1  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
	FeeTier *big.Int

	Path    []common.Address
	Amounts []*big.Int
	Routers []common.Address

	// MinOuts are optional per-hop slippage floors. Empty means no
	// floor on any hop; otherwise one entry per hop.
	MinOuts []*big.Int
}

// Validate checks the request shape. It returns a ValidationError and
// performs no other work on violation.
func (r *ArbitrageRequest) Validate() error {
	if r == nil {
		return apperror.Validation("nil request")
	}
	if r.Token0 == (common.Address{}) || r.Token1 == (common.Address{}) {
		return apperror.Validation("zero token address")
	}
	if r.Amount0 == nil || r.Amount1 == nil {
		return apperror.Validation("nil borrow amount")
	}
	if r.Amount0.Sign() < 0 || r.Amount1.Sign() < 0 {
		return apperror.Validation("negative borrow amount")
	}
	if r.Amount0.Sign() == 0 && r.Amount1.Sign() == 0 {
		return apperror.Validation("nothing to borrow")
	}
	if r.FeeTier == nil || r.FeeTier.Sign() <= 0 {
		return apperror.Validation("missing fee tier")
	}
	if len(r.Path) < 2 {
		return apperror.Validation("path must contain at least 2 tokens, got %d", len(r.Path))
	}
	hops := len(r.Path) - 1
	if len(r.Amounts) != hops {
		return apperror.Validation("amounts length %d does not match %d hops", len(r.Amounts), hops)
	}
	if len(r.Routers) != hops {
		return apperror.Validation("routers length %d does not match %d hops", len(r.Routers), hops)
	}
	if len(r.MinOuts) != 0 && len(r.MinOuts) != hops {
		return apperror.Validation("minOuts length %d does not match %d hops", len(r.MinOuts), hops)
	}
	for i, amount := range r.Amounts {
		if amount == nil || amount.Sign() <= 0 {
			return apperror.Validation("hop %d has no input amount", i)
		}
	}
	for i, router := range r.Routers {
		if router == (common.Address{}) {
			return apperror.Validation("hop %d has zero router address", i)
		}
	}
	return nil
}

// Hops returns the number of swap hops in the request.
func (r *ArbitrageRequest) Hops() int {
	if len(r.Path) < 2 {
		return 0
	}
	return len(r.Path) - 1
}

// MinOut returns the slippage floor for hop i, zero when none was
// supplied.
func (r *ArbitrageRequest) MinOut(i int) *big.Int {
	if i < len(r.MinOuts) && r.MinOuts[i] != nil {
		return r.MinOuts[i]
	}
	return new(big.Int)
}

// SolverCallParams is the solver-coordinator ingress payload: an
// embedded request plus the bid the solver pays for execution rights.
type SolverCallParams struct {
	SolverFrom           common.Address
	ExecutionEnvironment common.Address
	BidToken             common.Address
	BidAmount            *big.Int
	Request              *ArbitrageRequest
}

// Validate checks the solver payload shape.
func (p *SolverCallParams) Validate() error {
	if p == nil {
		return apperror.Validation("nil solver params")
	}
	if p.BidAmount == nil || p.BidAmount.Sign() < 0 {
		return apperror.Validation("invalid bid amount")
	}
	if p.BidAmount.Sign() > 0 && p.ExecutionEnvironment == (common.Address{}) {
		return apperror.Validation("bid without execution environment")
	}
	if p.Request == nil {
		return apperror.Validation("solver params carry no request")
	}
	return p.Request.Validate()
}

// ExecutionResult summarizes one committed unit of work.
type ExecutionResult struct {
	Profit0 *big.Int
	Profit1 *big.Int
	GasUsed uint64
}

// Opportunity is a detected candidate: the request plus the detector's
// profit estimate used for ranking and submission decisions.
type Opportunity struct {
	Request        *ArbitrageRequest
	ExpectedProfit *big.Int
	GasEstimate    uint64
}
