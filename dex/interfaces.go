// Package dex defines the router capability table the swap chain
// executes against. Every exchange adapter registers under its router
// address and exposes quoting, host-ledger execution and calldata
// encoding for a single-hop exact-input swap.
package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/ledger"
)

// SwapParams describes one exact-input hop.
type SwapParams struct {
	TokenIn  common.Address
	TokenOut common.Address
	// FeeTier is the pool fee in parts per million. V2-style routers
	// ignore it.
	FeeTier   *big.Int
	Recipient common.Address
	// Deadline is a unix timestamp; the hop fails once the host clock
	// passes it.
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	// SqrtPriceLimitX96 caps the pool price on V3-style routers. Zero
	// means no limit.
	SqrtPriceLimitX96 *big.Int
}

// Router is a registered exchange adapter.
type Router interface {
	// Name identifies the exchange for logs and metrics.
	Name() string

	// Address is the on-chain router this adapter stands in for.
	Address() common.Address

	// Quote returns the expected output of the hop against the given
	// ledger state without mutating it.
	Quote(ctx context.Context, state *ledger.Ledger, tokenIn, tokenOut common.Address, feeTier, amountIn *big.Int) (*big.Int, error)

	// SwapExactIn executes the hop against the ledger on behalf of
	// caller. The caller must have approved this router for
	// p.AmountIn of p.TokenIn beforehand.
	SwapExactIn(ctx context.Context, state *ledger.Ledger, caller common.Address, p SwapParams) (*big.Int, error)

	// EncodeSwapExactIn packs the equivalent on-chain router calldata.
	EncodeSwapExactIn(p SwapParams) ([]byte, error)
}

// Reserves is a pair reserve snapshot. Timestamp is the pair's last
// update time truncated to 32 bits, as the contract stores it.
type Reserves struct {
	Reserve0  *big.Int
	Reserve1  *big.Int
	Timestamp uint32
}
