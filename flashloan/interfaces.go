// Package flashloan hosts the V3-style flash lending pools: address
// derivation, the borrow/callback/repay cycle and the payload codec
// that rides through it.
package flashloan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/ledger"
)

// Lender is one flash lending pool.
type Lender interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	FeeTier() *big.Int
	FlashFee(amount *big.Int) *big.Int
	Flash(ctx context.Context, state *ledger.Ledger, recipient common.Address, borrower Borrower, amount0, amount1 *big.Int, data []byte) error
}

// Borrower receives the flash callback. caller is the invoking pool's
// address so the borrower can authenticate it against the derivation.
// The borrowed funds plus the pool fee must be back in the pool before
// the callback returns.
type Borrower interface {
	FlashCallback(ctx context.Context, state *ledger.Ledger, caller common.Address, fee0, fee1 *big.Int, data []byte) error
}

// BorrowerFunc adapts a function to the Borrower interface.
type BorrowerFunc func(ctx context.Context, state *ledger.Ledger, caller common.Address, fee0, fee1 *big.Int, data []byte) error

// FlashCallback implements Borrower.
func (f BorrowerFunc) FlashCallback(ctx context.Context, state *ledger.Ledger, caller common.Address, fee0, fee1 *big.Int, data []byte) error {
	return f(ctx, state, caller, fee0, fee1, data)
}
