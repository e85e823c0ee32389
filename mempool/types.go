// Package mempool watches the node's pending-transaction feed and
// narrows it down to swaps against registered routers. Hashes fan out
// to a fixed worker pool; each worker fetches the body, drops
// duplicates and junk, and decodes the rest.
package mempool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/polymev/flasharb/utils"
)

// PendingSwap is a mempool transaction decoded as a swap against a
// registered router.
type PendingSwap struct {
	Hash      common.Hash
	From      common.Address
	Router    common.Address
	Swap      *utils.DecodedSwap
	GasFeeCap *big.Int
	GasTipCap *big.Int
	FirstSeen time.Time
	Raw       *ethtypes.Transaction
}
