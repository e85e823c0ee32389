// Package quickswap carries the QuickSwap deployment of the V2 core.
package quickswap

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/dex/uniswap"
)

// Polygon mainnet deployment.
var (
	Router  = common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff")
	Factory = common.HexToAddress("0x5757371414417b8c6caad45baef941abc7d3ab32")

	// PairInitCodeHash matches the canonical V2 pair bytecode, which
	// QuickSwap deploys unmodified.
	PairInitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

// New returns the QuickSwap router adapter.
func New() (*uniswap.V2Router, error) {
	return uniswap.NewV2Router("QuickSwap", Router, Factory, PairInitCodeHash)
}
