// Package sushiswap carries the SushiSwap deployment of the V2 core.
package sushiswap

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/dex/uniswap"
)

// Polygon mainnet deployment.
var (
	Router  = common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	Factory = common.HexToAddress("0xc35DADB65012eC5796536bD9864eD8773aBc74C4")

	PairInitCodeHash = common.HexToHash("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303")
)

// New returns the SushiSwap router adapter.
func New() (*uniswap.V2Router, error) {
	return uniswap.NewV2Router("SushiSwap", Router, Factory, PairInitCodeHash)
}
