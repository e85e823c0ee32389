package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/dex"
)

const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// PairCaller reads live reserves from a deployed V2 pair contract.
// The reserve sync uses it to mirror venue liquidity into the ledger.
type PairCaller struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewPairCaller binds the pair contract at address for read-only use.
func NewPairCaller(address common.Address, caller bind.ContractCaller) (*PairCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(pairABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	return &PairCaller{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		address:  address,
	}, nil
}

// Address returns the pair contract address.
func (p *PairCaller) Address() common.Address {
	return p.address
}

// GetReserves returns the pair's current reserves.
func (p *PairCaller) GetReserves(ctx context.Context) (*dex.Reserves, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, fmt.Errorf("failed to get reserves for %s: %w", p.address.Hex(), err)
	}
	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserve1")
	}
	blockTimestamp, ok := out[2].(uint32)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserve timestamp")
	}
	return &dex.Reserves{
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Timestamp: blockTimestamp,
	}, nil
}

// Token0 returns the pair's first token.
func (p *PairCaller) Token0(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "token0"); err != nil {
		return common.Address{}, fmt.Errorf("failed to get token0: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse token0 address")
	}
	return addr, nil
}

// Token1 returns the pair's second token.
func (p *PairCaller) Token1(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "token1"); err != nil {
		return common.Address{}, fmt.Errorf("failed to get token1: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse token1 address")
	}
	return addr, nil
}
