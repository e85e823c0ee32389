package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Swap entry points the mempool watcher classifies. The shapes mirror
// the calldata the engine's own routers emit.
const (
	v2SwapABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapExactTokensForTokens",
	"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

	v3SwapABI = `[{
	"inputs": [{
		"components": [
			{"internalType": "address", "name": "tokenIn", "type": "address"},
			{"internalType": "address", "name": "tokenOut", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"},
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"internalType": "struct ISwapRouter.ExactInputSingleParams",
		"name": "params",
		"type": "tuple"
	}],
	"name": "exactInputSingle",
	"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
	"stateMutability": "payable",
	"type": "function"
}]`
)

// DecodedSwap is a normalized view of a router swap's calldata.
// FeeTier is nil for V2 swaps.
type DecodedSwap struct {
	Method       string
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	Recipient    common.Address
	Deadline     *big.Int
	FeeTier      *big.Int
}

// TransactionDecoder classifies pending transactions against the swap
// selectors the engine knows how to price.
type TransactionDecoder struct {
	v2Router abi.ABI
	v3Router abi.ABI
	logger   *zap.Logger
}

// NewTransactionDecoder creates a new transaction decoder
func NewTransactionDecoder(logger *zap.Logger) (*TransactionDecoder, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	v2Router, err := abi.JSON(strings.NewReader(v2SwapABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v2 router ABI: %w", err)
	}
	v3Router, err := abi.JSON(strings.NewReader(v3SwapABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v3 router ABI: %w", err)
	}

	return &TransactionDecoder{
		v2Router: v2Router,
		v3Router: v3Router,
		logger:   logger,
	}, nil
}

// DecodeSwap decodes calldata into a normalized swap, or errors when
// the selector is not a known swap entry point.
func (d *TransactionDecoder) DecodeSwap(data []byte) (*DecodedSwap, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata is %d bytes, want at least 4", len(data))
	}

	if method, err := d.v2Router.MethodById(data[:4]); err == nil {
		return d.decodeV2(method, data[4:])
	}
	if method, err := d.v3Router.MethodById(data[:4]); err == nil {
		return d.decodeV3(method, data[4:])
	}
	return nil, fmt.Errorf("unknown swap selector 0x%x", data[:4])
}

func (d *TransactionDecoder) decodeV2(method *abi.Method, data []byte) (*DecodedSwap, error) {
	params := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(params, data); err != nil {
		return nil, fmt.Errorf("failed to decode %s parameters: %w", method.Name, err)
	}

	path, ok := params["path"].([]common.Address)
	if !ok || len(path) < 2 {
		return nil, fmt.Errorf("invalid path")
	}
	amountIn, ok := params["amountIn"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid amountIn")
	}
	amountOutMin, ok := params["amountOutMin"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid amountOutMin")
	}
	to, ok := params["to"].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid to address")
	}
	deadline, ok := params["deadline"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid deadline")
	}

	return &DecodedSwap{
		Method:       method.Name,
		TokenIn:      path[0],
		TokenOut:     path[len(path)-1],
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Path:         path,
		Recipient:    to,
		Deadline:     deadline,
	}, nil
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

func (d *TransactionDecoder) decodeV3(method *abi.Method, data []byte) (*DecodedSwap, error) {
	values, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s parameters: %w", method.Name, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected argument count %d for %s", len(values), method.Name)
	}
	params := abi.ConvertType(values[0], new(exactInputSingleParams)).(*exactInputSingleParams)

	return &DecodedSwap{
		Method:       method.Name,
		TokenIn:      params.TokenIn,
		TokenOut:     params.TokenOut,
		AmountIn:     params.AmountIn,
		AmountOutMin: params.AmountOutMinimum,
		Path:         []common.Address{params.TokenIn, params.TokenOut},
		Recipient:    params.Recipient,
		Deadline:     params.Deadline,
		FeeTier:      params.Fee,
	}, nil
}
