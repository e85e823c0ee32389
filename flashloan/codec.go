package flashloan

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/types"
)

// ABI types
var (
	abiAddress, _      = abi.NewType("address", "", nil)
	abiUint256, _      = abi.NewType("uint256", "", nil)
	abiAddressSlice, _ = abi.NewType("address[]", "", nil)
	abiUint256Slice, _ = abi.NewType("uint256[]", "", nil)
)

// requestArgs is the wire layout of a request riding through the flash
// callback's data parameter.
var requestArgs = abi.Arguments{
	{Name: "token0", Type: abiAddress},
	{Name: "token1", Type: abiAddress},
	{Name: "amount0", Type: abiUint256},
	{Name: "amount1", Type: abiUint256},
	{Name: "feeTier", Type: abiUint256},
	{Name: "path", Type: abiAddressSlice},
	{Name: "amounts", Type: abiUint256Slice},
	{Name: "routers", Type: abiAddressSlice},
	{Name: "minOuts", Type: abiUint256Slice},
}

// EncodeRequest packs a validated request into callback payload bytes.
func EncodeRequest(req *types.ArbitrageRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	minOuts := req.MinOuts
	if minOuts == nil {
		minOuts = []*big.Int{}
	}
	packed, err := requestArgs.Pack(
		req.Token0,
		req.Token1,
		req.Amount0,
		req.Amount1,
		req.FeeTier,
		req.Path,
		req.Amounts,
		req.Routers,
		minOuts,
	)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "failed to pack request")
	}
	return packed, nil
}

// DecodeRequest unpacks callback payload bytes and re-validates the
// request shape. Malformed bytes and shape violations both surface as
// a ValidationError.
func DecodeRequest(data []byte) (*types.ArbitrageRequest, error) {
	values, err := requestArgs.Unpack(data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "malformed request payload")
	}
	if len(values) != len(requestArgs) {
		return nil, apperror.Validation("request payload has %d fields, want %d", len(values), len(requestArgs))
	}

	req := &types.ArbitrageRequest{}
	ok := true
	if req.Token0, ok = values[0].(common.Address); !ok {
		return nil, apperror.Validation("request payload field token0 has wrong type")
	}
	if req.Token1, ok = values[1].(common.Address); !ok {
		return nil, apperror.Validation("request payload field token1 has wrong type")
	}
	if req.Amount0, ok = values[2].(*big.Int); !ok {
		return nil, apperror.Validation("request payload field amount0 has wrong type")
	}
	if req.Amount1, ok = values[3].(*big.Int); !ok {
		return nil, apperror.Validation("request payload field amount1 has wrong type")
	}
	if req.FeeTier, ok = values[4].(*big.Int); !ok {
		return nil, apperror.Validation("request payload field feeTier has wrong type")
	}
	if req.Path, ok = values[5].([]common.Address); !ok {
		return nil, apperror.Validation("request payload field path has wrong type")
	}
	if req.Amounts, ok = values[6].([]*big.Int); !ok {
		return nil, apperror.Validation("request payload field amounts has wrong type")
	}
	if req.Routers, ok = values[7].([]common.Address); !ok {
		return nil, apperror.Validation("request payload field routers has wrong type")
	}
	minOuts, ok := values[8].([]*big.Int)
	if !ok {
		return nil, apperror.Validation("request payload field minOuts has wrong type")
	}
	if len(minOuts) > 0 {
		req.MinOuts = minOuts
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
