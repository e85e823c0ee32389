// Package testutils provides shared fixtures for package tests.
package testutils

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/dex/quickswap"
	"github.com/polymev/flasharb/dex/uniswap"
	"github.com/polymev/flasharb/ledger"
)

// Key generates a fresh secp256k1 private key.
func Key(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// SignedTx returns a dynamic-fee transaction carrying data to the
// given address, signed by a fresh key.
func SignedTx(t *testing.T, chainID uint64, to common.Address, data []byte) *ethtypes.Transaction {
	t.Helper()
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     0,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(62_000_000_000),
		Gas:       300_000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signed, err := ethtypes.SignTx(tx, signer, Key(t))
	require.NoError(t, err)
	return signed
}

// V2SwapTx returns a signed transaction carrying a QuickSwap
// swapExactTokensForTokens call.
func V2SwapTx(t *testing.T, chainID uint64, params dex.SwapParams) *ethtypes.Transaction {
	t.Helper()
	router, err := quickswap.New()
	require.NoError(t, err)
	data, err := router.EncodeSwapExactIn(params)
	require.NoError(t, err)
	return SignedTx(t, chainID, quickswap.Router, data)
}

// SeedV2Pair mints both reserves into the canonical pair of router r
// and returns the pair address.
func SeedV2Pair(t *testing.T, state *ledger.Ledger, r *uniswap.V2Router, tokenX, tokenY common.Address, reserveX, reserveY int64) common.Address {
	t.Helper()
	pair := r.PairFor(tokenX, tokenY)
	state.Mint(tokenX, pair, big.NewInt(reserveX))
	state.Mint(tokenY, pair, big.NewInt(reserveY))
	return pair
}
