package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/dex/quickswap"
	"github.com/polymev/flasharb/utils/testutils"
)

var (
	poolTokenIn  = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270") // WMATIC
	poolTokenOut = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174") // USDC
	swapSender   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	registry := dex.NewRegistry()
	quick, err := quickswap.New()
	require.NoError(t, err)
	require.NoError(t, registry.Register(quick))

	analyzer, err := NewAnalyzer(137, registry, zaptest.NewLogger(t))
	require.NoError(t, err)
	return analyzer
}

func swapParams() dex.SwapParams {
	return dex.SwapParams{
		TokenIn:          poolTokenIn,
		TokenOut:         poolTokenOut,
		Recipient:        swapSender,
		Deadline:         big.NewInt(1_800_000_000),
		AmountIn:         big.NewInt(1_000_000),
		AmountOutMinimum: big.NewInt(900_000),
	}
}

func TestCandidateDecodesRegisteredSwap(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	params := swapParams()
	tx := testutils.V2SwapTx(t, 137, params)

	firstSeen := time.Now()
	swap, ok := analyzer.Candidate(tx, firstSeen)
	require.True(t, ok)

	assert.Equal(t, tx.Hash(), swap.Hash)
	assert.Equal(t, quickswap.Router, swap.Router)
	assert.Equal(t, "swapExactTokensForTokens", swap.Swap.Method)
	assert.Equal(t, params.TokenIn, swap.Swap.TokenIn)
	assert.Equal(t, params.TokenOut, swap.Swap.TokenOut)
	assert.Zero(t, swap.Swap.AmountIn.Cmp(params.AmountIn))
	assert.Zero(t, swap.Swap.AmountOutMin.Cmp(params.AmountOutMinimum))
	assert.Equal(t, firstSeen, swap.FirstSeen)
	assert.NotEqual(t, common.Address{}, swap.From, "sender should be recoverable")
	assert.Same(t, tx, swap.Raw)
}

func TestCandidateIgnoresForeignDestination(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	quick, err := quickswap.New()
	require.NoError(t, err)
	data, err := quick.EncodeSwapExactIn(swapParams())
	require.NoError(t, err)

	stranger := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	tx := testutils.SignedTx(t, 137, stranger, data)

	_, ok := analyzer.Candidate(tx, time.Now())
	assert.False(t, ok)
}

func TestCandidateIgnoresNonSwapCalldata(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	// ERC20 transfer selector aimed at the router.
	data := append([]byte{0xa9, 0x05, 0x9c, 0xbb}, make([]byte, 64)...)
	tx := testutils.SignedTx(t, 137, quickswap.Router, data)

	_, ok := analyzer.Candidate(tx, time.Now())
	assert.False(t, ok)
}

func TestCandidateIgnoresContractCreation(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(137),
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       100_000,
		Data:      []byte{0x60, 0x80, 0x60, 0x40},
	})

	_, ok := analyzer.Candidate(tx, time.Now())
	assert.False(t, ok)
}

func TestCandidateNilTransaction(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	_, ok := analyzer.Candidate(nil, time.Now())
	assert.False(t, ok)
}
