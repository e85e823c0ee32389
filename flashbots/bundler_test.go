package flashbots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/gas"
	"github.com/polymev/flasharb/types"
	"github.com/polymev/flasharb/utils/metrics"
)

// feedClient serves fixed fee levels to the estimator.
type feedClient struct{}

func (feedClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: big.NewInt(100), BaseFee: big.NewInt(30_000_000_000)}, nil
}

func (feedClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func newTestBundler(t *testing.T, handler http.HandlerFunc) (*Bundler, *config.Config) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	client, _ := newTestClient(t, handler)

	est := gas.NewEstimator(feedClient{}, logger, time.Second)
	require.NoError(t, est.Refresh(context.Background()))

	cfg := config.DefaultConfig()
	cfg.Owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	cfg.EngineAddress = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewBundler(client, est, cfg, signer, metrics.New("test").Bundle, logger), cfg
}

func singleHopRequest() *types.ArbitrageRequest {
	return &types.ArbitrageRequest{
		Token0:  common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
		Token1:  common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		Amount0: big.NewInt(100),
		Amount1: new(big.Int),
		FeeTier: big.NewInt(3000),
		Path: []common.Address{
			common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
			common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		},
		Amounts: []*big.Int{big.NewInt(100)},
		Routers: []common.Address{common.HexToAddress("0x0000000000000000000000000000000000000011")},
	}
}

func acceptAllHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0x00000000000000000000000000000000000000000000000000000000000000aa"}}`)
}

func TestValidateWindow(t *testing.T) {
	b, cfg := newTestBundler(t, acceptAllHandler)
	current := uint64(100) // default maxDelayBlocks is 3

	tests := []struct {
		name    string
		target  uint64
		wantErr string
	}{
		{"next block", 101, ""},
		{"window edge", 103, ""},
		{"current block", 100, "strictly greater"},
		{"past block", 99, "strictly greater"},
		{"one past the window", 104, "too far"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.ValidateWindow(current, tt.target)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// Tightening maxDelayBlocks narrows the window immediately.
	require.NoError(t, cfg.SetMaxDelayBlocks(cfg.Owner, 1))
	assert.NoError(t, b.ValidateWindow(current, 101))
	err := b.ValidateWindow(current, 102)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too far")
}

func TestBuildArbitrageTx(t *testing.T) {
	b, cfg := newTestBundler(t, acceptAllHandler)
	encoded := []byte{0xaa, 0xbb, 0xcc}

	tx, err := b.BuildArbitrageTx(singleHopRequest(), encoded, 7)
	require.NoError(t, err)

	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(263_000), tx.Gas())
	assert.Equal(t, cfg.EngineAddress, *tx.To())
	assert.Equal(t, big.NewInt(62_000_000_000), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(2_000_000_000), tx.GasTipCap())
	assert.Equal(t, big.NewInt(137), tx.ChainId())

	trigger, err := abi.JSON(strings.NewReader(executeArbitrageABI))
	require.NoError(t, err)
	want, err := trigger.Pack("executeArbitrage", encoded)
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(137)), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(b.signer.PublicKey), sender)
}

func TestBuildArbitrageTxRejectsBadShape(t *testing.T) {
	b, _ := newTestBundler(t, acceptAllHandler)

	req := singleHopRequest()
	req.Amounts = nil

	_, err := b.BuildArbitrageTx(req, []byte{0x01}, 0)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestSubmitBundle(t *testing.T) {
	var (
		mu   sync.Mutex
		hits int
	)
	b, _ := newTestBundler(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		acceptAllHandler(w, r)
	})

	tx, err := b.BuildArbitrageTx(singleHopRequest(), []byte{0x01}, 0)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		hash, err := b.SubmitBundle(ctx, &Bundle{Txs: []*ethtypes.Transaction{tx}, TargetBlock: 101}, 100)
		require.NoError(t, err)
		assert.NotEqual(t, common.Hash{}, hash)
		assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.Submitted))
	})

	t.Run("empty bundle", func(t *testing.T) {
		_, err := b.SubmitBundle(ctx, &Bundle{TargetBlock: 101}, 100)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("window violations stay off the wire", func(t *testing.T) {
		mu.Lock()
		before := hits
		mu.Unlock()

		_, err := b.SubmitBundle(ctx, &Bundle{Txs: []*ethtypes.Transaction{tx}, TargetBlock: 100}, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strictly greater")

		_, err = b.SubmitBundle(ctx, &Bundle{Txs: []*ethtypes.Transaction{tx}, TargetBlock: 104}, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too far")

		mu.Lock()
		assert.Equal(t, before, hits)
		mu.Unlock()
		assert.Equal(t, float64(2), testutil.ToFloat64(b.metrics.Failed))
	})
}

func TestSubmitWindow(t *testing.T) {
	var (
		mu      sync.Mutex
		targets []string
	)
	// Only the second block in the window has room.
	b, _ := newTestBundler(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Params []struct {
				BlockNumber string `json:"blockNumber"`
			} `json:"params"`
		}
		_ = json.Unmarshal(body, &req)

		mu.Lock()
		targets = append(targets, req.Params[0].BlockNumber)
		mu.Unlock()

		w.Header().Set("Content-Type", contentTypeJSON)
		if req.Params[0].BlockNumber == "0x66" {
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0x00000000000000000000000000000000000000000000000000000000000000bb"}}`)
			return
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"block full"}}`)
	})

	tx, err := b.BuildArbitrageTx(singleHopRequest(), []byte{0x01}, 0)
	require.NoError(t, err)

	hashes, err := b.SubmitWindow(context.Background(), []*ethtypes.Transaction{tx}, 100)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	mu.Lock()
	assert.Len(t, targets, 3)
	assert.ElementsMatch(t, []string{"0x65", "0x66", "0x67"}, targets)
	mu.Unlock()
}

func TestSubmitWindowAllFail(t *testing.T) {
	b, _ := newTestBundler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"block full"}}`)
	})

	tx, err := b.BuildArbitrageTx(singleHopRequest(), []byte{0x01}, 0)
	require.NoError(t, err)

	_, err = b.SubmitWindow(context.Background(), []*ethtypes.Transaction{tx}, 100)
	require.Error(t, err)
	assert.True(t, apperror.IsExternalCall(err))
	assert.Contains(t, err.Error(), "all 3 submissions failed")
}

func TestSimulateChecksWindow(t *testing.T) {
	b, _ := newTestBundler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"totalGasUsed":263000,"stateBlockNumber":100}}`)
	})

	tx, err := b.BuildArbitrageTx(singleHopRequest(), []byte{0x01}, 0)
	require.NoError(t, err)

	_, err = b.Simulate(context.Background(), &Bundle{Txs: []*ethtypes.Transaction{tx}, TargetBlock: 100}, 100)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	result, err := b.Simulate(context.Background(), &Bundle{Txs: []*ethtypes.Transaction{tx}, TargetBlock: 101}, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(263_000), result.TotalGasUsed)
}
