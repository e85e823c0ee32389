package flashbots

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/gas"
	"github.com/polymev/flasharb/types"
	"github.com/polymev/flasharb/utils/metrics"
)

// executeArbitrageABI is the engine contract's direct trigger.
const executeArbitrageABI = `[{"inputs":[{"internalType":"bytes","name":"request","type":"bytes"}],"name":"executeArbitrage","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Bundle groups signed transactions bound for one target block.
//
// Window invariant: currentBlock < TargetBlock <= currentBlock +
// maxDelayBlocks at submission time.
type Bundle struct {
	Txs          []*ethtypes.Transaction
	TargetBlock  uint64
	MinTimestamp uint64
	MaxTimestamp uint64
}

// Bundler builds trigger transactions and pushes bundles through the
// relay within the configured block window.
type Bundler struct {
	client    *Client
	estimator *gas.Estimator
	cfg       *config.Config
	signer    *ecdsa.PrivateKey
	metrics   *metrics.BundleMetrics
	logger    *zap.Logger
}

// NewBundler creates a bundler. signer pays for the trigger
// transactions and may differ from the relay auth key.
func NewBundler(client *Client, estimator *gas.Estimator, cfg *config.Config, signer *ecdsa.PrivateKey, m *metrics.BundleMetrics, logger *zap.Logger) *Bundler {
	return &Bundler{
		client:    client,
		estimator: estimator,
		cfg:       cfg,
		signer:    signer,
		metrics:   m,
		logger:    logger,
	}
}

// ValidateWindow enforces the submission window against the live
// maxDelayBlocks setting.
func (b *Bundler) ValidateWindow(currentBlock, targetBlock uint64) error {
	if targetBlock <= currentBlock {
		return apperror.Validation("target block %d must be strictly greater than current block %d",
			targetBlock, currentBlock)
	}
	maxDelay := b.cfg.GetMaxDelayBlocks()
	if targetBlock > currentBlock+maxDelay {
		return apperror.Validation("target block %d is too far ahead of block %d (max delay %d)",
			targetBlock, currentBlock, maxDelay)
	}
	return nil
}

// BuildArbitrageTx wraps an arbitrage request into a signed EIP-1559
// transaction that triggers the engine's direct path.
func (b *Bundler) BuildArbitrageTx(req *types.ArbitrageRequest, encoded []byte, nonce uint64) (*ethtypes.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	trigger, err := abi.JSON(strings.NewReader(executeArbitrageABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse trigger ABI: %w", err)
	}
	calldata, err := trigger.Pack("executeArbitrage", encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to pack trigger call: %w", err)
	}

	maxFee, tip, err := b.estimator.SuggestFees()
	if err != nil {
		return nil, err
	}

	to := b.cfg.EngineAddress
	chainID := new(big.Int).SetUint64(b.cfg.ChainID)
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas.EstimateArbitrageGas(req.Hops()),
		To:        &to,
		Value:     new(big.Int),
		Data:      calldata,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), b.signer)
	if err != nil {
		return nil, err
	}
	b.metrics.Built.Inc()
	return signed, nil
}

// SubmitBundle validates the window, encodes the transactions and
// sends the bundle to the relay.
func (b *Bundler) SubmitBundle(ctx context.Context, bundle *Bundle, currentBlock uint64) (common.Hash, error) {
	if len(bundle.Txs) == 0 {
		return common.Hash{}, apperror.Validation("bundle carries no transactions")
	}
	if err := b.ValidateWindow(currentBlock, bundle.TargetBlock); err != nil {
		b.metrics.Failed.Inc()
		return common.Hash{}, err
	}

	raw := make([]hexutil.Bytes, len(bundle.Txs))
	for i, tx := range bundle.Txs {
		encoded, err := tx.MarshalBinary()
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to encode transaction %d: %w", i, err)
		}
		raw[i] = encoded
	}

	start := time.Now()
	hash, err := b.client.SendBundle(ctx, &SendBundleArgs{
		Txs:          raw,
		BlockNumber:  hexutil.Uint64(bundle.TargetBlock),
		MinTimestamp: bundle.MinTimestamp,
		MaxTimestamp: bundle.MaxTimestamp,
	})
	b.metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		b.metrics.Failed.Inc()
		return common.Hash{}, err
	}

	b.metrics.Submitted.Inc()
	b.logger.Info("Bundle submitted",
		zap.Uint64("target_block", bundle.TargetBlock),
		zap.Int("txs", len(bundle.Txs)),
		zap.String("bundle_hash", hash.Hex()))
	return hash, nil
}

// SubmitWindow fans the same transactions out to every block in the
// window. It succeeds when at least one submission is accepted.
func (b *Bundler) SubmitWindow(ctx context.Context, txs []*ethtypes.Transaction, currentBlock uint64) ([]common.Hash, error) {
	maxDelay := b.cfg.GetMaxDelayBlocks()
	b.metrics.WindowSize.Observe(float64(maxDelay))

	var wg sync.WaitGroup
	hashes := make([]common.Hash, maxDelay)
	errs := make([]error, maxDelay)

	for i := uint64(0); i < maxDelay; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			bundle := &Bundle{Txs: txs, TargetBlock: currentBlock + 1 + i}
			hashes[i], errs[i] = b.SubmitBundle(ctx, bundle, currentBlock)
		}(i)
	}
	wg.Wait()

	accepted := hashes[:0]
	var firstErr error
	for i, err := range errs {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		accepted = append(accepted, hashes[i])
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("all %d submissions failed: %w", maxDelay, firstErr)
	}
	return accepted, nil
}

// Simulate asks the relay to dry-run the bundle against its parent
// block state.
func (b *Bundler) Simulate(ctx context.Context, bundle *Bundle, currentBlock uint64) (*CallBundleResult, error) {
	if err := b.ValidateWindow(currentBlock, bundle.TargetBlock); err != nil {
		return nil, err
	}

	raw := make([]hexutil.Bytes, len(bundle.Txs))
	for i, tx := range bundle.Txs {
		encoded, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction %d: %w", i, err)
		}
		raw[i] = encoded
	}

	return b.client.CallBundle(ctx, &CallBundleArgs{
		Txs:         raw,
		BlockNumber: hexutil.Uint64(bundle.TargetBlock),
	})
}
