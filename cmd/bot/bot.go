// Package bot assembles the full pipeline: one node connection feeds
// the mempool watcher, the gas tracker and the per-block reserve sync;
// the detector prices round trips on the synced ledger, the simulator
// vets them and the bundler pushes survivors to the relay.
package bot

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/dex/uniswap"
	"github.com/polymev/flasharb/engine"
	"github.com/polymev/flasharb/flashbots"
	"github.com/polymev/flasharb/flashloan"
	"github.com/polymev/flasharb/gas"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/mempool"
	"github.com/polymev/flasharb/simulator"
	"github.com/polymev/flasharb/strategies/arbitrage"
	"github.com/polymev/flasharb/types"
	"github.com/polymev/flasharb/utils/metrics"
	sysmon "github.com/polymev/flasharb/utils/monitor"
)

const erc20BalanceOfABI = `[{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Bot owns every long-lived component and the main event loop.
type Bot struct {
	cfg        *config.Config
	node       *mempool.NodeClient
	registry   *dex.Registry
	loans      *flashloan.Manager
	sim        *simulator.Simulator
	detector   *arbitrage.Detector
	estimator  *gas.Estimator
	monitor    *mempool.Monitor
	bundler    *flashbots.Bundler
	metrics    *metrics.Metrics
	system     *sysmon.SystemMonitor
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
	erc20      abi.ABI
	pairs      map[common.Address]*uniswap.PairCaller
	logger     *zap.Logger

	mu    sync.Mutex
	state *ledger.Ledger
}

// New wires the bot. The config must carry a signing key; the same key
// signs trigger transactions and authenticates to the relay.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	if cfg.PrivateKey == "" {
		return nil, apperror.Validation("no signing key configured; set %s", config.EnvPrivateKey)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "malformed signing key")
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	loans := flashloan.NewManager(cfg.PoolFactory, logger)
	eng, err := engine.New(cfg, registry, loans, logger)
	if err != nil {
		return nil, err
	}
	sim, err := simulator.New(eng, cfg.GetOwner(), 0, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New("flasharb")
	detector, err := arbitrage.NewDetector(cfg, registry, sim, m.Strategy, logger, arbitrage.Options{})
	if err != nil {
		return nil, err
	}

	erc20, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	node, err := mempool.Dial(ctx, cfg.WSEndpoint)
	if err != nil {
		return nil, err
	}
	analyzer, err := mempool.NewAnalyzer(cfg.ChainID, registry, logger)
	if err != nil {
		node.Close()
		return nil, err
	}
	watcher, err := mempool.NewMonitor(cfg, node, analyzer, m.Mempool, logger)
	if err != nil {
		node.Close()
		return nil, err
	}

	estimator := gas.NewEstimator(node, logger, time.Second)
	relay := flashbots.NewClient(cfg.RelayURL, key, logger)

	return &Bot{
		cfg:        cfg,
		node:       node,
		registry:   registry,
		loans:      loans,
		sim:        sim,
		detector:   detector,
		estimator:  estimator,
		monitor:    watcher,
		bundler:    flashbots.NewBundler(relay, estimator, cfg, key, m.Bundle, logger),
		metrics:    m,
		system:     sysmon.NewSystemMonitor(m.System, logger, cfg.MetricsInterval),
		signer:     key,
		signerAddr: crypto.PubkeyToAddress(key.PublicKey),
		erc20:      erc20,
		pairs:      make(map[common.Address]*uniswap.PairCaller),
		logger:     logger,
	}, nil
}

// buildRegistry instantiates an adapter per configured exchange.
func buildRegistry(cfg *config.Config) (*dex.Registry, error) {
	registry := dex.NewRegistry()
	for _, ex := range cfg.Exchanges {
		var (
			router dex.Router
			err    error
		)
		switch ex.Kind {
		case "v2":
			router, err = uniswap.NewV2Router(ex.Name, ex.Router, ex.Factory, ex.InitCodeHash)
		case "v3":
			router, err = uniswap.NewV3Router(ex.Router, ex.Factory)
		default:
			err = apperror.Validation("exchange %q has unknown kind %q", ex.Name, ex.Kind)
		}
		if err != nil {
			return nil, err
		}
		if err := registry.Register(router); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Run drives the event loop until ctx is cancelled or a subscription
// dies. A clean cancellation returns nil.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.estimator.Start(ctx)
	defer b.estimator.Stop()
	b.system.Start(ctx)
	defer b.system.Stop()

	swaps, err := b.monitor.Start(ctx)
	if err != nil {
		return err
	}
	defer b.monitor.Stop()

	heads := make(chan *ethtypes.Header, 16)
	sub, err := b.node.SubscribeNewHead(ctx, heads)
	if err != nil {
		return apperror.Wrap(apperror.KindExternalCall, err, "failed to subscribe to new heads")
	}
	defer sub.Unsubscribe()

	interval := b.cfg.MetricsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.logger.Info("Arbitrage engine started",
		zap.Uint64("chain_id", b.cfg.ChainID),
		zap.Int("exchanges", b.registry.Len()),
		zap.Int("tokens", len(b.cfg.Tokens)),
		zap.String("relay", b.cfg.RelayURL),
		zap.String("signer", b.signerAddr.Hex()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return apperror.Wrap(apperror.KindExternalCall, err, "head subscription failed")
		case head := <-heads:
			b.onHead(ctx, head)
		case swap, ok := <-swaps:
			if !ok {
				return nil
			}
			b.onPendingSwap(ctx, swap)
		case <-ticker.C:
			b.metrics.LogSnapshot(b.logger)
		}
	}
}

// Close releases the node connection.
func (b *Bot) Close() {
	b.node.Close()
}

// onHead refreshes the ledger from chain reserves and scans every
// configured pair. Only the best opportunity is submitted; the rest
// price against state the first unit invalidates.
func (b *Bot) onHead(ctx context.Context, head *ethtypes.Header) {
	state := b.syncLedger(ctx, head)

	b.mu.Lock()
	b.state = state
	b.mu.Unlock()

	maxFee, _, err := b.estimator.SuggestFees()
	if err != nil {
		b.logger.Debug("No fee data yet", zap.Error(err))
		return
	}
	opps := b.detector.Scan(ctx, state, maxFee)
	if len(opps) == 0 {
		return
	}
	b.execute(ctx, opps[0], head.Number.Uint64())
}

// onPendingSwap projects a pending router swap onto the last synced
// ledger and rescans the touched pair. If the swap lands, the pair is
// skewed for everyone who trades after it.
func (b *Bot) onPendingSwap(ctx context.Context, swap *mempool.PendingSwap) {
	b.mu.Lock()
	state := b.state
	b.mu.Unlock()
	if state == nil {
		return
	}

	router, err := b.registry.Lookup(swap.Router)
	if err != nil {
		return
	}
	decoded := swap.Swap
	if decoded.AmountIn == nil || decoded.AmountIn.Sign() <= 0 {
		return
	}
	recipient := decoded.Recipient
	if recipient == (common.Address{}) {
		recipient = swap.From
	}

	projected := state.Clone()
	projected.Mint(decoded.TokenIn, swap.From, decoded.AmountIn)
	projected.Approve(decoded.TokenIn, swap.From, swap.Router, decoded.AmountIn)
	if _, err := router.SwapExactIn(ctx, projected, swap.From, dex.SwapParams{
		TokenIn:          decoded.TokenIn,
		TokenOut:         decoded.TokenOut,
		FeeTier:          decoded.FeeTier,
		Recipient:        recipient,
		Deadline:         decoded.Deadline,
		AmountIn:         decoded.AmountIn,
		AmountOutMinimum: decoded.AmountOutMin,
	}); err != nil {
		b.logger.Debug("Pending swap does not land locally",
			zap.String("tx_hash", swap.Hash.Hex()),
			zap.Error(err))
		return
	}

	maxFee, _, err := b.estimator.SuggestFees()
	if err != nil {
		return
	}
	opps := b.detector.ScanPair(ctx, projected, decoded.TokenIn, decoded.TokenOut, maxFee)
	opps = append(opps, b.detector.ScanPair(ctx, projected, decoded.TokenOut, decoded.TokenIn, maxFee)...)
	if len(opps) == 0 {
		return
	}

	best := opps[0]
	for _, opp := range opps[1:] {
		if opp.ExpectedProfit.Cmp(best.ExpectedProfit) > 0 {
			best = opp
		}
	}
	b.execute(ctx, best, state.BlockNumber())
}

// execute turns an opportunity into a signed trigger transaction and
// fans it across the submission window.
func (b *Bot) execute(ctx context.Context, opp *types.Opportunity, currentBlock uint64) {
	encoded, err := flashloan.EncodeRequest(opp.Request)
	if err != nil {
		b.logger.Error("Failed to encode request", zap.Error(err))
		return
	}
	nonce, err := b.node.PendingNonceAt(ctx, b.signerAddr)
	if err != nil {
		b.logger.Warn("Failed to fetch nonce", zap.Error(err))
		return
	}
	tx, err := b.bundler.BuildArbitrageTx(opp.Request, encoded, nonce)
	if err != nil {
		b.logger.Error("Failed to build trigger transaction", zap.Error(err))
		return
	}
	hashes, err := b.bundler.SubmitWindow(ctx, []*ethtypes.Transaction{tx}, currentBlock)
	if err != nil {
		b.logger.Warn("Bundle window rejected",
			zap.Uint64("block", currentBlock),
			zap.Error(err))
		return
	}
	b.logger.Info("Arbitrage submitted",
		zap.Uint64("block", currentBlock),
		zap.String("expected_profit", opp.ExpectedProfit.String()),
		zap.Int("accepted", len(hashes)),
		zap.String("tx_hash", tx.Hash().Hex()))
}

// syncLedger builds a fresh ledger holding every venue's reserves and
// every flash pool's balances at the given head. Reads that fail leave
// the account empty, which quoting treats as no liquidity.
func (b *Bot) syncLedger(ctx context.Context, head *ethtypes.Header) *ledger.Ledger {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.NetworkTimeout)
	defer cancel()

	state := ledger.New()
	state.SetBlock(head.Number.Uint64(), head.Time)

	tokens := make([]common.Address, 0, len(b.cfg.Tokens))
	for _, token := range b.cfg.Tokens {
		tokens = append(tokens, token)
	}

	feeTier := new(big.Int).SetUint64(b.cfg.GetDefaultFee())
	for i, token0 := range tokens {
		for _, token1 := range tokens[i+1:] {
			for _, addr := range b.registry.Addresses() {
				router, err := b.registry.Lookup(addr)
				if err != nil {
					continue
				}
				switch r := router.(type) {
				case *uniswap.V2Router:
					b.seedPairReserves(ctx, state, r.PairFor(token0, token1), token0, token1)
				case *uniswap.V3Router:
					b.seedAccount(ctx, state, r.PoolFor(token0, token1, feeTier), token0, token1)
				}
			}
			if pool, err := b.loans.Pool(token0, token1, feeTier); err == nil {
				b.seedAccount(ctx, state, pool.Address(), token0, token1)
			}
		}
	}
	return state
}

// seedPairReserves mirrors a V2 pair's reserves into the ledger.
// Reserve0 belongs to the lower-sorted token, as the contract stores
// them. A pair that does not exist on chain stays empty.
func (b *Bot) seedPairReserves(ctx context.Context, state *ledger.Ledger, pair common.Address, tokenX, tokenY common.Address) {
	caller, ok := b.pairs[pair]
	if !ok {
		var err error
		caller, err = uniswap.NewPairCaller(pair, b.node)
		if err != nil {
			b.logger.Debug("Failed to bind pair", zap.String("pair", pair.Hex()), zap.Error(err))
			return
		}
		b.pairs[pair] = caller
	}

	reserves, err := caller.GetReserves(ctx)
	if err != nil {
		b.logger.Debug("Reserve read failed", zap.String("pair", pair.Hex()), zap.Error(err))
		return
	}
	token0, token1 := uniswap.SortTokens(tokenX, tokenY)
	if reserves.Reserve0.Sign() > 0 {
		state.Mint(token0, pair, reserves.Reserve0)
	}
	if reserves.Reserve1.Sign() > 0 {
		state.Mint(token1, pair, reserves.Reserve1)
	}
}

func (b *Bot) seedAccount(ctx context.Context, state *ledger.Ledger, account common.Address, tokens ...common.Address) {
	for _, token := range tokens {
		balance, err := b.balanceOf(ctx, token, account)
		if err != nil {
			b.logger.Debug("Balance read failed",
				zap.String("token", token.Hex()),
				zap.String("account", account.Hex()),
				zap.Error(err))
			continue
		}
		if balance.Sign() > 0 {
			state.Mint(token, account, balance)
		}
	}
}

func (b *Bot) balanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := b.erc20.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	out, err := b.node.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return new(big.Int), nil
	}
	values, err := b.erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", values[0])
	}
	return balance, nil
}
