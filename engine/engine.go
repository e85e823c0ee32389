// Package engine implements the atomic arbitrage unit: flash-borrow,
// ordered swap chain, repayment and surplus distribution, committed
// all-or-nothing against the host ledger.
package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/flashloan"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/types"
)

// Engine is the execution core. One unit of work runs at a time; the
// ledger snapshot taken on entry is reverted on any failure inside the
// unit.
type Engine struct {
	mu       sync.Mutex
	cfg      *config.Config
	address  common.Address
	registry *dex.Registry
	loans    *flashloan.Manager
	logger   *zap.Logger

	// pending correlates the in-flight borrow with its callback. Only
	// one may exist because units are serialized.
	pending *pendingCallback

	metrics struct {
		unitsExecuted prometheus.Counter
		unitsReverted prometheus.Counter
		latency       prometheus.Histogram
	}
}

type pendingCallback struct {
	pool     common.Address
	consumed bool
	result   *types.ExecutionResult
}

// New creates the engine. cfg.EngineAddress is the engine's own
// account on the ledger.
func New(cfg *config.Config, registry *dex.Registry, loans *flashloan.Manager, logger *zap.Logger) (*Engine, error) {
	if cfg.EngineAddress == (common.Address{}) {
		return nil, apperror.Validation("engine address is not configured")
	}
	e := &Engine{
		cfg:      cfg,
		address:  cfg.EngineAddress,
		registry: registry,
		loans:    loans,
		logger:   logger,
	}

	e.metrics.unitsExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_units_executed_total",
		Help: "Number of units committed",
	})
	e.metrics.unitsReverted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_units_reverted_total",
		Help: "Number of units rolled back",
	})
	e.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_unit_latency_seconds",
		Help:    "Latency of one unit of work",
		Buckets: prometheus.DefBuckets,
	})

	return e, nil
}

// Address returns the engine's ledger account.
func (e *Engine) Address() common.Address {
	return e.address
}

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.cfg.GetOwner() {
		return apperror.Authorization("caller %s is not the owner", caller.Hex())
	}
	return nil
}

func (e *Engine) requireCoordinator(caller common.Address) error {
	if caller != e.cfg.GetCoordinator() {
		return apperror.Authorization("caller %s is not the coordinator", caller.Hex())
	}
	return nil
}

// requireExpectedPool recomputes the pool address from the request and
// rejects a caller that does not match it.
func (e *Engine) requireExpectedPool(caller common.Address, req *types.ArbitrageRequest) error {
	pool, err := e.loans.Pool(req.Token0, req.Token1, req.FeeTier)
	if err != nil {
		return err
	}
	if caller != pool.Address() {
		return apperror.Authorization("callback caller %s is not the derived pool %s",
			caller.Hex(), pool.Address().Hex())
	}
	return nil
}

// ExecuteArbitrage runs one unit for the owner: borrow, swap chain,
// repay, sweep the surplus to the owner.
func (e *Engine) ExecuteArbitrage(ctx context.Context, state *ledger.Ledger, caller common.Address, req *types.ArbitrageRequest) (*types.ExecutionResult, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, state, req, func(s *ledger.Ledger) error {
		return e.sweep(s, req)
	})
}

// run executes the borrow cycle plus the distribution step under a
// single snapshot. Any error reverts every mutation of the unit and
// propagates unchanged.
func (e *Engine) run(ctx context.Context, state *ledger.Ledger, req *types.ArbitrageRequest, distribute func(*ledger.Ledger) error) (*types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() {
		e.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	pool, err := e.loans.Pool(req.Token0, req.Token1, req.FeeTier)
	if err != nil {
		return nil, err
	}
	data, err := flashloan.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	snap := state.Snapshot()
	e.pending = &pendingCallback{pool: pool.Address()}
	defer func() { e.pending = nil }()

	revert := func(cause error) (*types.ExecutionResult, error) {
		state.RevertToSnapshot(snap)
		e.metrics.unitsReverted.Inc()
		e.logger.Warn("Unit reverted",
			zap.String("pool", pool.Address().Hex()),
			zap.Error(cause))
		return nil, cause
	}

	if err := e.loans.Flash(ctx, state, req, e.address, e, data); err != nil {
		return revert(err)
	}
	if !e.pending.consumed || e.pending.result == nil {
		return revert(apperror.ExternalCall("pool %s never delivered the flash callback", pool.Address().Hex()))
	}
	result := e.pending.result

	if err := distribute(state); err != nil {
		return revert(err)
	}

	e.metrics.unitsExecuted.Inc()
	e.logger.Info("Unit committed",
		zap.String("pool", pool.Address().Hex()),
		zap.Int("hops", req.Hops()),
		zap.String("profit0", result.Profit0.String()),
		zap.String("profit1", result.Profit1.String()))
	return result, nil
}

// sweep moves the engine's remaining holdings of the borrowed tokens
// to the owner.
func (e *Engine) sweep(state *ledger.Ledger, req *types.ArbitrageRequest) error {
	owner := e.cfg.GetOwner()
	for _, token := range []common.Address{req.Token0, req.Token1} {
		balance := state.BalanceOf(token, e.address)
		if balance.Sign() == 0 {
			continue
		}
		if err := state.Transfer(token, e.address, owner, balance); err != nil {
			return err
		}
	}
	return nil
}

// Withdraw sweeps the engine's full holdings of one token to the
// owner. The zero address withdraws native currency. Owner only.
func (e *Engine) Withdraw(state *ledger.Ledger, caller, token common.Address) (*big.Int, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	owner := e.cfg.GetOwner()

	if token == types.NativeToken {
		amount := state.NativeBalanceOf(e.address)
		if amount.Sign() > 0 {
			if err := state.TransferNative(e.address, owner, amount); err != nil {
				return nil, err
			}
		}
		return amount, nil
	}

	amount := state.BalanceOf(token, e.address)
	if amount.Sign() > 0 {
		if err := state.Transfer(token, e.address, owner, amount); err != nil {
			return nil, err
		}
	}
	return amount, nil
}
