// Package gas tracks EIP-1559 fee levels and prices arbitrage units.
package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
)

// Client is the node surface the estimator polls.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

const (
	// txBaseGas is the flat cost of any transaction.
	txBaseGas = 21_000

	// flashLoanGas covers the borrow, the callback dispatch and the
	// repayment accounting around the hop chain.
	flashLoanGas = 90_000

	// hopGas approximates one swap hop: storage reads, two token
	// transfers and the swap itself.
	hopGas = 152_000
)

// EstimateArbitrageGas returns the gas limit budgeted for a
// flash-borrow unit with the given number of hops.
func EstimateArbitrageGas(numHops int) uint64 {
	if numHops < 0 {
		numHops = 0
	}
	return txBaseGas + flashLoanGas + hopGas*uint64(numHops)
}

// Estimator polls the chain for base fee and tip suggestions and
// serves them to the bundler and the profit calculator.
type Estimator struct {
	client   Client
	logger   *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	baseFee *big.Int
	tipCap  *big.Int

	done     chan struct{}
	stopOnce sync.Once
}

// NewEstimator creates an estimator. Call Start to begin polling or
// Refresh to fetch once.
func NewEstimator(client Client, logger *zap.Logger, interval time.Duration) *Estimator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Estimator{
		client:   client,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. It returns immediately; the loop
// exits when ctx is cancelled or Stop is called.
func (e *Estimator) Start(ctx context.Context) {
	go e.loop(ctx)
}

func (e *Estimator) loop(ctx context.Context) {
	if err := e.Refresh(ctx); err != nil {
		e.logger.Error("Failed to refresh gas prices", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil {
				e.logger.Error("Failed to refresh gas prices", zap.Error(err))
			}
		}
	}
}

// Stop halts the polling loop.
func (e *Estimator) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// Refresh fetches the latest base fee and tip suggestion.
func (e *Estimator) Refresh(ctx context.Context) error {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get latest header: %w", err)
	}
	if header.BaseFee == nil {
		return fmt.Errorf("header %d carries no base fee", header.Number)
	}

	tipCap, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tip suggestion: %w", err)
	}

	e.mu.Lock()
	e.baseFee = new(big.Int).Set(header.BaseFee)
	e.tipCap = new(big.Int).Set(tipCap)
	e.mu.Unlock()

	return nil
}

// SuggestFees returns the fee cap and tip cap for an EIP-1559
// transaction. The fee cap leaves headroom for one full base-fee
// doubling.
func (e *Estimator) SuggestFees() (maxFeePerGas, maxPriorityFeePerGas *big.Int, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.baseFee == nil || e.tipCap == nil {
		return nil, nil, apperror.ExternalCall("gas prices not yet available")
	}

	maxFeePerGas = new(big.Int).Lsh(e.baseFee, 1)
	maxFeePerGas.Add(maxFeePerGas, e.tipCap)
	return maxFeePerGas, new(big.Int).Set(e.tipCap), nil
}

// EstimateGasCost prices a gas limit at the current base fee plus tip.
func (e *Estimator) EstimateGasCost(gasLimit uint64) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.baseFee == nil || e.tipCap == nil {
		return nil, apperror.ExternalCall("gas prices not yet available")
	}

	price := new(big.Int).Add(e.baseFee, e.tipCap)
	return price.Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}
