package flashloan

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex/uniswap"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/types"
)

// Manager derives and caches flash pools for one factory and runs the
// borrow cycle with instrumentation around it.
type Manager struct {
	mu      sync.RWMutex
	factory common.Address
	pools   map[string]*Pool
	logger  *zap.Logger
	metrics struct {
		loansTotal   prometheus.Counter
		loansFailed  prometheus.Counter
		activeLoans  prometheus.Gauge
		latency      prometheus.Histogram
		volume       prometheus.Counter
		errorsByKind *prometheus.CounterVec
	}
}

// NewManager creates a manager for pools under the given factory.
func NewManager(factory common.Address, logger *zap.Logger) *Manager {
	m := &Manager{
		factory: factory,
		pools:   make(map[string]*Pool),
		logger:  logger,
	}

	m.metrics.loansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flashloan_loans_total",
		Help: "Number of flash loan cycles attempted",
	})
	m.metrics.loansFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flashloan_loans_failed_total",
		Help: "Number of flash loan cycles that reverted",
	})
	m.metrics.activeLoans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flashloan_active_loans",
		Help: "Number of currently open flash loans",
	})
	m.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashloan_execution_latency_seconds",
		Help:    "Latency of one borrow/callback/repay cycle",
		Buckets: prometheus.DefBuckets,
	})
	m.metrics.volume = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flashloan_volume_total",
		Help: "Total principal borrowed across both pool tokens",
	})
	m.metrics.errorsByKind = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashloan_errors_total",
		Help: "Flash loan failures by error kind",
	}, []string{"kind"})

	return m
}

// Factory returns the factory the pools are derived under.
func (m *Manager) Factory() common.Address {
	return m.factory
}

// Pool returns the derived pool for a pair and fee tier, caching the
// derivation.
func (m *Manager) Pool(tokenA, tokenB common.Address, feeTier *big.Int) (*Pool, error) {
	key := poolKey(tokenA, tokenB, feeTier)

	m.mu.RLock()
	pool, ok := m.pools[key]
	m.mu.RUnlock()
	if ok {
		return pool, nil
	}

	pool, err := NewPool(m.factory, tokenA, tokenB, feeTier)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.pools[key]; ok {
		return cached, nil
	}
	m.pools[key] = pool
	return pool, nil
}

// Flash runs one borrow cycle for the request against its derived
// pool.
func (m *Manager) Flash(ctx context.Context, state *ledger.Ledger, req *types.ArbitrageRequest, recipient common.Address, borrower Borrower, data []byte) error {
	start := time.Now()
	defer func() {
		m.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	m.metrics.loansTotal.Inc()
	m.metrics.activeLoans.Inc()
	defer m.metrics.activeLoans.Dec()

	pool, err := m.Pool(req.Token0, req.Token1, req.FeeTier)
	if err != nil {
		m.observeFailure(err)
		return err
	}

	m.logger.Debug("Starting flash loan cycle",
		zap.String("pool", pool.Address().Hex()),
		zap.String("amount0", req.Amount0.String()),
		zap.String("amount1", req.Amount1.String()))

	if err := pool.Flash(ctx, state, recipient, borrower, req.Amount0, req.Amount1, data); err != nil {
		m.observeFailure(err)
		return err
	}

	volume := new(big.Int).Add(req.Amount0, req.Amount1)
	m.metrics.volume.Add(float64(volume.Uint64()))
	return nil
}

// Stats reports attempted and failed cycle counts from the live
// counters.
func (m *Manager) Stats() (total, failed uint64) {
	return uint64(counterValue(m.metrics.loansTotal)), uint64(counterValue(m.metrics.loansFailed))
}

func (m *Manager) observeFailure(err error) {
	m.metrics.loansFailed.Inc()
	m.metrics.errorsByKind.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	if err == nil {
		return "none"
	}
	return apperror.KindOf(err).String()
}

// counterValue snapshots a counter through its wire representation.
func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil || pb.Counter == nil || pb.Counter.Value == nil {
		return 0
	}
	return *pb.Counter.Value
}

func poolKey(tokenA, tokenB common.Address, feeTier *big.Int) string {
	token0, token1 := uniswap.SortTokens(tokenA, tokenB)
	tier := "0"
	if feeTier != nil {
		tier = feeTier.String()
	}
	return fmt.Sprintf("%s:%s:%s", token0.Hex(), token1.Hex(), tier)
}
