package mempool

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/utils/metrics"
)

// Monitor subscribes to the pending-transaction feed and emits the
// swaps worth inspecting.
type Monitor struct {
	cfg      *config.Config
	client   Client
	analyzer *Analyzer
	index    *Indexer
	limiter  *rate.Limiter
	metrics  *metrics.MempoolMetrics
	logger   *zap.Logger

	out      chan *PendingSwap
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor wires the monitor against the node surface.
func NewMonitor(cfg *config.Config, client Client, analyzer *Analyzer, m *metrics.MempoolMetrics, logger *zap.Logger) (*Monitor, error) {
	if client == nil {
		return nil, apperror.Validation("nil client")
	}
	if analyzer == nil {
		return nil, apperror.Validation("nil analyzer")
	}

	// The dedupe window is far wider than the in-flight queue so a
	// hash re-announced minutes later still reads as seen.
	index, err := NewIndexer(cfg.MaxPendingTxns * 64)
	if err != nil {
		return nil, err
	}

	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Monitor{
		cfg:      cfg,
		client:   client,
		analyzer: analyzer,
		index:    index,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
		logger:   logger,
		out:      make(chan *PendingSwap, cfg.MaxPendingTxns),
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to the feed and launches the workers. The returned
// channel closes once Stop has drained them.
func (m *Monitor) Start(ctx context.Context) (<-chan *PendingSwap, error) {
	hashes := make(chan common.Hash, m.cfg.MaxPendingTxns)
	sub, err := m.client.SubscribePendingTransactions(ctx, hashes)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExternalCall, err, "failed to subscribe to pending transactions")
	}

	workers := m.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i, hashes)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer sub.Unsubscribe()
		select {
		case <-ctx.Done():
		case <-m.done:
		case err := <-sub.Err():
			if err != nil {
				m.logger.Error("Pending transaction subscription failed", zap.Error(err))
			}
		}
	}()

	m.logger.Info("Mempool monitor started",
		zap.Int("workers", workers),
		zap.Int("queue", m.cfg.MaxPendingTxns))
	return m.out, nil
}

// Stop halts the workers and closes the output channel.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		close(m.out)
	})
}

func (m *Monitor) worker(ctx context.Context, id int, hashes <-chan common.Hash) {
	defer m.wg.Done()

	if len(m.cfg.CPUAffinity) > 0 {
		core := m.cfg.CPUAffinity[id%len(m.cfg.CPUAffinity)]
		if core >= 0 {
			if err := pinThread(core); err != nil {
				m.logger.Warn("Failed to pin worker",
					zap.Int("worker", id),
					zap.Int("core", core),
					zap.Error(err))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case hash := <-hashes:
			m.metrics.QueueDepth.Set(float64(len(hashes)))
			m.handle(ctx, hash)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, hash common.Hash) {
	m.metrics.Seen.Inc()
	if m.index.Seen(hash) {
		m.metrics.Duplicates.Inc()
		return
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return
	}

	start := time.Now()
	defer func() { m.metrics.ProcessTime.Observe(time.Since(start).Seconds()) }()

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()
	tx, pending, err := m.client.TransactionByHash(fetchCtx, hash)
	if err != nil {
		m.metrics.Dropped.Inc()
		m.logger.Debug("Failed to fetch pending transaction",
			zap.String("hash", hash.Hex()),
			zap.Error(err))
		return
	}
	if !pending || tx == nil {
		m.metrics.Dropped.Inc()
		return
	}

	if feeCap := tx.GasFeeCap(); feeCap != nil {
		observed, _ := new(big.Float).SetInt(feeCap).Float64()
		m.metrics.GasPrice.Observe(observed)
		if m.cfg.MaxGasPrice != nil && feeCap.Cmp(m.cfg.MaxGasPrice) > 0 {
			m.metrics.Dropped.Inc()
			return
		}
	}

	swap, ok := m.analyzer.Candidate(tx, time.Now())
	if !ok {
		m.metrics.Dropped.Inc()
		return
	}
	m.metrics.Decoded.Inc()

	select {
	case m.out <- swap:
	case <-ctx.Done():
	case <-m.done:
	}
}
