// Package simulator dry-runs arbitrage units on a copy of the ledger
// before any block space is bid on them.
package simulator

import (
	"context"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/engine"
	"github.com/polymev/flasharb/flashloan"
	"github.com/polymev/flasharb/gas"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/types"
)

// Result is the outcome of one dry run. A unit that executes but
// breaks even comes back with Profitable false and an empty Reason.
type Result struct {
	Profitable bool
	Profit0    *big.Int
	Profit1    *big.Int
	GasLimit   uint64
	Reason     string
}

// cache entries are only valid for the block they were computed at.
type cacheKey struct {
	digest uint64
	block  uint64
}

// Simulator replays candidate units through the engine against a
// cloned ledger and memoizes the outcome per request and block.
type Simulator struct {
	engine *engine.Engine
	from   common.Address
	logger *zap.Logger
	cache  *lru.Cache

	metrics struct {
		runs      prometheus.Counter
		cacheHits prometheus.Counter
		rejected  prometheus.Counter
	}
}

// New creates a simulator. from must hold execution rights on the
// engine or every dry run will come back rejected.
func New(eng *engine.Engine, from common.Address, cacheSize int, logger *zap.Logger) (*Simulator, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		engine: eng,
		from:   from,
		logger: logger,
		cache:  cache,
	}
	s.metrics.runs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_runs_total",
		Help: "Number of dry runs executed",
	})
	s.metrics.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_cache_hits_total",
		Help: "Number of dry runs served from cache",
	})
	s.metrics.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_rejected_total",
		Help: "Number of dry runs that failed to commit",
	})
	return s, nil
}

// Simulate dry-runs req against state and reports whether the unit
// would commit and what it would clear. state is never mutated.
func (s *Simulator) Simulate(ctx context.Context, state *ledger.Ledger, req *types.ArbitrageRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data, err := flashloan.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	key := cacheKey{digest: xxhash.Sum64(data), block: state.BlockNumber()}
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.cacheHits.Inc()
		return cached.(*Result), nil
	}

	s.metrics.runs.Inc()
	res := s.dryRun(ctx, state, req)
	s.cache.Add(key, res)
	return res, nil
}

func (s *Simulator) dryRun(ctx context.Context, state *ledger.Ledger, req *types.ArbitrageRequest) *Result {
	scratch := state.Clone()
	gasLimit := gas.EstimateArbitrageGas(req.Hops())

	execRes, err := s.engine.ExecuteArbitrage(ctx, scratch, s.from, req)
	if err != nil {
		s.metrics.rejected.Inc()
		s.logger.Debug("Dry run rejected unit",
			zap.String("reason", apperror.KindOf(err).String()),
			zap.Error(err))
		return &Result{GasLimit: gasLimit, Reason: apperror.KindOf(err).String()}
	}

	return &Result{
		Profitable: execRes.Profit0.Sign() > 0 || execRes.Profit1.Sign() > 0,
		Profit0:    execRes.Profit0,
		Profit1:    execRes.Profit1,
		GasLimit:   gasLimit,
	}
}

// CacheLen reports how many outcomes are memoized.
func (s *Simulator) CacheLen() int {
	return s.cache.Len()
}
