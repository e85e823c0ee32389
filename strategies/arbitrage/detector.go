// Package arbitrage scans registered venues for cross-exchange price
// gaps and turns them into executable loan requests.
package arbitrage

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/flashloan"
	"github.com/polymev/flasharb/ledger"
	"github.com/polymev/flasharb/simulator"
	"github.com/polymev/flasharb/types"
	"github.com/polymev/flasharb/utils"
	umath "github.com/polymev/flasharb/utils/math"
	"github.com/polymev/flasharb/utils/metrics"
)

// Options tune how aggressively the detector sizes candidates.
type Options struct {
	// ProbeFloor is the smallest loan size tried.
	ProbeFloor *big.Int
	// ProbeSteps doubles the probe this many times past the floor.
	ProbeSteps int
	// SlippageBps shaves the per-hop minimums below their quotes.
	SlippageBps int64
	// FeeTier is the flash pool fee in parts per million.
	FeeTier *big.Int
}

// Detector finds two-hop round trips that remain profitable after the
// loan fee, simulation and the gas bill.
type Detector struct {
	cfg      *config.Config
	registry *dex.Registry
	sim      *simulator.Simulator
	calc     *utils.ProfitCalculator
	metrics  *metrics.StrategyMetrics
	logger   *zap.Logger
	opts     Options
}

// candidate is one sized round trip: borrow amount of token0, buy
// token1, sell it back, repay amount plus the flash fee.
type candidate struct {
	amount *big.Int
	hop1   *big.Int
	final  *big.Int
	profit *big.Int
}

// NewDetector wires a detector against the shared registry and
// simulator.
func NewDetector(cfg *config.Config, registry *dex.Registry, sim *simulator.Simulator, m *metrics.StrategyMetrics, logger *zap.Logger, opts Options) (*Detector, error) {
	if registry == nil {
		return nil, apperror.Validation("nil registry")
	}
	if sim == nil {
		return nil, apperror.Validation("nil simulator")
	}

	if opts.ProbeFloor == nil || opts.ProbeFloor.Sign() <= 0 {
		opts.ProbeFloor = big.NewInt(1_000_000_000_000_000) // 0.001 of an 18-decimal token
	}
	if opts.ProbeSteps <= 0 {
		opts.ProbeSteps = 16
	}
	if opts.SlippageBps <= 0 {
		opts.SlippageBps = 30
	}
	if opts.FeeTier == nil || opts.FeeTier.Sign() <= 0 {
		opts.FeeTier = new(big.Int).SetUint64(cfg.GetDefaultFee())
	}

	return &Detector{
		cfg:      cfg,
		registry: registry,
		sim:      sim,
		calc:     utils.NewProfitCalculator(cfg),
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Scan probes every ordered pair of configured tokens and returns the
// surviving opportunities, most profitable first.
func (d *Detector) Scan(ctx context.Context, state *ledger.Ledger, gasPrice *big.Int) []*types.Opportunity {
	tokens := make([]common.Address, 0, len(d.cfg.Tokens))
	for _, addr := range d.cfg.Tokens {
		tokens = append(tokens, addr)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return bytes.Compare(tokens[i][:], tokens[j][:]) < 0
	})

	var all []*types.Opportunity
	for _, token0 := range tokens {
		for _, token1 := range tokens {
			if token0 == token1 {
				continue
			}
			all = append(all, d.ScanPair(ctx, state, token0, token1, gasPrice)...)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ExpectedProfit.Cmp(all[j].ExpectedProfit) > 0
	})
	return all
}

// ScanPair probes every ordered venue pair for a round trip that
// borrows token0, crosses through token1 and comes back ahead.
func (d *Detector) ScanPair(ctx context.Context, state *ledger.Ledger, token0, token1 common.Address, gasPrice *big.Int) []*types.Opportunity {
	start := time.Now()
	defer func() { d.metrics.DetectTime.Observe(time.Since(start).Seconds()) }()

	routers := d.routers()
	var opportunities []*types.Opportunity
	for i, buy := range routers {
		for j, sell := range routers {
			if i == j {
				continue
			}
			d.metrics.Scans.Inc()
			if opp := d.probe(ctx, state, buy, sell, token0, token1, gasPrice); opp != nil {
				opportunities = append(opportunities, opp)
			}
		}
	}
	return opportunities
}

// probe sizes and vets one (buy venue, sell venue) ordering.
func (d *Detector) probe(ctx context.Context, state *ledger.Ledger, buy, sell dex.Router, token0, token1 common.Address, gasPrice *big.Int) *types.Opportunity {
	floor := d.opts.ProbeFloor

	// Screen: token1 must be cheaper on the buy venue.
	buyQuote, err := buy.Quote(ctx, state, token0, token1, d.opts.FeeTier, floor)
	if err != nil {
		return nil
	}
	sellQuote, err := sell.Quote(ctx, state, token0, token1, d.opts.FeeTier, floor)
	if err != nil {
		return nil
	}
	spread := umath.SpreadBps(buyQuote, sellQuote)
	d.metrics.SpreadBps.Observe(float64(spread.Int64()))
	if buyQuote.Cmp(sellQuote) <= 0 {
		return nil
	}

	var best *candidate
	amount := new(big.Int).Set(floor)
	for step := 0; step <= d.opts.ProbeSteps; step++ {
		if cand := d.roundTrip(ctx, state, buy, sell, token0, token1, amount); cand != nil {
			if best == nil || cand.profit.Cmp(best.profit) > 0 {
				best = cand
			}
		}
		amount = new(big.Int).Lsh(amount, 1)
	}
	if best == nil || best.profit.Sign() <= 0 {
		d.metrics.Rejected.Inc()
		return nil
	}

	req := d.buildRequest(buy, sell, token0, token1, best)
	result, err := d.sim.Simulate(ctx, state, req)
	if err != nil || !result.Profitable {
		d.metrics.Rejected.Inc()
		return nil
	}

	opp := &types.Opportunity{
		Request:        req,
		ExpectedProfit: result.Profit0,
		GasEstimate:    result.GasLimit,
	}
	net, ok, err := d.calc.Evaluate(opp, gasPrice)
	if err != nil || !ok {
		d.metrics.Rejected.Inc()
		return nil
	}

	d.metrics.Opportunities.Inc()
	grossProfit, _ := new(big.Float).SetInt(result.Profit0).Float64()
	d.metrics.ProfitWei.Add(grossProfit)
	d.logger.Info("Arbitrage opportunity",
		zap.String("buy", buy.Name()),
		zap.String("sell", sell.Name()),
		zap.String("token0", token0.Hex()),
		zap.String("token1", token1.Hex()),
		zap.String("loan", best.amount.String()),
		zap.String("net_profit", net.String()))
	return opp
}

// roundTrip quotes borrow -> buy -> sell -> repay at one loan size.
func (d *Detector) roundTrip(ctx context.Context, state *ledger.Ledger, buy, sell dex.Router, token0, token1 common.Address, amount *big.Int) *candidate {
	hop1, err := buy.Quote(ctx, state, token0, token1, d.opts.FeeTier, amount)
	if err != nil || hop1.Sign() == 0 {
		return nil
	}
	final, err := sell.Quote(ctx, state, token1, token0, d.opts.FeeTier, hop1)
	if err != nil || final.Sign() == 0 {
		return nil
	}
	owed := new(big.Int).Add(amount, flashloan.FlashFee(amount, d.opts.FeeTier))
	return &candidate{
		amount: new(big.Int).Set(amount),
		hop1:   hop1,
		final:  final,
		profit: new(big.Int).Sub(final, owed),
	}
}

func (d *Detector) buildRequest(buy, sell dex.Router, token0, token1 common.Address, best *candidate) *types.ArbitrageRequest {
	minOut1 := new(big.Int).Sub(best.hop1, umath.ApplyBps(best.hop1, d.opts.SlippageBps))
	minOut2 := new(big.Int).Sub(best.final, umath.ApplyBps(best.final, d.opts.SlippageBps))
	return &types.ArbitrageRequest{
		Path:    []common.Address{token0, token1, token0},
		Amounts: []*big.Int{best.amount, best.hop1},
		Routers: []common.Address{buy.Address(), sell.Address()},
		MinOuts: []*big.Int{minOut1, minOut2},
		FeeTier: d.opts.FeeTier,
		Amount0: best.amount,
		Amount1: new(big.Int),
	}
}

// routers returns the registered adapters in a stable order.
func (d *Detector) routers() []dex.Router {
	addrs := d.registry.Addresses()
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	list := make([]dex.Router, 0, len(addrs))
	for _, addr := range addrs {
		if router, err := d.registry.Lookup(addr); err == nil {
			list = append(list, router)
		}
	}
	return list
}
