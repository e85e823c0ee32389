package utils

import (
	"errors"
	"math/big"

	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/types"
)

// ProfitCalculator nets gas out of simulated surpluses and applies the
// configured submission threshold. Surpluses are denominated in the
// borrow token; gas in native wei. The detector frames its requests
// with the wrapped native token as token0 so the two net directly.
type ProfitCalculator struct {
	cfg *config.Config
}

// NewProfitCalculator creates a new profit calculator
func NewProfitCalculator(cfg *config.Config) *ProfitCalculator {
	return &ProfitCalculator{cfg: cfg}
}

// NetProfit subtracts a gas budget from a gross surplus. The flash
// fee is already netted out of the gross figure by the engine.
func (p *ProfitCalculator) NetProfit(gross, gasCost *big.Int) *big.Int {
	net := new(big.Int)
	if gross != nil {
		net.Set(gross)
	}
	if gasCost != nil {
		net.Sub(net, gasCost)
	}
	return net
}

// MeetsThreshold reports whether a net profit clears the configured
// minimum.
func (p *ProfitCalculator) MeetsThreshold(net *big.Int) bool {
	if net == nil || net.Sign() <= 0 {
		return false
	}
	return net.Cmp(p.cfg.MinProfitThreshold) >= 0
}

// GasAffordable reports whether a gas price is under the configured
// ceiling.
func (p *ProfitCalculator) GasAffordable(gasPrice *big.Int) bool {
	if gasPrice == nil {
		return false
	}
	return gasPrice.Cmp(p.cfg.MaxGasPrice) <= 0
}

// Evaluate prices an opportunity at the given gas price and decides
// whether it is worth submitting.
func (p *ProfitCalculator) Evaluate(opp *types.Opportunity, gasPrice *big.Int) (*big.Int, bool, error) {
	if opp == nil || opp.Request == nil {
		return nil, false, errors.New("no opportunity to evaluate")
	}
	if !p.GasAffordable(gasPrice) {
		return nil, false, nil
	}

	gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(opp.GasEstimate))
	net := p.NetProfit(opp.ExpectedProfit, gasCost)
	return net, p.MeetsThreshold(net), nil
}
