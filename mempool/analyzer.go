package mempool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/dex"
	"github.com/polymev/flasharb/utils"
)

// Analyzer filters raw transactions down to swaps on recognized
// routers.
type Analyzer struct {
	registry *dex.Registry
	decoder  *utils.TransactionDecoder
	signer   ethtypes.Signer
	logger   *zap.Logger
}

// NewAnalyzer builds an analyzer for the given chain.
func NewAnalyzer(chainID uint64, registry *dex.Registry, logger *zap.Logger) (*Analyzer, error) {
	if registry == nil {
		return nil, apperror.Validation("nil registry")
	}
	decoder, err := utils.NewTransactionDecoder(logger)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		registry: registry,
		decoder:  decoder,
		signer:   ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
		logger:   logger,
	}, nil
}

// Candidate decodes tx if it is a swap against a registered router.
// The second return is false for everything else.
func (a *Analyzer) Candidate(tx *ethtypes.Transaction, firstSeen time.Time) (*PendingSwap, bool) {
	if tx == nil || tx.To() == nil {
		return nil, false
	}
	router := *tx.To()
	if _, err := a.registry.Lookup(router); err != nil {
		return nil, false
	}
	decoded, err := a.decoder.DecodeSwap(tx.Data())
	if err != nil {
		a.logger.Debug("Router call is not a recognized swap",
			zap.String("hash", tx.Hash().Hex()),
			zap.Error(err))
		return nil, false
	}

	// Sender recovery is best effort; the swap is usable without it.
	from, err := ethtypes.Sender(a.signer, tx)
	if err != nil {
		from = common.Address{}
	}

	return &PendingSwap{
		Hash:      tx.Hash(),
		From:      from,
		Router:    router,
		Swap:      decoded,
		GasFeeCap: tx.GasFeeCap(),
		GasTipCap: tx.GasTipCap(),
		FirstSeen: firstSeen,
		Raw:       tx,
	}, true
}
