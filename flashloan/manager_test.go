package flashloan

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polymev/flasharb/apperror"
	"github.com/polymev/flasharb/ledger"
)

func TestManagerPoolCaching(t *testing.T) {
	m := NewManager(testFactory, zaptest.NewLogger(t))
	fee := big.NewInt(3000)

	p1, err := m.Pool(tokenA, tokenB, fee)
	require.NoError(t, err)
	p2, err := m.Pool(tokenB, tokenA, fee)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, err := m.Pool(tokenA, tokenB, big.NewInt(500))
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
	assert.NotEqual(t, p1.Address(), p3.Address())
}

func TestManagerFlash(t *testing.T) {
	m := NewManager(testFactory, zaptest.NewLogger(t))
	state := ledger.New()

	req := codecRequest()
	pool, err := m.Pool(req.Token0, req.Token1, req.FeeTier)
	require.NoError(t, err)
	seedPool(t, pool, state, 10_000, 10_000)
	state.Mint(pool.Token0(), borrowerAddr, big.NewInt(10))

	repay := BorrowerFunc(func(_ context.Context, s *ledger.Ledger, _ common.Address, fee0, _ *big.Int, _ []byte) error {
		owed := new(big.Int).Add(req.Amount0, fee0)
		return s.Transfer(pool.Token0(), borrowerAddr, pool.Address(), owed)
	})

	require.NoError(t, m.Flash(context.Background(), state, req, borrowerAddr, repay, nil))

	total, failed := m.Stats()
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(0), failed)
}

func TestManagerFlashFailureCounts(t *testing.T) {
	m := NewManager(testFactory, zaptest.NewLogger(t))
	state := ledger.New()

	req := codecRequest()
	pool, err := m.Pool(req.Token0, req.Token1, req.FeeTier)
	require.NoError(t, err)
	seedPool(t, pool, state, 10_000, 10_000)

	keep := BorrowerFunc(func(_ context.Context, _ *ledger.Ledger, _ common.Address, _, _ *big.Int, _ []byte) error {
		return nil
	})

	err = m.Flash(context.Background(), state, req, borrowerAddr, keep, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientRepayment(err))

	total, failed := m.Stats()
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(1), failed)
}

func BenchmarkPoolDerivation(b *testing.B) {
	m := NewManager(testFactory, zaptest.NewLogger(b))
	fee := big.NewInt(3000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Pool(tokenA, tokenB, fee); err != nil {
			b.Fatal(err)
		}
	}
}
