package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polymev/flasharb/apperror"
)

var (
	wmatic = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	usdc   = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestMintAndTransfer(t *testing.T) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(1000))

	require.NoError(t, l.Transfer(wmatic, alice, bob, big.NewInt(400)))
	assert.Equal(t, big.NewInt(600), l.BalanceOf(wmatic, alice))
	assert.Equal(t, big.NewInt(400), l.BalanceOf(wmatic, bob))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(10))

	err := l.Transfer(wmatic, alice, bob, big.NewInt(11))
	require.Error(t, err)
	assert.True(t, apperror.IsExternalCall(err))
	assert.Equal(t, big.NewInt(10), l.BalanceOf(wmatic, alice))
	assert.Equal(t, int64(0), l.BalanceOf(wmatic, bob).Int64())
}

func TestApproveAndTransferFrom(t *testing.T) {
	l := New()
	l.Mint(usdc, alice, big.NewInt(100))
	l.Approve(usdc, alice, bob, big.NewInt(60))

	require.NoError(t, l.TransferFrom(usdc, alice, bob, carol, big.NewInt(50)))
	assert.Equal(t, big.NewInt(50), l.BalanceOf(usdc, carol))
	assert.Equal(t, big.NewInt(10), l.Allowance(usdc, alice, bob))

	err := l.TransferFrom(usdc, alice, bob, carol, big.NewInt(11))
	require.Error(t, err)
	assert.True(t, apperror.IsExternalCall(err))
}

func TestApproveReplacesPriorAllowance(t *testing.T) {
	l := New()
	l.Approve(usdc, alice, bob, big.NewInt(500))
	l.Approve(usdc, alice, bob, big.NewInt(0))
	l.Approve(usdc, alice, bob, big.NewInt(25))
	assert.Equal(t, big.NewInt(25), l.Allowance(usdc, alice, bob))
}

func TestSnapshotRevert(t *testing.T) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(1000))
	l.MintNative(alice, big.NewInt(7))

	snap := l.Snapshot()

	require.NoError(t, l.Transfer(wmatic, alice, bob, big.NewInt(999)))
	l.Approve(wmatic, alice, carol, big.NewInt(123))
	require.NoError(t, l.TransferNative(alice, bob, big.NewInt(7)))
	l.Mint(usdc, bob, big.NewInt(55))

	l.RevertToSnapshot(snap)

	assert.Equal(t, big.NewInt(1000), l.BalanceOf(wmatic, alice))
	assert.Equal(t, int64(0), l.BalanceOf(wmatic, bob).Int64())
	assert.Equal(t, int64(0), l.Allowance(wmatic, alice, carol).Int64())
	assert.Equal(t, big.NewInt(7), l.NativeBalanceOf(alice))
	assert.Equal(t, int64(0), l.BalanceOf(usdc, bob).Int64())
}

func TestNestedSnapshots(t *testing.T) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(100))

	outer := l.Snapshot()
	require.NoError(t, l.Transfer(wmatic, alice, bob, big.NewInt(10)))

	inner := l.Snapshot()
	require.NoError(t, l.Transfer(wmatic, alice, bob, big.NewInt(20)))

	l.RevertToSnapshot(inner)
	assert.Equal(t, big.NewInt(90), l.BalanceOf(wmatic, alice))

	l.RevertToSnapshot(outer)
	assert.Equal(t, big.NewInt(100), l.BalanceOf(wmatic, alice))
}

func TestNativeTransferShortfall(t *testing.T) {
	l := New()
	l.MintNative(alice, big.NewInt(3))

	err := l.TransferNative(alice, bob, big.NewInt(5))
	require.Error(t, err)
	assert.True(t, apperror.IsExternalCall(err))
	assert.Equal(t, big.NewInt(3), l.NativeBalanceOf(alice))
	assert.Equal(t, int64(0), l.NativeBalanceOf(bob).Int64())
}

func TestCloneIsIndependent(t *testing.T) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(500))
	l.SetBlock(42, 4200)

	c := l.Clone()
	require.NoError(t, c.Transfer(wmatic, alice, bob, big.NewInt(500)))

	assert.Equal(t, big.NewInt(500), l.BalanceOf(wmatic, alice))
	assert.Equal(t, int64(0), c.BalanceOf(wmatic, alice).Int64())
	assert.Equal(t, uint64(42), c.BlockNumber())
	assert.Equal(t, uint64(4200), c.Timestamp())
}

func TestBlockClock(t *testing.T) {
	l := New()
	l.SetBlock(123456, 1700000000)
	assert.Equal(t, uint64(123456), l.BlockNumber())
	assert.Equal(t, uint64(1700000000), l.Timestamp())
}

func BenchmarkSnapshotRevert(b *testing.B) {
	l := New()
	l.Mint(wmatic, alice, big.NewInt(1<<40))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap := l.Snapshot()
		_ = l.Transfer(wmatic, alice, bob, big.NewInt(1))
		l.RevertToSnapshot(snap)
	}
}
