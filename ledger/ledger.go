// Package ledger implements the in-process host state the engine
// executes against: ERC-20 style token balances, per-spender
// allowances, native-currency balances and a block clock. Every
// mutation is journaled so a unit of work either commits completely or
// is rolled back to its entry snapshot, mirroring the all-or-nothing
// commit of an on-chain transaction.
package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polymev/flasharb/apperror"
)

type balanceKey struct {
	token  common.Address
	holder common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Ledger is the host state. All reads and writes are safe for
// concurrent use; snapshot/revert pairs must bracket a single unit of
// work and are serialized by the engine.
type Ledger struct {
	mu         sync.Mutex
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	native     map[common.Address]*big.Int

	block     uint64
	timestamp uint64

	journal []func()
}

// New creates an empty ledger at block 1.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		native:     make(map[common.Address]*big.Int),
		block:      1,
		timestamp:  1,
	}
}

// SetBlock moves the host clock. Host time is environment, not unit
// state, so it is not journaled.
func (l *Ledger) SetBlock(number, timestamp uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block = number
	l.timestamp = timestamp
}

// BlockNumber returns the host block number.
func (l *Ledger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// Timestamp returns the host clock in seconds.
func (l *Ledger) Timestamp() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timestamp
}

// Snapshot marks the current state and returns an identifier for
// RevertToSnapshot. Snapshots nest.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.journal)
}

// RevertToSnapshot unwinds every mutation recorded after the snapshot
// was taken.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id > len(l.journal) {
		panic(fmt.Sprintf("ledger: invalid snapshot id %d (journal %d)", id, len(l.journal)))
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
}

func (l *Ledger) setBalance(key balanceKey, amount *big.Int) {
	prev, existed := l.balances[key]
	l.journal = append(l.journal, func() {
		if existed {
			l.balances[key] = prev
		} else {
			delete(l.balances, key)
		}
	})
	l.balances[key] = amount
}

func (l *Ledger) setAllowance(key allowanceKey, amount *big.Int) {
	prev, existed := l.allowances[key]
	l.journal = append(l.journal, func() {
		if existed {
			l.allowances[key] = prev
		} else {
			delete(l.allowances, key)
		}
	})
	l.allowances[key] = amount
}

func (l *Ledger) setNative(holder common.Address, amount *big.Int) {
	prev, existed := l.native[holder]
	l.journal = append(l.journal, func() {
		if existed {
			l.native[holder] = prev
		} else {
			delete(l.native, holder)
		}
	})
	l.native[holder] = amount
}

func (l *Ledger) balance(token, holder common.Address) *big.Int {
	if b, ok := l.balances[balanceKey{token, holder}]; ok {
		return b
	}
	return new(big.Int)
}

// BalanceOf returns holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(token, holder))
}

// Mint credits holder with amount of token. Used to seed pools,
// routers and accounts.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{token, holder}
	l.setBalance(key, new(big.Int).Add(l.balance(token, holder), amount))
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return apperror.ExternalCall("negative transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balance(token, from)
	if fromBal.Cmp(amount) < 0 {
		return apperror.ExternalCall("ERC20: transfer amount exceeds balance (token %s, have %s, need %s)",
			token.Hex(), fromBal, amount)
	}
	l.setBalance(balanceKey{token, from}, new(big.Int).Sub(fromBal, amount))
	l.setBalance(balanceKey{token, to}, new(big.Int).Add(l.balance(token, to), amount))
	return nil
}

// Approve sets spender's allowance over owner's token balance,
// replacing any previous value.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowance(allowanceKey{token, owner, spender}, new(big.Int).Set(amount))
}

// Allowance returns spender's remaining allowance over owner's token
// balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// TransferFrom moves amount of owner's token to the recipient, spending
// the caller's allowance.
func (l *Ledger) TransferFrom(token, owner, spender, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return apperror.ExternalCall("negative transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey{token, owner, spender}
	allowance, ok := l.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return apperror.ExternalCall("ERC20: insufficient allowance (token %s, spender %s)",
			token.Hex(), spender.Hex())
	}
	fromBal := l.balance(token, owner)
	if fromBal.Cmp(amount) < 0 {
		return apperror.ExternalCall("ERC20: transfer amount exceeds balance (token %s, have %s, need %s)",
			token.Hex(), fromBal, amount)
	}
	l.setAllowance(key, new(big.Int).Sub(allowance, amount))
	l.setBalance(balanceKey{token, owner}, new(big.Int).Sub(fromBal, amount))
	l.setBalance(balanceKey{token, to}, new(big.Int).Add(l.balance(token, to), amount))
	return nil
}

// NativeBalanceOf returns holder's native-currency balance.
func (l *Ledger) NativeBalanceOf(holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.native[holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// MintNative credits holder with native currency.
func (l *Ledger) MintNative(holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := new(big.Int)
	if b, ok := l.native[holder]; ok {
		cur = b
	}
	l.setNative(holder, new(big.Int).Add(cur, amount))
}

// TransferNative moves native currency between holders.
func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return apperror.ExternalCall("negative transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := new(big.Int)
	if b, ok := l.native[from]; ok {
		fromBal = b
	}
	if fromBal.Cmp(amount) < 0 {
		return apperror.ExternalCall("insufficient native balance (have %s, need %s)", fromBal, amount)
	}
	toBal := new(big.Int)
	if b, ok := l.native[to]; ok {
		toBal = b
	}
	l.setNative(from, new(big.Int).Sub(fromBal, amount))
	l.setNative(to, new(big.Int).Add(toBal, amount))
	return nil
}

// Clone deep-copies the ledger state with an empty journal. Dry runs
// execute against a clone so the live ledger is never touched.
func (l *Ledger) Clone() *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := New()
	c.block = l.block
	c.timestamp = l.timestamp
	for k, v := range l.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range l.allowances {
		c.allowances[k] = new(big.Int).Set(v)
	}
	for k, v := range l.native {
		c.native[k] = new(big.Int).Set(v)
	}
	return c
}
