// internal/ledger/memory.go
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// Entry is a committed movement.
type Entry struct {
	Op
	At time.Time
}

// Memory is an in-process ledger. A single mutex serializes transactions;
// staged movements are applied directly and undone on failure.
type Memory struct {
	mu       sync.Mutex
	balances map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
	supply   map[solana.PublicKey]*uint256.Int
	journal  []Entry
	fault    func(Op) error
	clock    types.Clock
	logger   *zap.Logger
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(clock types.Clock, logger *zap.Logger) *Memory {
	return &Memory{
		balances: make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int),
		supply:   make(map[solana.PublicKey]*uint256.Int),
		clock:    clock,
		logger:   logger.Named("ledger"),
	}
}

// SetFault installs a hook consulted before every staged movement. A non-nil
// error from the hook fails the movement. Used to simulate collaborator
// failures.
func (m *Memory) SetFault(fn func(Op) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Deposit mints amount of asset to an account outside of any engine
// operation (faucet for simulations and tests).
func (m *Memory) Deposit(asset, to solana.PublicKey, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(asset, to, amount)
	m.addSupply(asset, amount)
}

// Balance returns the committed balance of an account.
func (m *Memory) Balance(asset, account solana.PublicKey) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(asset, account)
}

// Supply returns the total minted minus burned amount of an asset.
func (m *Memory) Supply(asset solana.PublicKey) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.Clone(m.supply[asset])
}

// Journal returns a copy of committed movements.
func (m *Memory) Journal() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.journal))
	copy(out, m.journal)
	return out
}

// Atomic runs fn against a transaction. On any error every staged movement is
// rolled back and the error is returned.
func (m *Memory) Atomic(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrTransferFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		m.logger.Debug("Transaction rolled back",
			zap.Int("staged_ops", len(tx.ops)),
			zap.Error(err))
		return err
	}

	now := m.clock.Now()
	for _, op := range tx.ops {
		m.journal = append(m.journal, Entry{Op: op, At: now})
	}
	return nil
}

func (m *Memory) balance(asset, account solana.PublicKey) *uint256.Int {
	return types.Clone(m.balances[asset][account])
}

func (m *Memory) add(asset, account solana.PublicKey, amount *uint256.Int) {
	accounts, ok := m.balances[asset]
	if !ok {
		accounts = make(map[solana.PublicKey]*uint256.Int)
		m.balances[asset] = accounts
	}
	cur := types.Clone(accounts[account])
	accounts[account] = cur.Add(cur, amount)
}

func (m *Memory) sub(asset, account solana.PublicKey, amount *uint256.Int) error {
	cur := m.balance(asset, account)
	if cur.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", types.ErrTransferFailed,
			account, cur.Dec(), asset, amount.Dec())
	}
	m.balances[asset][account] = cur.Sub(cur, amount)
	return nil
}

func (m *Memory) addSupply(asset solana.PublicKey, amount *uint256.Int) {
	cur := types.Clone(m.supply[asset])
	m.supply[asset] = cur.Add(cur, amount)
}

type memTx struct {
	m    *Memory
	ops  []Op
	undo []func()
}

func (t *memTx) Balance(asset, account solana.PublicKey) *uint256.Int {
	return t.m.balance(asset, account)
}

func (t *memTx) check(op Op) error {
	if op.Amount == nil {
		return fmt.Errorf("%w: nil amount", types.ErrTransferFailed)
	}
	if t.m.fault != nil {
		if err := t.m.fault(op); err != nil {
			return fmt.Errorf("%w: %v", types.ErrTransferFailed, err)
		}
	}
	return nil
}

func (t *memTx) Transfer(asset, from, to solana.PublicKey, amount *uint256.Int) error {
	op := Op{Kind: OpTransfer, Asset: asset, From: from, To: to, Amount: types.Clone(amount)}
	if err := t.check(op); err != nil {
		return err
	}
	if amount.IsZero() || from.Equals(to) {
		return nil
	}
	if err := t.m.sub(asset, from, amount); err != nil {
		return err
	}
	t.m.add(asset, to, amount)
	t.record(op, func() {
		_ = t.m.sub(asset, to, op.Amount)
		t.m.add(asset, from, op.Amount)
	})
	return nil
}

func (t *memTx) Mint(asset, to solana.PublicKey, amount *uint256.Int) error {
	op := Op{Kind: OpMint, Asset: asset, To: to, Amount: types.Clone(amount)}
	if err := t.check(op); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	t.m.add(asset, to, amount)
	t.m.addSupply(asset, amount)
	t.record(op, func() {
		_ = t.m.sub(asset, to, op.Amount)
		s := t.m.supply[asset]
		s.Sub(s, op.Amount)
	})
	return nil
}

func (t *memTx) Burn(asset, from solana.PublicKey, amount *uint256.Int) error {
	op := Op{Kind: OpBurn, Asset: asset, From: from, Amount: types.Clone(amount)}
	if err := t.check(op); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	if err := t.m.sub(asset, from, amount); err != nil {
		return err
	}
	s := types.Clone(t.m.supply[asset])
	if s.Lt(amount) {
		s = types.Zero()
	} else {
		s.Sub(s, amount)
	}
	prev := types.Clone(t.m.supply[asset])
	t.m.supply[asset] = s
	t.record(op, func() {
		t.m.add(asset, from, op.Amount)
		t.m.supply[asset] = prev
	})
	return nil
}

func (t *memTx) record(op Op, undo func()) {
	t.ops = append(t.ops, op)
	t.undo = append(t.undo, undo)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.ops = nil
	t.undo = nil
}
