// ==============================================
// File: internal/curve/curve.go
// ==============================================
package curve

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// FeeSplit divides the trading fee between the treasury, the referrer and the
// curve creator. Shares are in basis points of the fee; whatever is not
// assigned goes to the protocol treasury.
type FeeSplit struct {
	ProtocolBps uint64
	CreatorBps  uint64
	ReferrerBps uint64
}

// Validate checks that the split does not exceed 100%.
func (s FeeSplit) Validate() error {
	if s.ProtocolBps+s.CreatorBps+s.ReferrerBps > types.BpsDenominator {
		return fmt.Errorf("fee split exceeds %d bps", types.BpsDenominator)
	}
	return nil
}

// Params are fixed at creation and never change afterwards.
type Params struct {
	BaseReserveVirtual  *uint256.Int
	TokenReserveVirtual *uint256.Int
	MaxSupply           *uint256.Int
	FeeBps              uint64
	Split               FeeSplit
}

// Metadata identifies a curve.
type Metadata struct {
	Index     uint64
	Address   solana.PublicKey // reserve account
	Mint      solana.PublicKey // token asset id
	FeeVault  solana.PublicKey // account holding unclaimed fees
	Name      string
	Symbol    string
	URI       string
	Creator   solana.PublicKey
	CreatedAt time.Time
}

// Curve is the per-token reserve ledger. All mutation goes through Lock/Commit
// so that a single logical operation at a time touches the state.
type Curve struct {
	mu sync.Mutex

	meta   Metadata
	params Params
	state  State
}

// State is the mutable part of a curve.
type State struct {
	BaseReserveReal  *uint256.Int
	TokenReserveReal *uint256.Int

	// Fees holds unclaimed base per claimant; TotalFees only grows.
	Fees      map[solana.PublicKey]*uint256.Int
	TotalFees *uint256.Int

	// Referrers records the first referrer of each buyer.
	Referrers map[solana.PublicKey]solana.PublicKey

	Status       string
	StatusAuthor solana.PublicKey

	Graduated   bool
	GraduatedAt time.Time

	// Redeemed is the amount of tokens burned through redemption.
	Redeemed   *uint256.Int
	RedeemedBy map[solana.PublicKey]bool
}

// Validate checks the creation parameters, including the invariant headroom
// of a fresh curve.
func (p Params) Validate() error {
	if p.BaseReserveVirtual == nil || p.BaseReserveVirtual.IsZero() {
		return fmt.Errorf("virtual base reserve must be positive")
	}
	if p.MaxSupply == nil || p.MaxSupply.IsZero() {
		return fmt.Errorf("max supply must be positive")
	}
	if p.FeeBps >= types.BpsDenominator {
		return fmt.Errorf("fee %d bps out of range", p.FeeBps)
	}
	if err := p.Split.Validate(); err != nil {
		return err
	}
	k, err := p.InitialK()
	if err != nil {
		return err
	}
	if k.Gt(MaxInvariant) {
		return fmt.Errorf("%w: initial invariant %s exceeds 2^200", types.ErrOverflow, k.Dec())
	}
	return nil
}

// InitialK is V * (MaxSupply + Vt), the invariant of an unseeded curve and
// the lower bound of K for its whole life.
func (p Params) InitialK() (*uint256.Int, error) {
	t, overflow := new(uint256.Int).AddOverflow(p.MaxSupply, types.Clone(p.TokenReserveVirtual))
	if overflow {
		return nil, fmt.Errorf("%w: max supply plus virtual token reserve", types.ErrOverflow)
	}
	k, overflow := new(uint256.Int).MulOverflow(p.BaseReserveVirtual, t)
	if overflow {
		return nil, fmt.Errorf("%w: initial invariant", types.ErrOverflow)
	}
	return k, nil
}

// New builds an active curve holding the full max supply and seeded with
// the creation payment as real base reserve.
func New(meta Metadata, params Params, seed *uint256.Int) (*Curve, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	params.BaseReserveVirtual = params.BaseReserveVirtual.Clone()
	params.TokenReserveVirtual = types.Clone(params.TokenReserveVirtual)
	params.MaxSupply = params.MaxSupply.Clone()

	c := &Curve{
		meta:   meta,
		params: params,
		state: State{
			BaseReserveReal:  types.Clone(seed),
			TokenReserveReal: params.MaxSupply.Clone(),
			Fees:             make(map[solana.PublicKey]*uint256.Int),
			TotalFees:        types.Zero(),
			Referrers:        make(map[solana.PublicKey]solana.PublicKey),
			Redeemed:         types.Zero(),
			RedeemedBy:       make(map[solana.PublicKey]bool),
		},
	}
	// оплата создания тоже ложится в резерв
	if err := c.snapshotLocked().Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Meta returns the immutable identity of the curve.
func (c *Curve) Meta() Metadata { return c.meta }

// Index returns the registry index.
func (c *Curve) Index() uint64 { return c.meta.Index }

// Address returns the curve reserve account.
func (c *Curve) Address() solana.PublicKey { return c.meta.Address }

// Params returns a copy of the creation parameters.
func (c *Curve) Params() Params {
	p := c.params
	p.BaseReserveVirtual = p.BaseReserveVirtual.Clone()
	p.TokenReserveVirtual = p.TokenReserveVirtual.Clone()
	p.MaxSupply = p.MaxSupply.Clone()
	return p
}

// Lock acquires the single-writer lock. Callers must Unlock.
func (c *Curve) Lock() { c.mu.Lock() }

// Unlock releases the single-writer lock.
func (c *Curve) Unlock() { c.mu.Unlock() }

// Snapshot returns a deep copy of the curve. Safe to call concurrently.
func (c *Curve) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SnapshotLocked is Snapshot for callers already holding the lock.
func (c *Curve) SnapshotLocked() Snapshot {
	return c.snapshotLocked()
}

func (c *Curve) snapshotLocked() Snapshot {
	return Snapshot{
		Meta:   c.meta,
		Params: c.Params(),
		State:  c.state.clone(),
	}
}

// Commit replaces the mutable state after validating invariants against the
// current one. The caller must hold the lock.
func (c *Curve) Commit(next State) error {
	prev := c.snapshotLocked()
	candidate := Snapshot{Meta: c.meta, Params: c.Params(), State: next.clone()}
	if err := candidate.Validate(); err != nil {
		return err
	}
	if prev.State.Graduated && !candidate.State.Graduated {
		return fmt.Errorf("curve %d: graduation is irreversible", c.meta.Index)
	}
	c.state = candidate.State
	return nil
}

func (s State) clone() State {
	out := State{
		BaseReserveReal:  types.Clone(s.BaseReserveReal),
		TokenReserveReal: types.Clone(s.TokenReserveReal),
		Fees:             make(map[solana.PublicKey]*uint256.Int, len(s.Fees)),
		TotalFees:        types.Clone(s.TotalFees),
		Referrers:        make(map[solana.PublicKey]solana.PublicKey, len(s.Referrers)),
		Status:           s.Status,
		StatusAuthor:     s.StatusAuthor,
		Graduated:        s.Graduated,
		GraduatedAt:      s.GraduatedAt,
		Redeemed:         types.Clone(s.Redeemed),
		RedeemedBy:       make(map[solana.PublicKey]bool, len(s.RedeemedBy)),
	}
	for k, v := range s.Fees {
		out.Fees[k] = v.Clone()
	}
	for k, v := range s.Referrers {
		out.Referrers[k] = v
	}
	for k, v := range s.RedeemedBy {
		out.RedeemedBy[k] = v
	}
	return out
}

// Claimants returns accounts with a non-zero fee balance in stable order.
func (s State) Claimants() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(s.Fees))
	for k, v := range s.Fees {
		if !v.IsZero() {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
