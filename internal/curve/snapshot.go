// internal/curve/snapshot.go
package curve

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// Snapshot is an immutable value copy of a curve consumed by the pricing
// engine and the read surfaces.
type Snapshot struct {
	Meta   Metadata
	Params Params
	State  State
}

// EffectiveBase is V + Rb.
func (s Snapshot) EffectiveBase() *uint256.Int {
	return new(uint256.Int).Add(s.Params.BaseReserveVirtual, s.State.BaseReserveReal)
}

// EffectiveToken is Rt + Vt.
func (s Snapshot) EffectiveToken() *uint256.Int {
	return new(uint256.Int).Add(s.State.TokenReserveReal, s.Params.TokenReserveVirtual)
}

// MaxInvariant caps K. Trade math multiplies reserves by amounts and basis
// points, so K keeps 56 bits of room under 2^256.
var MaxInvariant = new(uint256.Int).Lsh(uint256.NewInt(1), 200)

// K is the constant-product invariant of the effective reserves.
func (s Snapshot) K() (*uint256.Int, error) {
	b, overflowB := new(uint256.Int).AddOverflow(s.Params.BaseReserveVirtual, types.Clone(s.State.BaseReserveReal))
	t, overflowT := new(uint256.Int).AddOverflow(types.Clone(s.State.TokenReserveReal), types.Clone(s.Params.TokenReserveVirtual))
	if overflowB || overflowT {
		return nil, fmt.Errorf("%w: curve %d effective reserves", types.ErrOverflow, s.Meta.Index)
	}
	k, overflow := new(uint256.Int).MulOverflow(b, t)
	if overflow {
		return nil, fmt.Errorf("%w: curve %d invariant", types.ErrOverflow, s.Meta.Index)
	}
	return k, nil
}

// Circulating is MaxSupply - Rt: tokens already sold out of the curve,
// including those later burned by redemption.
func (s Snapshot) Circulating() *uint256.Int {
	return new(uint256.Int).Sub(s.Params.MaxSupply, s.State.TokenReserveReal)
}

// Outstanding is the circulating supply that has not been redeemed.
func (s Snapshot) Outstanding() *uint256.Int {
	c := s.Circulating()
	if c.Lt(s.State.Redeemed) {
		return types.Zero()
	}
	return c.Sub(c, s.State.Redeemed)
}

// FeesOf returns the unclaimed fee balance of an account.
func (s Snapshot) FeesOf(account solana.PublicKey) *uint256.Int {
	return types.Clone(s.State.Fees[account])
}

// Validate checks the invariants that must hold after every operation.
func (s Snapshot) Validate() error {
	if s.State.BaseReserveReal == nil || s.State.TokenReserveReal == nil {
		return fmt.Errorf("curve %d: nil reserve", s.Meta.Index)
	}
	k, err := s.K()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidAmount, err)
	}
	if k.Gt(MaxInvariant) {
		return fmt.Errorf("%w: curve %d invariant %s exceeds 2^200",
			types.ErrInvalidAmount, s.Meta.Index, k.Dec())
	}
	if s.State.TokenReserveReal.Gt(s.Params.MaxSupply) {
		return fmt.Errorf("curve %d: token reserve %s exceeds max supply %s",
			s.Meta.Index, s.State.TokenReserveReal.Dec(), s.Params.MaxSupply.Dec())
	}
	if s.State.Redeemed.Gt(s.Circulating()) {
		return fmt.Errorf("curve %d: redeemed exceeds circulating supply", s.Meta.Index)
	}
	total := types.Zero()
	for _, v := range s.State.Fees {
		total.Add(total, v)
	}
	if total.Gt(s.State.TotalFees) {
		return fmt.Errorf("curve %d: unclaimed fees exceed total collected", s.Meta.Index)
	}
	return nil
}
