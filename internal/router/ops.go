// internal/router/ops.go
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/events"
	"github.com/rovshanmuradov/memecurve/internal/ledger"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// ClaimReceipt lists what a ClaimFees call paid.
type ClaimReceipt struct {
	Claims []events.Claim
	Total  *uint256.Int
}

// ClaimFees pays out and zeroes the caller's fee balance on each listed curve.
// Curves where the caller has nothing to claim are skipped; an unknown curve
// fails the whole call.
func (r *Router) ClaimFees(ctx context.Context, caller solana.PublicKey, curves []solana.PublicKey) (rec ClaimReceipt, err error) {
	defer r.observe(ctx, "claim", time.Now(), &err)

	rec.Total = types.Zero()
	if err := ctx.Err(); err != nil {
		return rec, err
	}
	if err := requireAccount(caller, "caller"); err != nil {
		return rec, err
	}

	// resolve in caller order, dropping repeats
	ordered := make([]*curve.Curve, 0, len(curves))
	seen := make(map[solana.PublicKey]bool, len(curves))
	for _, addr := range curves {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		c, err := r.registry.ByAddress(addr)
		if err != nil {
			return rec, fmt.Errorf("claim fees: %w", err)
		}
		ordered = append(ordered, c)
	}

	// lock in ascending index order
	locking := make([]*curve.Curve, len(ordered))
	copy(locking, ordered)
	sort.Slice(locking, func(i, j int) bool { return locking[i].Index() < locking[j].Index() })
	for _, c := range locking {
		c.Lock()
	}
	defer func() {
		for i := len(locking) - 1; i >= 0; i-- {
			locking[i].Unlock()
		}
	}()

	type pending struct {
		c    *curve.Curve
		meta curve.Metadata
		next curve.State
		amt  *uint256.Int
	}
	var pays []pending
	for _, c := range ordered {
		snap := c.SnapshotLocked()
		amt := snap.FeesOf(caller)
		if amt.IsZero() {
			continue
		}
		next := snap.State
		delete(next.Fees, caller)
		pays = append(pays, pending{c: c, meta: snap.Meta, next: next, amt: amt})
	}
	if len(pays) == 0 {
		return rec, nil
	}

	for _, p := range pays {
		candidate := curve.Snapshot{Meta: p.meta, Params: p.c.Params(), State: p.next}
		if err := candidate.Validate(); err != nil {
			return ClaimReceipt{Total: types.Zero()}, err
		}
	}
	err = r.ledger.Atomic(ctx, func(tx ledger.Tx) error {
		for _, p := range pays {
			if err := tx.Transfer(r.cfg.BaseMint, p.meta.FeeVault, caller, p.amt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ClaimReceipt{Total: types.Zero()}, fmt.Errorf("claim fees: %w", err)
	}
	for _, p := range pays {
		if err := p.c.Commit(p.next); err != nil {
			// ledger already moved; the state is validated above so this is a bug
			r.logger.Error("Commit after claim failed",
				zap.Uint64("index", p.meta.Index), zap.Error(err))
			return rec, err
		}
		rec.Claims = append(rec.Claims, events.Claim{CurveRef: ref(p.meta), Amount: p.amt})
		rec.Total.Add(rec.Total, p.amt)
	}

	r.publish(&events.FeesClaimedEvent{
		BaseEvent: r.base(events.CurveFeesClaimed),
		Claimant:  caller,
		Claims:    rec.Claims,
		Total:     rec.Total.Clone(),
	})
	return rec, nil
}

// Contribute deposits base into a curve's real reserve without minting
// tokens, raising the reserve backing every holder.
func (r *Router) Contribute(ctx context.Context, caller, addr solana.PublicKey, amount *uint256.Int) (err error) {
	defer r.observe(ctx, "contribute", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireAccount(caller, "caller"); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: contribution must be positive", types.ErrInvalidAmount)
	}
	c, err := r.registry.ByAddress(addr)
	if err != nil {
		return err
	}

	c.Lock()
	snap := c.SnapshotLocked()
	next := snap.State
	raised, overflow := new(uint256.Int).AddOverflow(next.BaseReserveReal, amount)
	if overflow {
		err = fmt.Errorf("%w: contribution %s overflows reserve", types.ErrInvalidAmount, amount.Dec())
	} else {
		// stage отклоняет резерв, при котором K выходит за MaxInvariant
		next.BaseReserveReal = raised
		err = r.stage(ctx, c, next, func(tx ledger.Tx) error {
			return tx.Transfer(r.cfg.BaseMint, caller, snap.Meta.Address, amount)
		})
	}
	c.Unlock()
	if err != nil {
		return fmt.Errorf("contribute curve %d: %w", snap.Meta.Index, err)
	}

	r.publish(&events.ContributeEvent{
		BaseEvent:       r.base(events.CurveContribute),
		CurveRef:        ref(snap.Meta),
		Contributor:     caller,
		Amount:          amount.Clone(),
		BaseReserveReal: next.BaseReserveReal.Clone(),
	})
	r.metrics.SetReserve(snap.Meta.Symbol, next.BaseReserveReal)
	return nil
}

// RedeemReceipt is what a holder got out of a graduated curve.
type RedeemReceipt struct {
	Index  uint64
	Tokens *uint256.Int
	Payout *uint256.Int
}

// Redeem burns the caller's whole token balance of a graduated curve for a
// pro-rata share of its real base reserve.
func (r *Router) Redeem(ctx context.Context, caller, addr solana.PublicKey) (rec RedeemReceipt, err error) {
	defer r.observe(ctx, "redeem", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return rec, err
	}
	if err := requireAccount(caller, "caller"); err != nil {
		return rec, err
	}
	c, err := r.registry.ByAddress(addr)
	if err != nil {
		return rec, err
	}

	c.Lock()
	snap := c.SnapshotLocked()
	rec, err = r.redeemLocked(ctx, c, snap, caller)
	c.Unlock()
	if err != nil {
		return RedeemReceipt{}, fmt.Errorf("redeem curve %d: %w", snap.Meta.Index, err)
	}

	r.publish(&events.RedeemEvent{
		BaseEvent: r.base(events.CurveRedeem),
		CurveRef:  ref(snap.Meta),
		Holder:    caller,
		Tokens:    rec.Tokens,
		Payout:    rec.Payout,
	})
	return rec, nil
}

func (r *Router) redeemLocked(ctx context.Context, c *curve.Curve, snap curve.Snapshot, caller solana.PublicKey) (RedeemReceipt, error) {
	if !snap.State.Graduated {
		return RedeemReceipt{}, types.ErrNotGraduated
	}
	if snap.State.RedeemedBy[caller] {
		return RedeemReceipt{}, fmt.Errorf("%w: one redemption per holder", types.ErrAlreadyRedeemed)
	}
	meta := snap.Meta
	balance := r.ledger.Balance(meta.Mint, caller)
	if balance.IsZero() {
		return RedeemReceipt{}, types.ErrAlreadyRedeemed
	}
	outstanding := snap.Outstanding()
	if outstanding.Lt(balance) {
		return RedeemReceipt{}, fmt.Errorf("%w: balance %s exceeds outstanding supply %s",
			types.ErrInsufficientReserve, balance.Dec(), outstanding.Dec())
	}
	payout, err := types.MulDiv(snap.State.BaseReserveReal, balance, outstanding)
	if err != nil {
		return RedeemReceipt{}, err
	}

	next := snap.State
	next.BaseReserveReal = new(uint256.Int).Sub(next.BaseReserveReal, payout)
	next.Redeemed = new(uint256.Int).Add(next.Redeemed, balance)
	next.RedeemedBy[caller] = true

	err = r.stage(ctx, c, next, func(tx ledger.Tx) error {
		if err := tx.Burn(meta.Mint, caller, balance); err != nil {
			return err
		}
		return tx.Transfer(r.cfg.BaseMint, meta.Address, caller, payout)
	})
	if err != nil {
		return RedeemReceipt{}, err
	}
	return RedeemReceipt{Index: meta.Index, Tokens: balance, Payout: payout}, nil
}

// UpdateStatus overwrites the curve status. The caller must hold at least
// MinStatusBalance tokens of the curve.
func (r *Router) UpdateStatus(ctx context.Context, caller, addr solana.PublicKey, text string) (err error) {
	defer r.observe(ctx, "status", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireAccount(caller, "caller"); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if r.cfg.MaxStatusLength > 0 && utf8.RuneCountInString(text) > r.cfg.MaxStatusLength {
		return fmt.Errorf("%w: status longer than %d characters",
			types.ErrDuplicateOrInvalidMetadata, r.cfg.MaxStatusLength)
	}
	c, err := r.registry.ByAddress(addr)
	if err != nil {
		return err
	}

	c.Lock()
	snap := c.SnapshotLocked()
	held := r.ledger.Balance(snap.Meta.Mint, caller)
	if held.Lt(r.cfg.MinStatusBalance) {
		c.Unlock()
		return fmt.Errorf("%w: holds %s, status requires %s", types.ErrInsufficientBalance,
			held.Dec(), r.cfg.MinStatusBalance.Dec())
	}
	next := snap.State
	next.Status = text
	next.StatusAuthor = caller
	err = c.Commit(next)
	c.Unlock()
	if err != nil {
		return err
	}

	r.publish(&events.StatusUpdatedEvent{
		BaseEvent: r.base(events.CurveStatus),
		CurveRef:  ref(snap.Meta),
		Author:    caller,
		Status:    text,
	})
	return nil
}
