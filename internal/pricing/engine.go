// ==============================================
// File: internal/pricing/engine.go
// ==============================================
package pricing

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// BuyParams describes a buy of tokens with an exact base input.
type BuyParams struct {
	BaseIn      *uint256.Int
	MinTokenOut *uint256.Int
	// Deadline is the last instant the trade may settle. Zero disables the check.
	Deadline    time.Time
	Now         time.Time
	HasReferrer bool
}

// BuyResult is what the router applies to the curve after a buy.
type BuyResult struct {
	// BaseIn is the gross base actually consumed; Refund is returned to the
	// buyer when the trade clamps at the graduation boundary.
	BaseIn   *uint256.Int
	Refund   *uint256.Int
	Fee      FeeBreakdown
	NetIn    *uint256.Int
	TokenOut *uint256.Int

	Graduates bool

	NewBaseReserveReal  *uint256.Int
	NewTokenReserveReal *uint256.Int
}

// SellParams describes a sale of an exact token amount.
type SellParams struct {
	TokenIn    *uint256.Int
	MinBaseOut *uint256.Int
	Deadline   time.Time
	Now        time.Time
}

// SellResult is what the router applies to the curve after a sell.
type SellResult struct {
	TokenIn  *uint256.Int
	GrossOut *uint256.Int
	Fee      FeeBreakdown
	BaseOut  *uint256.Int

	NewBaseReserveReal  *uint256.Int
	NewTokenReserveReal *uint256.Int
}

// CheckDeadline fails with ErrExpired when now is past deadline.
func CheckDeadline(deadline, now time.Time) error {
	if !deadline.IsZero() && now.After(deadline) {
		return fmt.Errorf("%w: now %s, deadline %s", types.ErrExpired,
			now.Format(time.RFC3339), deadline.Format(time.RFC3339))
	}
	return nil
}

func checkTradable(s curve.Snapshot) error {
	if s.State.Graduated {
		return fmt.Errorf("curve %d: %w", s.Meta.Index, types.ErrGraduated)
	}
	return nil
}

// Buy computes the result of spending p.BaseIn on the curve.
func Buy(s curve.Snapshot, p BuyParams) (BuyResult, error) {
	if err := CheckDeadline(p.Deadline, p.Now); err != nil {
		return BuyResult{}, err
	}
	res, err := QuoteBuy(s, p.BaseIn, p.HasReferrer)
	if err != nil {
		return BuyResult{}, err
	}
	if p.MinTokenOut != nil && res.TokenOut.Lt(p.MinTokenOut) {
		return BuyResult{}, fmt.Errorf("%w: token out %s < min %s",
			types.ErrSlippageExceeded, res.TokenOut.Dec(), p.MinTokenOut.Dec())
	}
	return res, nil
}

// QuoteBuy computes a buy without deadline or slippage checks.
func QuoteBuy(s curve.Snapshot, baseIn *uint256.Int, hasReferrer bool) (BuyResult, error) {
	if err := checkTradable(s); err != nil {
		return BuyResult{}, err
	}
	if baseIn == nil || baseIn.IsZero() {
		return BuyResult{}, fmt.Errorf("%w: base in must be positive", types.ErrInvalidAmount)
	}
	if s.State.TokenReserveReal.IsZero() {
		return BuyResult{}, fmt.Errorf("%w: nothing left to sell", types.ErrInsufficientReserve)
	}

	k, err := s.K()
	if err != nil {
		return BuyResult{}, err
	}
	b, t := s.EffectiveBase(), s.EffectiveToken()
	feeBps := s.Params.FeeBps

	gross := baseIn.Clone()
	fee := Fee(gross, feeBps)
	net := new(uint256.Int).Sub(gross, fee)

	denom, overflow := new(uint256.Int).AddOverflow(b, net)
	if overflow {
		return BuyResult{}, fmt.Errorf("%w: base in %s", types.ErrInvalidAmount, baseIn.Dec())
	}
	newT, err := types.DivUp(k, denom)
	if err != nil {
		return BuyResult{}, err
	}
	tokenOut := new(uint256.Int).Sub(t, newT)
	graduates := false

	if !tokenOut.Lt(s.State.TokenReserveReal) {
		// Graduation boundary: sell exactly the remaining real reserve and
		// refund whatever base was not needed to reach it.
		vt := s.Params.TokenReserveVirtual
		if vt.IsZero() {
			return BuyResult{}, fmt.Errorf("%w: curve cannot be exhausted", types.ErrInsufficientReserve)
		}
		bNeeded, err := types.DivUp(k, vt)
		if err != nil {
			return BuyResult{}, err
		}
		netNeeded := types.Zero()
		if bNeeded.Gt(b) {
			netNeeded.Sub(bNeeded, b)
		}
		grossNeeded, err := types.GrossUpBps(netNeeded, feeBps)
		if err != nil {
			return BuyResult{}, err
		}
		if grossNeeded.Lt(gross) {
			gross = grossNeeded
		}
		fee = Fee(gross, feeBps)
		net = new(uint256.Int).Sub(gross, fee)
		tokenOut = s.State.TokenReserveReal.Clone()
		graduates = true
	}

	if tokenOut.IsZero() {
		return BuyResult{}, fmt.Errorf("%w: input too small to buy any token", types.ErrInsufficientReserve)
	}

	res := BuyResult{
		BaseIn:              gross,
		Refund:              new(uint256.Int).Sub(baseIn, gross),
		Fee:                 SplitFee(fee, s.Params.Split, hasReferrer),
		NetIn:               net,
		TokenOut:            tokenOut,
		Graduates:           graduates,
		NewBaseReserveReal:  new(uint256.Int).Add(s.State.BaseReserveReal, net),
		NewTokenReserveReal: new(uint256.Int).Sub(s.State.TokenReserveReal, tokenOut),
	}
	if err := checkProduct(s, res.NewBaseReserveReal, res.NewTokenReserveReal); err != nil {
		return BuyResult{}, err
	}
	return res, nil
}

// Sell computes the result of selling p.TokenIn back into the curve.
func Sell(s curve.Snapshot, p SellParams) (SellResult, error) {
	if err := CheckDeadline(p.Deadline, p.Now); err != nil {
		return SellResult{}, err
	}
	res, err := QuoteSell(s, p.TokenIn)
	if err != nil {
		return SellResult{}, err
	}
	if p.MinBaseOut != nil && res.BaseOut.Lt(p.MinBaseOut) {
		return SellResult{}, fmt.Errorf("%w: base out %s < min %s",
			types.ErrSlippageExceeded, res.BaseOut.Dec(), p.MinBaseOut.Dec())
	}
	return res, nil
}

// QuoteSell computes a sell without deadline or slippage checks.
func QuoteSell(s curve.Snapshot, tokenIn *uint256.Int) (SellResult, error) {
	if err := checkTradable(s); err != nil {
		return SellResult{}, err
	}
	if tokenIn == nil || tokenIn.IsZero() {
		return SellResult{}, fmt.Errorf("%w: token in must be positive", types.ErrInvalidAmount)
	}
	if tokenIn.Gt(s.Outstanding()) {
		return SellResult{}, fmt.Errorf("%w: token in %s exceeds circulating %s",
			types.ErrInsufficientReserve, tokenIn.Dec(), s.Outstanding().Dec())
	}

	k, err := s.K()
	if err != nil {
		return SellResult{}, err
	}
	b, t := s.EffectiveBase(), s.EffectiveToken()
	newB, err := types.DivUp(k, new(uint256.Int).Add(t, tokenIn))
	if err != nil {
		return SellResult{}, err
	}
	gross := types.Zero()
	if b.Gt(newB) {
		gross.Sub(b, newB)
	}
	if gross.Gt(s.State.BaseReserveReal) {
		return SellResult{}, fmt.Errorf("%w: payout %s exceeds real reserve %s",
			types.ErrInsufficientReserve, gross.Dec(), s.State.BaseReserveReal.Dec())
	}

	fee := Fee(gross, s.Params.FeeBps)
	res := SellResult{
		TokenIn:             tokenIn.Clone(),
		GrossOut:            gross,
		Fee:                 SplitFee(fee, s.Params.Split, false),
		BaseOut:             new(uint256.Int).Sub(gross, fee),
		NewBaseReserveReal:  new(uint256.Int).Sub(s.State.BaseReserveReal, gross),
		NewTokenReserveReal: new(uint256.Int).Add(s.State.TokenReserveReal, tokenIn),
	}
	if err := checkProduct(s, res.NewBaseReserveReal, res.NewTokenReserveReal); err != nil {
		return SellResult{}, err
	}

	after := s
	after.State.BaseReserveReal = res.NewBaseReserveReal
	after.State.TokenReserveReal = res.NewTokenReserveReal
	if floor := FloorReserve(after); res.NewBaseReserveReal.Lt(floor) {
		return SellResult{}, fmt.Errorf("%w: reserve %s < floor %s",
			types.ErrBelowFloor, res.NewBaseReserveReal.Dec(), floor.Dec())
	}
	return res, nil
}

// BuyExactOut returns the gross base a buyer must spend to receive at least
// tokenOut tokens.
func BuyExactOut(s curve.Snapshot, tokenOut *uint256.Int) (*uint256.Int, error) {
	if err := checkTradable(s); err != nil {
		return nil, err
	}
	if tokenOut == nil || tokenOut.IsZero() {
		return nil, fmt.Errorf("%w: token out must be positive", types.ErrInvalidAmount)
	}
	if tokenOut.Gt(s.State.TokenReserveReal) {
		return nil, fmt.Errorf("%w: token out %s exceeds reserve %s",
			types.ErrInsufficientReserve, tokenOut.Dec(), s.State.TokenReserveReal.Dec())
	}
	k, err := s.K()
	if err != nil {
		return nil, err
	}
	b, t := s.EffectiveBase(), s.EffectiveToken()
	newT := new(uint256.Int).Sub(t, tokenOut)
	if newT.IsZero() {
		return nil, fmt.Errorf("%w: curve cannot be exhausted", types.ErrInsufficientReserve)
	}
	newB, err := types.DivUp(k, newT)
	if err != nil {
		return nil, err
	}
	net := types.Zero()
	if newB.Gt(b) {
		net.Sub(newB, b)
	}
	return types.GrossUpBps(net, s.Params.FeeBps)
}

// SellExactOut returns the tokens a seller must sell to receive at least
// baseOut after fees.
func SellExactOut(s curve.Snapshot, baseOut *uint256.Int) (*uint256.Int, error) {
	if err := checkTradable(s); err != nil {
		return nil, err
	}
	if baseOut == nil || baseOut.IsZero() {
		return nil, fmt.Errorf("%w: base out must be positive", types.ErrInvalidAmount)
	}
	gross, err := types.GrossUpBps(baseOut, s.Params.FeeBps)
	if err != nil {
		return nil, err
	}
	if gross.Gt(s.State.BaseReserveReal) {
		return nil, fmt.Errorf("%w: payout %s exceeds real reserve %s",
			types.ErrInsufficientReserve, gross.Dec(), s.State.BaseReserveReal.Dec())
	}
	k, err := s.K()
	if err != nil {
		return nil, err
	}
	b, t := s.EffectiveBase(), s.EffectiveToken()
	newB := new(uint256.Int).Sub(b, gross)
	need, err := types.DivUp(k, newB)
	if err != nil {
		return nil, err
	}
	tokenIn := types.Zero()
	if need.Gt(t) {
		tokenIn.Sub(need, t)
	}
	if tokenIn.Gt(s.Outstanding()) {
		return nil, fmt.Errorf("%w: requires %s tokens, only %s circulating",
			types.ErrInsufficientReserve, tokenIn.Dec(), s.Outstanding().Dec())
	}
	return tokenIn, nil
}

// checkProduct enforces that the effective product does not drop below the
// pre-trade product; fees have already been removed from the reserves.
func checkProduct(s curve.Snapshot, newBaseReal, newTokenReal *uint256.Int) error {
	before, err := s.K()
	if err != nil {
		return err
	}
	next := s
	next.State.BaseReserveReal = newBaseReal
	next.State.TokenReserveReal = newTokenReal
	after, err := next.K()
	if err != nil {
		return err
	}
	if after.Lt(before) {
		return fmt.Errorf("%w: product %s < %s", types.ErrBelowFloor, after.Dec(), before.Dec())
	}
	return nil
}
