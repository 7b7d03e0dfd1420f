// ==============================================
// File: internal/quote/quote.go
// ==============================================
package quote

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/pricing"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// Quote is a read-only preview of a trade.
//
// For exact-input quotes Output is the amount received and MinOutput the bound
// to pass to the live trade. For exact-output quotes Output is the amount the
// caller must spend and MinOutput the bound on the desired side.
type Quote struct {
	Output      *uint256.Int
	Naive       *uint256.Int // spot-price result without price impact
	Slippage    *uint256.Int
	SlippageBps uint64
	MinOutput   *uint256.Int
	Fee         *uint256.Int
	Graduates   bool
}

// BuyIn previews spending baseIn on the curve.
func BuyIn(s curve.Snapshot, baseIn *uint256.Int, toleranceBps uint64) (Quote, error) {
	if err := types.ValidateTolerance(toleranceBps); err != nil {
		return Quote{}, err
	}
	res, err := pricing.QuoteBuy(s, baseIn, false)
	if err != nil {
		return Quote{}, fmt.Errorf("quote buy in: %w", err)
	}
	// naive = net * T / B at the pre-trade spot price
	net := new(uint256.Int).Sub(baseIn, pricing.Fee(baseIn, s.Params.FeeBps))
	naive, err := types.MulDiv(net, s.EffectiveToken(), s.EffectiveBase())
	if err != nil {
		return Quote{}, err
	}
	q := build(naive, res.TokenOut, false)
	q.MinOutput = types.MinAmountOut(res.TokenOut, toleranceBps)
	q.Fee = res.Fee.Total
	q.Graduates = res.Graduates
	return q, nil
}

// SellIn previews selling tokenIn into the curve.
func SellIn(s curve.Snapshot, tokenIn *uint256.Int, toleranceBps uint64) (Quote, error) {
	if err := types.ValidateTolerance(toleranceBps); err != nil {
		return Quote{}, err
	}
	res, err := pricing.QuoteSell(s, tokenIn)
	if err != nil {
		return Quote{}, fmt.Errorf("quote sell in: %w", err)
	}
	gross, err := types.MulDiv(tokenIn, s.EffectiveBase(), s.EffectiveToken())
	if err != nil {
		return Quote{}, err
	}
	naive := new(uint256.Int).Sub(gross, pricing.Fee(gross, s.Params.FeeBps))
	q := build(naive, res.BaseOut, false)
	q.MinOutput = types.MinAmountOut(res.BaseOut, toleranceBps)
	q.Fee = res.Fee.Total
	return q, nil
}

// BuyOut previews the base needed to receive tokenOut tokens.
func BuyOut(s curve.Snapshot, tokenOut *uint256.Int, toleranceBps uint64) (Quote, error) {
	if err := types.ValidateTolerance(toleranceBps); err != nil {
		return Quote{}, err
	}
	cost, err := pricing.BuyExactOut(s, tokenOut)
	if err != nil {
		return Quote{}, fmt.Errorf("quote buy out: %w", err)
	}
	spot, err := types.MulDivUp(tokenOut, s.EffectiveBase(), s.EffectiveToken())
	if err != nil {
		return Quote{}, err
	}
	naive, err := types.GrossUpBps(spot, s.Params.FeeBps)
	if err != nil {
		return Quote{}, err
	}
	q := build(naive, cost, true)
	q.MinOutput = types.MinAmountOut(tokenOut, toleranceBps)
	q.Fee = pricing.Fee(cost, s.Params.FeeBps)
	q.Graduates = tokenOut.Eq(s.State.TokenReserveReal)
	return q, nil
}

// SellOut previews the tokens needed to receive baseOut after fees.
func SellOut(s curve.Snapshot, baseOut *uint256.Int, toleranceBps uint64) (Quote, error) {
	if err := types.ValidateTolerance(toleranceBps); err != nil {
		return Quote{}, err
	}
	need, err := pricing.SellExactOut(s, baseOut)
	if err != nil {
		return Quote{}, fmt.Errorf("quote sell out: %w", err)
	}
	gross, err := types.GrossUpBps(baseOut, s.Params.FeeBps)
	if err != nil {
		return Quote{}, err
	}
	naive, err := types.MulDivUp(gross, s.EffectiveToken(), s.EffectiveBase())
	if err != nil {
		return Quote{}, err
	}
	q := build(naive, need, true)
	q.MinOutput = types.MinAmountOut(baseOut, toleranceBps)
	q.Fee = pricing.Fee(gross, s.Params.FeeBps)
	return q, nil
}

// build fills the impact fields. For exact-input quotes the curve delivers
// less than naive; for exact-output quotes it costs more.
func build(naive, actual *uint256.Int, costSide bool) Quote {
	slip := types.Zero()
	if costSide && actual.Gt(naive) {
		slip.Sub(actual, naive)
	}
	if !costSide && naive.Gt(actual) {
		slip.Sub(naive, actual)
	}
	return Quote{
		Output:      actual.Clone(),
		Naive:       naive,
		Slippage:    slip,
		SlippageBps: bpsOf(slip, naive),
	}
}

func bpsOf(part, whole *uint256.Int) uint64 {
	if whole.IsZero() {
		return 0
	}
	bps, err := types.MulDiv(part, uint256.NewInt(types.BpsDenominator), whole)
	if err != nil || !bps.IsUint64() {
		return math.MaxUint64
	}
	return bps.Uint64()
}
