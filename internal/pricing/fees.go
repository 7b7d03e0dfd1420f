// internal/pricing/fees.go
package pricing

import (
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// FeeBreakdown is the fee charged on a trade and who it is credited to.
type FeeBreakdown struct {
	Total    *uint256.Int
	Protocol *uint256.Int
	Creator  *uint256.Int
	Referrer *uint256.Int
}

// ZeroFees returns an empty breakdown.
func ZeroFees() FeeBreakdown {
	return FeeBreakdown{
		Total:    types.Zero(),
		Protocol: types.Zero(),
		Creator:  types.Zero(),
		Referrer: types.Zero(),
	}
}

// Fee returns floor(amount*feeBps/10000).
func Fee(amount *uint256.Int, feeBps uint64) *uint256.Int {
	return types.ApplyBps(amount, feeBps)
}

// SplitFee divides total according to split. The referrer share exists only
// when a valid referrer takes part; everything not assigned to the creator or
// the referrer stays with the protocol treasury.
func SplitFee(total *uint256.Int, split curve.FeeSplit, hasReferrer bool) FeeBreakdown {
	out := ZeroFees()
	out.Total = total.Clone()
	if hasReferrer {
		out.Referrer = types.ApplyBps(total, split.ReferrerBps)
	}
	out.Creator = types.ApplyBps(total, split.CreatorBps)

	assigned := new(uint256.Int).Add(out.Referrer, out.Creator)
	out.Protocol = new(uint256.Int).Sub(total, assigned)
	return out
}
