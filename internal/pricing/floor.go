// internal/pricing/floor.go
package pricing

import (
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// FloorReserve is the real base the curve must hold so that every circulating
// token can be sold back without the effective base reserve dropping below the
// virtual reserve: ceil(V * circulating / (Rt + Vt)).
func FloorReserve(s curve.Snapshot) *uint256.Int {
	t := s.EffectiveToken()
	if t.IsZero() {
		return types.Zero()
	}
	floor, err := types.MulDivUp(s.Params.BaseReserveVirtual, s.Circulating(), t)
	if err != nil {
		return types.Zero()
	}
	return floor
}

// FloorPrice is the base paid per whole token once all circulating supply has
// been sold back: V * 1e18 / (MaxSupply + Vt).
func FloorPrice(s curve.Snapshot) *uint256.Int {
	t := new(uint256.Int).Add(s.Params.MaxSupply, s.Params.TokenReserveVirtual)
	p, err := types.MulDiv(s.Params.BaseReserveVirtual, types.One, t)
	if err != nil {
		return types.Zero()
	}
	return p
}

// MarketPrice is the spot price B * 1e18 / T.
func MarketPrice(s curve.Snapshot) *uint256.Int {
	t := s.EffectiveToken()
	if t.IsZero() {
		return types.Zero()
	}
	p, err := types.MulDiv(s.EffectiveBase(), types.One, t)
	if err != nil {
		return types.Zero()
	}
	return p
}

// TVL is the real base locked in the curve.
func TVL(s curve.Snapshot) *uint256.Int {
	return s.State.BaseReserveReal.Clone()
}
