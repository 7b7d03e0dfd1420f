// internal/router/trade.go
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/events"
	"github.com/rovshanmuradov/memecurve/internal/ledger"
	"github.com/rovshanmuradov/memecurve/internal/pricing"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// BuyRequest spends BaseIn of the base asset on Curve.
type BuyRequest struct {
	Caller      solana.PublicKey
	Curve       solana.PublicKey
	Referrer    solana.PublicKey // optional
	BaseIn      *uint256.Int
	MinTokenOut *uint256.Int
	Deadline    time.Time // zero: no deadline
}

// SellRequest sells TokenIn back into Curve.
type SellRequest struct {
	Caller     solana.PublicKey
	Curve      solana.PublicKey
	TokenIn    *uint256.Int
	MinBaseOut *uint256.Int
	Deadline   time.Time
}

// BuyReceipt is the settled result of a buy.
type BuyReceipt struct {
	pricing.BuyResult
	Index    uint64
	Referrer solana.PublicKey // zero when nobody was credited
}

// SellReceipt is the settled result of a sell.
type SellReceipt struct {
	pricing.SellResult
	Index uint64
}

// Buy settles a buy. The referrer recorded on the caller's first referred buy
// is credited on every later buy; a different referrer supplied later is
// ignored.
func (r *Router) Buy(ctx context.Context, req BuyRequest) (rec BuyReceipt, err error) {
	defer r.observe(ctx, "buy", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return BuyReceipt{}, err
	}
	if err := requireAccount(req.Caller, "caller"); err != nil {
		return BuyReceipt{}, err
	}
	c, err := r.registry.ByAddress(req.Curve)
	if err != nil {
		return BuyReceipt{}, err
	}

	snap, rec, err := r.buyLocked(ctx, c, req)
	if err != nil {
		return BuyReceipt{}, fmt.Errorf("buy curve %d: %w", c.Index(), err)
	}

	r.publish(&events.TradeEvent{
		BaseEvent:        r.base(events.CurveBuy),
		CurveRef:         ref(snap.Meta),
		Trader:           req.Caller,
		Referrer:         rec.Referrer,
		BaseAmount:       rec.BaseIn,
		TokenAmount:      rec.TokenOut,
		Fee:              rec.Fee.Total,
		Refund:           rec.Refund,
		BaseReserveReal:  snap.State.BaseReserveReal,
		TokenReserveReal: snap.State.TokenReserveReal,
		MarketPrice:      pricing.MarketPrice(snap),
		FloorPrice:       pricing.FloorPrice(snap),
	})
	r.metrics.RecordTrade(types.SideBuy, rec.BaseIn, rec.Fee.Total)
	r.metrics.SetReserve(snap.Meta.Symbol, snap.State.BaseReserveReal)

	if rec.Graduates {
		r.graduated(ctx, snap)
	}
	return rec, nil
}

func (r *Router) buyLocked(ctx context.Context, c *curve.Curve, req BuyRequest) (curve.Snapshot, BuyReceipt, error) {
	c.Lock()
	defer c.Unlock()

	snap := c.SnapshotLocked()
	meta := snap.Meta

	referrer, recorded := snap.State.Referrers[req.Caller]
	fresh := false
	if !recorded && !req.Referrer.IsZero() && !req.Referrer.Equals(req.Caller) {
		referrer, fresh = req.Referrer, true
	}
	hasReferrer := recorded || fresh

	res, err := pricing.Buy(snap, pricing.BuyParams{
		BaseIn:      req.BaseIn,
		MinTokenOut: req.MinTokenOut,
		Deadline:    req.Deadline,
		Now:         r.clock.Now(),
		HasReferrer: hasReferrer,
	})
	if err != nil {
		return curve.Snapshot{}, BuyReceipt{}, err
	}

	next := snap.State
	next.BaseReserveReal = res.NewBaseReserveReal
	next.TokenReserveReal = res.NewTokenReserveReal
	accrue(&next, res.Fee, r.cfg.Treasury, meta.Creator, referrer)
	if fresh {
		next.Referrers[req.Caller] = referrer
	}
	if res.Graduates {
		next.Graduated = true
		next.GraduatedAt = r.clock.Now()
	}

	err = r.stage(ctx, c, next, func(tx ledger.Tx) error {
		if err := tx.Transfer(r.cfg.BaseMint, req.Caller, meta.Address, res.NetIn); err != nil {
			return err
		}
		if err := tx.Transfer(r.cfg.BaseMint, req.Caller, meta.FeeVault, res.Fee.Total); err != nil {
			return err
		}
		return tx.Transfer(meta.Mint, meta.Address, req.Caller, res.TokenOut)
	})
	if err != nil {
		return curve.Snapshot{}, BuyReceipt{}, err
	}

	rec := BuyReceipt{BuyResult: res, Index: meta.Index}
	if hasReferrer {
		rec.Referrer = referrer
	}
	return c.SnapshotLocked(), rec, nil
}

// Sell settles a sell. The fee is taken from the base paid out.
func (r *Router) Sell(ctx context.Context, req SellRequest) (rec SellReceipt, err error) {
	defer r.observe(ctx, "sell", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return SellReceipt{}, err
	}
	if err := requireAccount(req.Caller, "caller"); err != nil {
		return SellReceipt{}, err
	}
	c, err := r.registry.ByAddress(req.Curve)
	if err != nil {
		return SellReceipt{}, err
	}

	snap, rec, err := r.sellLocked(ctx, c, req)
	if err != nil {
		return SellReceipt{}, fmt.Errorf("sell curve %d: %w", c.Index(), err)
	}

	r.publish(&events.TradeEvent{
		BaseEvent:        r.base(events.CurveSell),
		CurveRef:         ref(snap.Meta),
		Trader:           req.Caller,
		BaseAmount:       rec.BaseOut,
		TokenAmount:      rec.TokenIn,
		Fee:              rec.Fee.Total,
		Refund:           types.Zero(),
		BaseReserveReal:  snap.State.BaseReserveReal,
		TokenReserveReal: snap.State.TokenReserveReal,
		MarketPrice:      pricing.MarketPrice(snap),
		FloorPrice:       pricing.FloorPrice(snap),
	})
	r.metrics.RecordTrade(types.SideSell, rec.GrossOut, rec.Fee.Total)
	r.metrics.SetReserve(snap.Meta.Symbol, snap.State.BaseReserveReal)
	return rec, nil
}

func (r *Router) sellLocked(ctx context.Context, c *curve.Curve, req SellRequest) (curve.Snapshot, SellReceipt, error) {
	c.Lock()
	defer c.Unlock()

	snap := c.SnapshotLocked()
	meta := snap.Meta

	if req.TokenIn != nil {
		if held := r.ledger.Balance(meta.Mint, req.Caller); held.Lt(req.TokenIn) {
			return curve.Snapshot{}, SellReceipt{}, fmt.Errorf("%w: holds %s tokens, selling %s",
				types.ErrInsufficientBalance, held.Dec(), req.TokenIn.Dec())
		}
	}

	res, err := pricing.Sell(snap, pricing.SellParams{
		TokenIn:    req.TokenIn,
		MinBaseOut: req.MinBaseOut,
		Deadline:   req.Deadline,
		Now:        r.clock.Now(),
	})
	if err != nil {
		return curve.Snapshot{}, SellReceipt{}, err
	}

	next := snap.State
	next.BaseReserveReal = res.NewBaseReserveReal
	next.TokenReserveReal = res.NewTokenReserveReal
	accrue(&next, res.Fee, r.cfg.Treasury, meta.Creator, solana.PublicKey{})

	err = r.stage(ctx, c, next, func(tx ledger.Tx) error {
		if err := tx.Transfer(meta.Mint, req.Caller, meta.Address, res.TokenIn); err != nil {
			return err
		}
		if err := tx.Transfer(r.cfg.BaseMint, meta.Address, req.Caller, res.BaseOut); err != nil {
			return err
		}
		return tx.Transfer(r.cfg.BaseMint, meta.Address, meta.FeeVault, res.Fee.Total)
	})
	if err != nil {
		return curve.Snapshot{}, SellReceipt{}, err
	}
	return c.SnapshotLocked(), SellReceipt{SellResult: res, Index: meta.Index}, nil
}

func (r *Router) graduated(ctx context.Context, snap curve.Snapshot) {
	r.logger.Info("Curve graduated",
		zap.Uint64("index", snap.Meta.Index),
		zap.String("symbol", snap.Meta.Symbol),
		zap.String("final_reserve", types.FormatUnits(snap.State.BaseReserveReal, 6)))

	r.publish(&events.GraduatedEvent{
		BaseEvent:        r.base(events.CurveGraduated),
		CurveRef:         ref(snap.Meta),
		FinalBaseReserve: snap.State.BaseReserveReal,
		Circulating:      snap.Circulating(),
	})
	r.metrics.RecordGraduation()
	if r.onGraduate != nil {
		r.onGraduate(ctx, snap)
	}
}
