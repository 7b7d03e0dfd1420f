// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/events"
	"github.com/rovshanmuradov/memecurve/internal/pricing"
	"github.com/rovshanmuradov/memecurve/internal/storage/models"
)

// CurveSource resolves live curves by reserve address.
type CurveSource interface {
	ByAddress(addr solana.PublicKey) (*curve.Curve, error)
}

// Recorder projects engine events into Storage.
type Recorder struct {
	store    Storage
	curves   CurveSource
	dispatch events.Handlers
	logger   *zap.Logger
}

// NewRecorder creates a recorder. Attach it with Subscribe.
func NewRecorder(store Storage, curves CurveSource, logger *zap.Logger) *Recorder {
	r := &Recorder{store: store, curves: curves, logger: logger.Named("recorder")}
	r.dispatch = events.Handlers{
		Created: func(ctx context.Context, e *events.CurveCreatedEvent) error {
			return r.syncCurve(ctx, e.Curve)
		},
		Trade: r.saveTrade,
		Contribute: func(ctx context.Context, e *events.ContributeEvent) error {
			return r.syncCurve(ctx, e.Curve)
		},
		FeesClaimed: r.saveClaims,
		Status: func(ctx context.Context, e *events.StatusUpdatedEvent) error {
			return r.syncCurve(ctx, e.Curve)
		},
		Graduated: func(ctx context.Context, e *events.GraduatedEvent) error {
			return r.syncCurve(ctx, e.Curve)
		},
		Redeem: r.saveRedeem,
	}
	return r
}

// Subscribe attaches the recorder to every curve event of bus.
func (r *Recorder) Subscribe(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(r, r.dispatch.Types()...)
}

// Handle implements events.Handler.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	if err := r.dispatch.Handle(ctx, event); err != nil {
		r.logger.Error("Failed to record event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
		return fmt.Errorf("record %s: %w", event.Type(), err)
	}
	return nil
}

// syncCurve upserts the current snapshot of a curve.
func (r *Recorder) syncCurve(ctx context.Context, addr solana.PublicKey) error {
	c, err := r.curves.ByAddress(addr)
	if err != nil {
		return err
	}
	s := c.Snapshot()
	m := &models.Curve{
		CurveIndex:       s.Meta.Index,
		Address:          s.Meta.Address.String(),
		Mint:             s.Meta.Mint.String(),
		Name:             s.Meta.Name,
		Symbol:           s.Meta.Symbol,
		URI:              s.Meta.URI,
		Creator:          s.Meta.Creator.String(),
		Status:           s.State.Status,
		BaseReserveReal:  s.State.BaseReserveReal.Dec(),
		TokenReserveReal: s.State.TokenReserveReal.Dec(),
		TotalFees:        s.State.TotalFees.Dec(),
		Graduated:        s.State.Graduated,
	}
	if s.State.Graduated {
		at := s.State.GraduatedAt
		m.GraduatedAt = &at
	}
	return r.store.SaveCurve(ctx, m)
}

func (r *Recorder) saveTrade(ctx context.Context, e *events.TradeEvent) error {
	side := "buy"
	if e.Type() == events.CurveSell {
		side = "sell"
	}
	t := &models.Trade{
		EventID:      uuid.New().String(),
		CurveAddress: e.Curve.String(),
		CurveIndex:   e.Index,
		Side:         side,
		Trader:       e.Trader.String(),
		BaseAmount:   e.BaseAmount.Dec(),
		TokenAmount:  e.TokenAmount.Dec(),
		Fee:          e.Fee.Dec(),
		Price:        e.MarketPrice.Dec(),
		ExecutedAt:   e.Timestamp(),
	}
	if !e.Referrer.IsZero() {
		t.Referrer = e.Referrer.String()
	}
	if err := r.store.SaveTrade(ctx, t); err != nil {
		return err
	}
	return r.syncCurve(ctx, e.Curve)
}

func (r *Recorder) saveRedeem(ctx context.Context, e *events.RedeemEvent) error {
	t := &models.Trade{
		EventID:      uuid.New().String(),
		CurveAddress: e.Curve.String(),
		CurveIndex:   e.Index,
		Side:         "redeem",
		Trader:       e.Holder.String(),
		BaseAmount:   e.Payout.Dec(),
		TokenAmount:  e.Tokens.Dec(),
		Fee:          "0",
		ExecutedAt:   e.Timestamp(),
	}
	if c, err := r.curves.ByAddress(e.Curve); err == nil {
		t.Price = pricing.MarketPrice(c.Snapshot()).Dec()
	}
	if err := r.store.SaveTrade(ctx, t); err != nil {
		return err
	}
	return r.syncCurve(ctx, e.Curve)
}

func (r *Recorder) saveClaims(ctx context.Context, e *events.FeesClaimedEvent) error {
	id := uuid.New().String()
	claims := make([]*models.FeeClaim, 0, len(e.Claims))
	for _, c := range e.Claims {
		claims = append(claims, &models.FeeClaim{
			EventID:      id,
			Claimant:     e.Claimant.String(),
			CurveAddress: c.Curve.String(),
			Amount:       c.Amount.Dec(),
			ClaimedAt:    e.Timestamp(),
		})
	}
	return r.store.SaveClaims(ctx, claims)
}
