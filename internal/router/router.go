// ==============================================
// File: internal/router/router.go
// ==============================================
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
	"github.com/rovshanmuradov/memecurve/internal/registry"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
	"github.com/rovshanmuradov/memecurve/internal/utils/metrics"
)

// Config holds router policy.
type Config struct {
	// BaseMint is the asset every curve trades against.
	BaseMint solana.PublicKey
	// Treasury receives the protocol share of fees.
	Treasury solana.PublicKey
	// MinStatusBalance is the token balance required to set a curve status.
	MinStatusBalance *uint256.Int
	MaxStatusLength  int
}

// GraduationHook is called once, after the buy that graduates a curve has
// settled. It runs outside the curve lock.
type GraduationHook func(ctx context.Context, snap curve.Snapshot)

// Option configures a Router.
type Option func(*Router)

// WithClock sets the time source for deadline checks.
func WithClock(c types.Clock) Option { return func(r *Router) { r.clock = c } }

// WithPublisher sets where events go.
func WithPublisher(p events.Publisher) Option { return func(r *Router) { r.events = p } }

// WithMetrics enables prometheus metrics.
func WithMetrics(m *metrics.Collector) Option { return func(r *Router) { r.metrics = m } }

// WithGraduationHook installs a graduation callback.
func WithGraduationHook(h GraduationHook) Option { return func(r *Router) { r.onGraduate = h } }

// Router orchestrates every mutating operation on curves.
type Router struct {
	cfg      Config
	registry *registry.Registry
	ledger   ledger.Ledger
	clock    types.Clock
	events   events.Publisher
	metrics  *metrics.Collector
	logger   *zap.Logger

	onGraduate GraduationHook
}

// New creates a router.
func New(cfg Config, reg *registry.Registry, led ledger.Ledger, logger *zap.Logger, opts ...Option) (*Router, error) {
	if cfg.BaseMint.IsZero() {
		return nil, fmt.Errorf("router: base mint is required")
	}
	if cfg.Treasury.IsZero() {
		return nil, fmt.Errorf("router: treasury is required")
	}
	if cfg.MinStatusBalance == nil || cfg.MinStatusBalance.IsZero() {
		return nil, fmt.Errorf("router: min status balance must be positive")
	}
	r := &Router{
		cfg:      cfg,
		registry: reg,
		ledger:   led,
		clock:    types.SystemClock{},
		events:   events.Nop,
		logger:   logger.Named("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry returns the curve registry.
func (r *Router) Registry() *registry.Registry { return r.registry }

// Ledger returns the asset-transfer collaborator.
func (r *Router) Ledger() ledger.Ledger { return r.ledger }

// Config returns the router policy.
func (r *Router) Config() Config { return r.cfg }

// CreateMeme registers a new curve seeded with payment from the caller.
func (r *Router) CreateMeme(ctx context.Context, caller solana.PublicKey, name, symbol, uri string, payment *uint256.Int) (c *curve.Curve, err error) {
	defer r.observe(ctx, "create", time.Now(), &err)

	c, err = r.registry.Create(ctx, registry.CreateParams{
		Name:    name,
		Symbol:  symbol,
		URI:     uri,
		Creator: caller,
		Payment: payment,
	}, r.fund(caller, payment))
	if err != nil {
		return nil, fmt.Errorf("create meme %q: %w", symbol, err)
	}

	meta := c.Meta()
	r.publish(&events.CurveCreatedEvent{
		BaseEvent: r.base(events.CurveCreated),
		CurveRef:  ref(meta),
		Name:      meta.Name,
		URI:       meta.URI,
		Creator:   caller,
		Payment:   types.Clone(payment),
	})
	r.metrics.SetCurves(r.registry.Count())
	r.metrics.SetReserve(meta.Symbol, payment)
	return c, nil
}

// fund moves the creation payment into the curve reserve and mints the
// whole supply to it.
func (r *Router) fund(caller solana.PublicKey, payment *uint256.Int) registry.FundFunc {
	return func(ctx context.Context, c *curve.Curve) error {
		meta, params := c.Meta(), c.Params()
		return r.ledger.Atomic(ctx, func(tx ledger.Tx) error {
			if err := tx.Transfer(r.cfg.BaseMint, caller, meta.Address, types.Clone(payment)); err != nil {
				return err
			}
			return tx.Mint(meta.Mint, meta.Address, params.MaxSupply)
		})
	}
}

// Snapshot returns a copy of a curve's state.
func (r *Router) Snapshot(addr solana.PublicKey) (curve.Snapshot, error) {
	c, err := r.registry.ByAddress(addr)
	if err != nil {
		return curve.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// Claimable returns the unclaimed fees of account on a curve.
func (r *Router) Claimable(addr, account solana.PublicKey) (*uint256.Int, error) {
	snap, err := r.Snapshot(addr)
	if err != nil {
		return nil, err
	}
	return snap.FeesOf(account), nil
}

// ReferrerOf returns the referrer recorded for buyer on a curve.
func (r *Router) ReferrerOf(addr, buyer solana.PublicKey) (solana.PublicKey, bool, error) {
	snap, err := r.Snapshot(addr)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	ref, ok := snap.State.Referrers[buyer]
	return ref, ok, nil
}

// stage validates the candidate state, runs the ledger movements and then
// commits the curve. The caller holds the curve lock.
func (r *Router) stage(ctx context.Context, c *curve.Curve, next curve.State, moves func(ledger.Tx) error) error {
	candidate := curve.Snapshot{Meta: c.Meta(), Params: c.Params(), State: next}
	if err := candidate.Validate(); err != nil {
		return err
	}
	if err := r.ledger.Atomic(ctx, moves); err != nil {
		return err
	}
	return c.Commit(next)
}

func (r *Router) base(t events.EventType) events.BaseEvent {
	return events.BaseEvent{EventType: t, EventTime: r.clock.Now()}
}

func (r *Router) publish(e events.Event) {
	if err := r.events.Publish(e); err != nil {
		r.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

func (r *Router) observe(ctx context.Context, op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	r.metrics.RecordOperation(ctx, op, elapsed, *errp)
	if *errp != nil {
		logger.Operation(r.logger, op).Debug("Operation rejected",
			zap.Duration("duration", elapsed),
			zap.Error(*errp))
	}
}

func ref(meta curve.Metadata) events.CurveRef {
	return events.CurveRef{Index: meta.Index, Curve: meta.Address, Mint: meta.Mint, Symbol: meta.Symbol}
}

func requireAccount(a solana.PublicKey, what string) error {
	if a.IsZero() {
		return fmt.Errorf("%w: %s", types.ErrInvalidAccount, what)
	}
	return nil
}

// accrue credits fee shares to their claimants.
func accrue(s *curve.State, fee pricing.FeeBreakdown, protocol, creator, referrer solana.PublicKey) {
	add := func(who solana.PublicKey, amt *uint256.Int) {
		if amt == nil || amt.IsZero() {
			return
		}
		cur := types.Clone(s.Fees[who])
		s.Fees[who] = cur.Add(cur, amt)
	}
	add(protocol, fee.Protocol)
	add(creator, fee.Creator)
	add(referrer, fee.Referrer)
	s.TotalFees = new(uint256.Int).Add(types.Clone(s.TotalFees), fee.Total)
}
