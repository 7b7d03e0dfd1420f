// ==============================================
// File: internal/multicall/multicall.go
// ==============================================
package multicall

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/ledger"
	"github.com/rovshanmuradov/memecurve/internal/pricing"
	"github.com/rovshanmuradov/memecurve/internal/quote"
	"github.com/rovshanmuradov/memecurve/internal/registry"
)

// MemeData is the aggregated read of one curve for one viewing account.
type MemeData struct {
	Index   uint64
	Address solana.PublicKey
	Mint    solana.PublicKey
	Name    string
	Symbol  string
	URI     string
	Status  string
	Creator solana.PublicKey

	VirtualBaseReserve *uint256.Int
	BaseReserveReal    *uint256.Int
	TokenReserveReal   *uint256.Int
	MaxSupply          *uint256.Int
	Circulating        *uint256.Int
	FloorPrice         *uint256.Int
	MarketPrice        *uint256.Int
	TVL                *uint256.Int
	TotalFees          *uint256.Int
	Graduated          bool
	// Claimants hold unclaimed fees on the curve.
	Claimants []solana.PublicKey

	// viewing account
	NativeBalance *uint256.Int
	BaseBalance   *uint256.Int
	TokenBalance  *uint256.Int
	Claimable     *uint256.Int
	Redeemed      bool
}

// Multicall is a read-only projection over curve state and ledger balances.
type Multicall struct {
	registry   *registry.Registry
	ledger     ledger.Ledger
	quotes     *quote.Service
	baseMint   solana.PublicKey
	nativeMint solana.PublicKey
	workers    int
	logger     *zap.Logger
}

// New creates a multicall reader. workers bounds batch fan-out.
func New(reg *registry.Registry, led ledger.Ledger, quotes *quote.Service,
	baseMint, nativeMint solana.PublicKey, workers int, logger *zap.Logger) *Multicall {
	if workers <= 0 {
		workers = 4
	}
	return &Multicall{
		registry:   reg,
		ledger:     led,
		quotes:     quotes,
		baseMint:   baseMint,
		nativeMint: nativeMint,
		workers:    workers,
		logger:     logger.Named("multicall"),
	}
}

// GetMemeData reads curve index for account. A zero account yields zero
// balances.
func (m *Multicall) GetMemeData(ctx context.Context, index uint64, account solana.PublicKey) (MemeData, error) {
	if err := ctx.Err(); err != nil {
		return MemeData{}, err
	}
	c, err := m.registry.Lookup(index)
	if err != nil {
		return MemeData{}, err
	}
	return m.project(c.Snapshot(), account), nil
}

// GetMemeDataBatch reads several curves concurrently. The result preserves
// the order of indices; any unknown index fails the batch.
func (m *Multicall) GetMemeDataBatch(ctx context.Context, indices []uint64, account solana.PublicKey) ([]MemeData, error) {
	out := make([]MemeData, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			data, err := m.GetMemeData(gctx, idx, account)
			if err != nil {
				return fmt.Errorf("meme %d: %w", idx, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Debug("Batch read failed", zap.Int("size", len(indices)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// GetAll reads every registered curve.
func (m *Multicall) GetAll(ctx context.Context, account solana.PublicKey) ([]MemeData, error) {
	n := m.registry.Count()
	indices := make([]uint64, 0, n)
	for i := uint64(1); i <= n; i++ {
		indices = append(indices, i)
	}
	return m.GetMemeDataBatch(ctx, indices, account)
}

func (m *Multicall) project(s curve.Snapshot, account solana.PublicKey) MemeData {
	d := MemeData{
		Index:   s.Meta.Index,
		Address: s.Meta.Address,
		Mint:    s.Meta.Mint,
		Name:    s.Meta.Name,
		Symbol:  s.Meta.Symbol,
		URI:     s.Meta.URI,
		Status:  s.State.Status,
		Creator: s.Meta.Creator,

		VirtualBaseReserve: s.Params.BaseReserveVirtual,
		BaseReserveReal:    s.State.BaseReserveReal,
		TokenReserveReal:   s.State.TokenReserveReal,
		MaxSupply:          s.Params.MaxSupply,
		Circulating:        s.Circulating(),
		FloorPrice:         pricing.FloorPrice(s),
		MarketPrice:        pricing.MarketPrice(s),
		TVL:                pricing.TVL(s),
		TotalFees:          s.State.TotalFees,
		Graduated:          s.State.Graduated,
		Claimants:          s.State.Claimants(),

		NativeBalance: new(uint256.Int),
		BaseBalance:   new(uint256.Int),
		TokenBalance:  new(uint256.Int),
		Claimable:     s.FeesOf(account),
		Redeemed:      s.State.RedeemedBy[account],
	}
	if !account.IsZero() {
		d.NativeBalance = m.ledger.Balance(m.nativeMint, account)
		d.BaseBalance = m.ledger.Balance(m.baseMint, account)
		d.TokenBalance = m.ledger.Balance(s.Meta.Mint, account)
	}
	return d
}

// QuoteBuyIn previews a buy with an exact base input.
func (m *Multicall) QuoteBuyIn(addr solana.PublicKey, amount *uint256.Int, toleranceBps uint64) (quote.Quote, error) {
	return m.quotes.QuoteBuyIn(addr, amount, toleranceBps)
}

// QuoteSellIn previews a sell with an exact token input.
func (m *Multicall) QuoteSellIn(addr solana.PublicKey, amount *uint256.Int, toleranceBps uint64) (quote.Quote, error) {
	return m.quotes.QuoteSellIn(addr, amount, toleranceBps)
}

// QuoteBuyOut previews the base needed for an exact token output.
func (m *Multicall) QuoteBuyOut(addr solana.PublicKey, amount *uint256.Int, toleranceBps uint64) (quote.Quote, error) {
	return m.quotes.QuoteBuyOut(addr, amount, toleranceBps)
}

// QuoteSellOut previews the tokens needed for an exact base output.
func (m *Multicall) QuoteSellOut(addr solana.PublicKey, amount *uint256.Int, toleranceBps uint64) (quote.Quote, error) {
	return m.quotes.QuoteSellOut(addr, amount, toleranceBps)
}
