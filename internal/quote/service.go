// internal/quote/service.go
package quote

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/curve"
)

// Curves resolves a curve by its reserve address.
type Curves interface {
	ByAddress(addr solana.PublicKey) (*curve.Curve, error)
}

// Service answers previews against live curves. It only ever reads snapshots.
type Service struct {
	curves Curves
	logger *zap.Logger
}

// NewService creates a quote service over the given curve source.
func NewService(curves Curves, logger *zap.Logger) *Service {
	return &Service{curves: curves, logger: logger.Named("quote")}
}

func (s *Service) snapshot(addr solana.PublicKey) (curve.Snapshot, error) {
	c, err := s.curves.ByAddress(addr)
	if err != nil {
		return curve.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *Service) run(op string, addr solana.PublicKey, amount *uint256.Int, toleranceBps uint64,
	fn func(curve.Snapshot, *uint256.Int, uint64) (Quote, error)) (Quote, error) {
	snap, err := s.snapshot(addr)
	if err != nil {
		return Quote{}, err
	}
	q, err := fn(snap, amount, toleranceBps)
	if err != nil {
		s.logger.Debug("Quote rejected",
			zap.String("op", op),
			zap.String("curve", addr.String()),
			zap.Error(err))
		return Quote{}, err
	}
	return q, nil
}

// QuoteBuyIn previews a buy with an exact base input.
func (s *Service) QuoteBuyIn(addr solana.PublicKey, baseIn *uint256.Int, toleranceBps uint64) (Quote, error) {
	return s.run("buy_in", addr, baseIn, toleranceBps, BuyIn)
}

// QuoteSellIn previews a sell with an exact token input.
func (s *Service) QuoteSellIn(addr solana.PublicKey, tokenIn *uint256.Int, toleranceBps uint64) (Quote, error) {
	return s.run("sell_in", addr, tokenIn, toleranceBps, SellIn)
}

// QuoteBuyOut previews the cost of an exact token output.
func (s *Service) QuoteBuyOut(addr solana.PublicKey, tokenOut *uint256.Int, toleranceBps uint64) (Quote, error) {
	return s.run("buy_out", addr, tokenOut, toleranceBps, BuyOut)
}

// QuoteSellOut previews the tokens needed for an exact base output.
func (s *Service) QuoteSellOut(addr solana.PublicKey, baseOut *uint256.Int, toleranceBps uint64) (Quote, error) {
	return s.run("sell_out", addr, baseOut, toleranceBps, SellOut)
}
