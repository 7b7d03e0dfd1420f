// ==============================================
// File: internal/registry/registry.go
// ==============================================
package registry

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// Seeds for program derived addresses of a curve.
const (
	SeedCurve = "curve"
	SeedMint  = "mint"
	SeedFees  = "fees"
)

// Policy holds the creation rules and the parameters every new curve gets.
type Policy struct {
	ProgramID          solana.PublicKey
	Params             curve.Params
	MinCreationPayment *uint256.Int
	MaxNameLength      int
	MaxSymbolLength    int
	MaxURILength       int
	// UniqueNames rejects a name or symbol already used by another curve
	// (case-insensitive).
	UniqueNames bool
}

// CreateParams is the metadata of a new curve and the payment seeding it.
type CreateParams struct {
	Name    string
	Symbol  string
	URI     string
	Creator solana.PublicKey
	Payment *uint256.Int
}

// FundFunc moves the creation payment and mints the supply for a freshly built
// curve. The curve is registered only if it returns nil.
type FundFunc func(ctx context.Context, c *curve.Curve) error

// Registry creates curves and assigns them sequential indices starting at 1.
type Registry struct {
	mu sync.RWMutex

	policy Policy
	clock  types.Clock
	logger *zap.Logger

	next      uint64
	byIndex   map[uint64]*curve.Curve
	byAddress map[solana.PublicKey]*curve.Curve
	byMint    map[solana.PublicKey]*curve.Curve
	names     map[string]uint64
	symbols   map[string]uint64
}

// New creates an empty registry.
func New(policy Policy, clock types.Clock, logger *zap.Logger) (*Registry, error) {
	if policy.ProgramID.IsZero() {
		return nil, fmt.Errorf("registry: program id is required")
	}
	if policy.MaxNameLength <= 0 || policy.MaxSymbolLength <= 0 {
		return nil, fmt.Errorf("registry: name and symbol limits must be positive")
	}
	if err := policy.Params.Validate(); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	policy.MinCreationPayment = types.Clone(policy.MinCreationPayment)
	return &Registry{
		policy:    policy,
		clock:     clock,
		logger:    logger.Named("registry"),
		next:      1,
		byIndex:   make(map[uint64]*curve.Curve),
		byAddress: make(map[solana.PublicKey]*curve.Curve),
		byMint:    make(map[solana.PublicKey]*curve.Curve),
		names:     make(map[string]uint64),
		symbols:   make(map[string]uint64),
	}, nil
}

// Policy returns the creation policy.
func (r *Registry) Policy() Policy { return r.policy }

// Create validates metadata and payment, builds the next curve and registers
// it once fund succeeds. A failed creation does not consume an index.
func (r *Registry) Create(ctx context.Context, p CreateParams, fund FundFunc) (*curve.Curve, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, symbol, uri := strings.TrimSpace(p.Name), strings.TrimSpace(p.Symbol), strings.TrimSpace(p.URI)
	if err := r.validate(name, symbol, uri, p); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.policy.UniqueNames {
		if idx, ok := r.names[strings.ToLower(name)]; ok {
			return nil, fmt.Errorf("%w: name %q already used by curve %d",
				types.ErrDuplicateOrInvalidMetadata, name, idx)
		}
		if idx, ok := r.symbols[strings.ToUpper(symbol)]; ok {
			return nil, fmt.Errorf("%w: symbol %q already used by curve %d",
				types.ErrDuplicateOrInvalidMetadata, symbol, idx)
		}
	}

	index := r.next
	meta, err := r.derive(index)
	if err != nil {
		return nil, err
	}
	meta.Name, meta.Symbol, meta.URI = name, symbol, uri
	meta.Creator = p.Creator
	meta.CreatedAt = r.clock.Now()

	c, err := curve.New(meta, r.policy.Params, p.Payment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDuplicateOrInvalidMetadata, err)
	}
	if fund != nil {
		if err := fund(ctx, c); err != nil {
			r.logger.Warn("Curve funding failed",
				zap.Uint64("index", index),
				zap.String("symbol", symbol),
				zap.Error(err))
			return nil, err
		}
	}

	r.next++
	r.byIndex[index] = c
	r.byAddress[meta.Address] = c
	r.byMint[meta.Mint] = c
	r.names[strings.ToLower(name)] = index
	r.symbols[strings.ToUpper(symbol)] = index

	r.logger.Info("Curve created",
		zap.Uint64("index", index),
		zap.String("name", name),
		zap.String("symbol", symbol),
		zap.String("address", meta.Address.String()),
		zap.String("creator", p.Creator.String()))
	return c, nil
}

func (r *Registry) validate(name, symbol, uri string, p CreateParams) error {
	if p.Creator.IsZero() {
		return fmt.Errorf("%w: creator", types.ErrInvalidAccount)
	}
	switch {
	case name == "" || len(name) > r.policy.MaxNameLength:
		return fmt.Errorf("%w: name must be 1..%d bytes", types.ErrDuplicateOrInvalidMetadata, r.policy.MaxNameLength)
	case symbol == "" || len(symbol) > r.policy.MaxSymbolLength:
		return fmt.Errorf("%w: symbol must be 1..%d bytes", types.ErrDuplicateOrInvalidMetadata, r.policy.MaxSymbolLength)
	case r.policy.MaxURILength > 0 && len(uri) > r.policy.MaxURILength:
		return fmt.Errorf("%w: uri longer than %d bytes", types.ErrDuplicateOrInvalidMetadata, r.policy.MaxURILength)
	}
	for _, ch := range symbol {
		if unicode.IsSpace(ch) || unicode.IsControl(ch) {
			return fmt.Errorf("%w: symbol %q contains whitespace", types.ErrDuplicateOrInvalidMetadata, symbol)
		}
	}
	payment := types.Clone(p.Payment)
	if payment.Lt(r.policy.MinCreationPayment) {
		return fmt.Errorf("%w: payment %s below minimum %s", types.ErrDuplicateOrInvalidMetadata,
			payment.Dec(), r.policy.MinCreationPayment.Dec())
	}
	return nil
}

// derive computes the program derived addresses of curve index.
func (r *Registry) derive(index uint64) (curve.Metadata, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, index)

	find := func(prefix string) (solana.PublicKey, error) {
		addr, _, err := solana.FindProgramAddress([][]byte{[]byte(prefix), seed}, r.policy.ProgramID)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("derive %s address for curve %d: %w", prefix, index, err)
		}
		return addr, nil
	}

	var meta curve.Metadata
	var err error
	meta.Index = index
	if meta.Address, err = find(SeedCurve); err != nil {
		return meta, err
	}
	if meta.Mint, err = find(SeedMint); err != nil {
		return meta, err
	}
	if meta.FeeVault, err = find(SeedFees); err != nil {
		return meta, err
	}
	return meta, nil
}

// Lookup returns the curve with the given index.
func (r *Registry) Lookup(index uint64) (*curve.Curve, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", types.ErrNotFound, index)
	}
	return c, nil
}

// ByAddress returns the curve with the given reserve address.
func (r *Registry) ByAddress(addr solana.PublicKey) (*curve.Curve, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byAddress[addr]
	if !ok {
		return nil, fmt.Errorf("%w: address %s", types.ErrNotFound, addr)
	}
	return c, nil
}

// ByMint returns the curve trading the given token mint.
func (r *Registry) ByMint(mint solana.PublicKey) (*curve.Curve, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byMint[mint]
	if !ok {
		return nil, fmt.Errorf("%w: mint %s", types.ErrNotFound, mint)
	}
	return c, nil
}

// Count returns the number of registered curves.
func (r *Registry) Count() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next - 1
}

// List returns all curves ordered by index.
func (r *Registry) List() []*curve.Curve {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*curve.Curve, 0, len(r.byIndex))
	for i := uint64(1); i < r.next; i++ {
		out = append(out, r.byIndex[i])
	}
	return out
}
