// ==============================================
// File: internal/ledger/ledger.go
// ==============================================
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// OpKind is the kind of a balance movement.
type OpKind string

const (
	OpTransfer OpKind = "transfer"
	OpMint     OpKind = "mint"
	OpBurn     OpKind = "burn"
)

// Op describes one staged balance movement. From is zero for mints and To is
// zero for burns.
type Op struct {
	Kind   OpKind
	Asset  solana.PublicKey
	From   solana.PublicKey
	To     solana.PublicKey
	Amount *uint256.Int
}

// Tx stages balance movements inside Ledger.Atomic.
type Tx interface {
	Balance(asset, account solana.PublicKey) *uint256.Int
	Transfer(asset, from, to solana.PublicKey, amount *uint256.Int) error
	Mint(asset, to solana.PublicKey, amount *uint256.Int) error
	Burn(asset, from solana.PublicKey, amount *uint256.Int) error
}

// Ledger is the asset-transfer collaborator. Atomic commits every movement
// staged by fn or none of them.
type Ledger interface {
	Atomic(ctx context.Context, fn func(Tx) error) error
	Balance(asset, account solana.PublicKey) *uint256.Int
}
