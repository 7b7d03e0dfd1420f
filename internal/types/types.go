// internal/types/types.go
package types

import (
	"github.com/gagliardetto/solana-go"
)

// Account identifies a caller. The boundary authenticates it before any
// balance-moving operation reaches the engine.
type Account = solana.PublicKey

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// IsZeroAccount reports whether a is the zero public key.
func IsZeroAccount(a Account) bool {
	return a.IsZero()
}
