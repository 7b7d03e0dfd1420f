// internal/types/errors.go
package types

import "errors"

// Error kinds surfaced by the engine. Every one of them is terminal to the
// operation that raised it: reserves, balances and fee accumulators are left
// exactly as they were before the call.
var (
	ErrExpired                    = errors.New("deadline expired")
	ErrSlippageExceeded           = errors.New("slippage exceeded")
	ErrInsufficientReserve        = errors.New("insufficient reserve")
	ErrBelowFloor                 = errors.New("reserve below floor")
	ErrNotGraduated               = errors.New("curve not graduated")
	ErrAlreadyRedeemed            = errors.New("already redeemed")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrNotFound                   = errors.New("curve not found")
	ErrDuplicateOrInvalidMetadata = errors.New("duplicate or invalid metadata")
	ErrTransferFailed             = errors.New("transfer failed")

	// ErrGraduated is returned for buy/sell on a curve that already graduated.
	ErrGraduated = errors.New("curve graduated, trading disabled")
	// ErrInvalidAmount covers zero or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrOverflow is returned when reserve arithmetic leaves 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrInvalidAccount covers zero-value account identities.
	ErrInvalidAccount = errors.New("invalid account")
)
