// internal/types/slippage.go
package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ValidateTolerance checks a slippage tolerance given in basis points of the
// quoted output that must be guaranteed (9800 = at most 2% adverse move).
func ValidateTolerance(toleranceBps uint64) error {
	if toleranceBps == 0 || toleranceBps > BpsDenominator {
		return fmt.Errorf("tolerance %d bps out of range (1..%d)", toleranceBps, BpsDenominator)
	}
	return nil
}

// MinAmountOut returns floor(expected*toleranceBps/10000), the bound a caller
// passes to a live trade after previewing it.
func MinAmountOut(expected *uint256.Int, toleranceBps uint64) *uint256.Int {
	return ApplyBps(expected, toleranceBps)
}
