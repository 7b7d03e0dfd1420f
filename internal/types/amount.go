// internal/types/amount.go
package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point precision of base and token amounts.
const Decimals = 18

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

var (
	// One is 1.0 in 18-decimal fixed point.
	One = uint256.NewInt(1_000_000_000_000_000_000)

	bpsDenom = uint256.NewInt(BpsDenominator)
)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// Amount builds an amount from an integer number of raw units.
func Amount(v uint64) *uint256.Int { return uint256.NewInt(v) }

// Units converts whole units (e.g. 10 tokens) into 18-decimal raw units.
func Units(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), One)
}

// Clone returns a copy of x treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}

// MulDiv returns floor(x*y/d). It fails on division by zero or when the
// result does not fit in 256 bits.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("muldiv: division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("muldiv: overflow")
	}
	return z, nil
}

// MulDivUp returns ceil(x*y/d).
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	// MulMod считает остаток по полному 512-битному произведению
	if !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if _, overflow := z.AddOverflow(z, uint256.NewInt(1)); overflow {
			return nil, fmt.Errorf("muldiv: overflow")
		}
	}
	return z, nil
}

// DivUp returns ceil(x/d).
func DivUp(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("div: division by zero")
	}
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(x, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// ApplyBps returns floor(x*bps/10000).
func ApplyBps(x *uint256.Int, bps uint64) *uint256.Int {
	z, _ := MulDiv(x, uint256.NewInt(bps), bpsDenom)
	return z
}

// GrossUpBps returns the smallest g with g - floor(g*bps/10000) >= net for a
// fee of bps basis points, i.e. ceil(net*10000/(10000-bps)).
func GrossUpBps(net *uint256.Int, bps uint64) (*uint256.Int, error) {
	if bps >= BpsDenominator {
		return nil, fmt.Errorf("fee of %d bps leaves nothing to trade", bps)
	}
	return MulDivUp(net, bpsDenom, uint256.NewInt(BpsDenominator-bps))
}

// ParseUnits parses a human readable decimal ("0.1", "1000") into raw units
// with the given number of decimals.
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", s)
	}
	return v, nil
}

// MustParseUnits is ParseUnits for constants and tests.
func MustParseUnits(s string) *uint256.Int {
	v, err := ParseUnits(s, Decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// ToDecimal converts raw units into a human readable decimal.
func ToDecimal(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -Decimals)
}

// FormatUnits renders raw units with the given number of fractional digits.
func FormatUnits(x *uint256.Int, places int32) string {
	return ToDecimal(x).StringFixed(places)
}
