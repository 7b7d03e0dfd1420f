package history

import (
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// Action is the kind of a recorded trade.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionRedeem Action = "redeem"
)

// Trade is one settled buy, sell or redeem.
type Trade struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Index     uint64    `json:"index"`
	Curve     string    `json:"curve"`
	Symbol    string    `json:"symbol"`
	Action    Action    `json:"action"`
	Trader    string    `json:"trader"`
	Referrer  string    `json:"referrer,omitempty"`

	// суммы в сырых единицах (18 знаков)
	BaseAmount  *uint256.Int `json:"base_amount"`
	TokenAmount *uint256.Int `json:"token_amount"`
	Fee         *uint256.Int `json:"fee"`
	Price       *uint256.Int `json:"price"`
}

// ToCSV converts the trade into a journal row with human readable amounts.
func (t *Trade) ToCSV() []string {
	return []string{
		t.ID,
		t.Timestamp.Format(time.RFC3339),
		strconv.FormatUint(t.Index, 10),
		t.Curve,
		t.Symbol,
		string(t.Action),
		t.Trader,
		t.Referrer,
		types.ToDecimal(t.BaseAmount).String(),
		types.ToDecimal(t.TokenAmount).String(),
		types.ToDecimal(t.Fee).String(),
		types.ToDecimal(t.Price).String(),
	}
}

// CSVHeaders returns the header row matching ToCSV.
func CSVHeaders() []string {
	return []string{
		"id",
		"timestamp",
		"index",
		"curve",
		"symbol",
		"action",
		"trader",
		"referrer",
		"base_amount",
		"token_amount",
		"fee",
		"price",
	}
}
