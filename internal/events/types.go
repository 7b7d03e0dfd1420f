// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// EventType represents the type of event.
type EventType string

const (
	// Lifecycle events
	CurveCreated   EventType = "curve.created"
	CurveGraduated EventType = "curve.graduated"

	// Trade events
	CurveBuy  EventType = "curve.buy"
	CurveSell EventType = "curve.sell"

	// Reserve and fee events
	CurveContribute  EventType = "curve.contribute"
	CurveFeesClaimed EventType = "curve.fees_claimed"
	CurveRedeem      EventType = "curve.redeem"

	CurveStatus EventType = "curve.status"
)

// AllTypes lists every event the engine emits.
var AllTypes = []EventType{
	CurveCreated, CurveGraduated, CurveBuy, CurveSell,
	CurveContribute, CurveFeesClaimed, CurveRedeem, CurveStatus,
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// CurveRef identifies the curve an event belongs to.
type CurveRef struct {
	Index  uint64
	Curve  solana.PublicKey
	Mint   solana.PublicKey
	Symbol string
}

// CurveCreatedEvent is emitted when the registry commits a new curve.
type CurveCreatedEvent struct {
	BaseEvent
	CurveRef
	Name    string
	URI     string
	Creator solana.PublicKey
	Payment *uint256.Int
}

// TradeEvent is emitted for every settled buy or sell.
type TradeEvent struct {
	BaseEvent
	CurveRef
	Trader   solana.PublicKey
	Referrer solana.PublicKey // zero when no referrer was credited

	BaseAmount  *uint256.Int // gross base paid (buy) or net base received (sell)
	TokenAmount *uint256.Int
	Fee         *uint256.Int
	Refund      *uint256.Int

	BaseReserveReal  *uint256.Int
	TokenReserveReal *uint256.Int
	MarketPrice      *uint256.Int
	FloorPrice       *uint256.Int
}

// ContributeEvent is emitted when base is donated to a curve reserve.
type ContributeEvent struct {
	BaseEvent
	CurveRef
	Contributor     solana.PublicKey
	Amount          *uint256.Int
	BaseReserveReal *uint256.Int
}

// Claim is one curve's share of a fee claim.
type Claim struct {
	CurveRef
	Amount *uint256.Int
}

// FeesClaimedEvent is emitted once per ClaimFees call that paid anything.
type FeesClaimedEvent struct {
	BaseEvent
	Claimant solana.PublicKey
	Claims   []Claim
	Total    *uint256.Int
}

// StatusUpdatedEvent is emitted when a holder overwrites the curve status.
type StatusUpdatedEvent struct {
	BaseEvent
	CurveRef
	Author solana.PublicKey
	Status string
}

// GraduatedEvent is emitted once, by the buy that exhausts the curve.
type GraduatedEvent struct {
	BaseEvent
	CurveRef
	FinalBaseReserve *uint256.Int
	Circulating      *uint256.Int
}

// RedeemEvent is emitted when a holder converts tokens of a graduated curve.
type RedeemEvent struct {
	BaseEvent
	CurveRef
	Holder solana.PublicKey
	Tokens *uint256.Int
	Payout *uint256.Int
}
