// internal/events/dispatch.go
package events

import "context"

// Handler consumes engine events. It runs on the publisher's goroutine for
// synchronous delivery and on the bus worker otherwise, so it must not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Handlers routes each curve event to its typed callback. Events without a
// callback are ignored.
type Handlers struct {
	Created     func(context.Context, *CurveCreatedEvent) error
	Trade       func(context.Context, *TradeEvent) error // buy and sell
	Contribute  func(context.Context, *ContributeEvent) error
	FeesClaimed func(context.Context, *FeesClaimedEvent) error
	Status      func(context.Context, *StatusUpdatedEvent) error
	Graduated   func(context.Context, *GraduatedEvent) error
	Redeem      func(context.Context, *RedeemEvent) error
}

// Handle implements Handler.
func (h Handlers) Handle(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case *CurveCreatedEvent:
		return call(ctx, h.Created, e)
	case *TradeEvent:
		return call(ctx, h.Trade, e)
	case *ContributeEvent:
		return call(ctx, h.Contribute, e)
	case *FeesClaimedEvent:
		return call(ctx, h.FeesClaimed, e)
	case *StatusUpdatedEvent:
		return call(ctx, h.Status, e)
	case *GraduatedEvent:
		return call(ctx, h.Graduated, e)
	case *RedeemEvent:
		return call(ctx, h.Redeem, e)
	}
	return nil
}

// Types lists the event types that have a callback, in AllTypes order.
func (h Handlers) Types() []EventType {
	set := map[EventType]bool{
		CurveCreated:     h.Created != nil,
		CurveGraduated:   h.Graduated != nil,
		CurveBuy:         h.Trade != nil,
		CurveSell:        h.Trade != nil,
		CurveContribute:  h.Contribute != nil,
		CurveFeesClaimed: h.FeesClaimed != nil,
		CurveRedeem:      h.Redeem != nil,
		CurveStatus:      h.Status != nil,
	}
	out := make([]EventType, 0, len(set))
	for _, t := range AllTypes {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

func call[E Event](ctx context.Context, fn func(context.Context, E) error, e E) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, e)
}
