// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrBusClosed is returned by Publish after Shutdown started.
	ErrBusClosed = errors.New("event bus closed")
	// ErrBusFull is returned when the queue has no room; the event is dropped.
	ErrBusFull = errors.New("event queue full")
)

// Publisher is what the engine needs to emit events.
type Publisher interface {
	Publish(event Event) error
}

// Nop discards every event.
var Nop Publisher = nopPublisher{}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) error { return nil }

// Subscription is a handler attached to a bus.
type Subscription struct {
	ID string

	bus     *Bus
	types   map[EventType]bool // empty: every type
	handler Handler
}

// Unsubscribe detaches the handler. Calling it twice is a no-op.
func (s *Subscription) Unsubscribe() { s.bus.remove(s.ID) }

func (s *Subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// BusStats is a point-in-time view of the bus counters.
type BusStats struct {
	Buffer      int
	Pending     int
	Subscribers int
	Delivered   uint64
	Failed      uint64
	Dropped     uint64
}

// Bus fans curve events out to subscribers. Queued events are delivered by a
// single worker in publish order; Sync delivers on the caller's goroutine so
// subscribers have run before the operation returns.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription
	// gate orders Publish against Shutdown so nothing is queued after the
	// worker drained
	gate   sync.RWMutex
	closed bool

	queue  chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus starts a bus with a queue of bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	b := &Bus{
		queue:  make(chan Event, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.Named("event_bus"),
	}
	go b.run()
	return b
}

// Subscribe attaches h to the given event types, or to every type when none
// are given. Handlers run in subscription order.
func (b *Bus) Subscribe(h Handler, types ...EventType) *Subscription {
	sub := &Subscription{
		ID:      uuid.New().String(),
		bus:     b,
		types:   make(map[EventType]bool, len(types)),
		handler: h,
	}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("subscription_id", sub.ID),
		zap.Int("event_types", len(types)))
	return sub
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ID == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
			return
		}
	}
}

// Publish queues event for the worker. A full queue drops the event.
func (b *Bus) Publish(event Event) error {
	b.gate.RLock()
	defer b.gate.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("%w: %s", ErrBusFull, event.Type())
	}
}

// PublishSync delivers event to every matching subscriber and joins their
// errors. A failing handler does not stop the others.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(event.Type()) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := s.handler.Handle(ctx, event); err != nil {
			b.failed.Add(1)
			b.logger.Error("Handler failed",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", s.ID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		b.delivered.Add(1)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", event.Type(), errors.Join(errs...))
	}
	return nil
}

// Sync returns a Publisher that delivers on the caller's goroutine.
func (b *Bus) Sync() Publisher {
	return syncPublisher{bus: b}
}

type syncPublisher struct {
	bus *Bus
}

func (p syncPublisher) Publish(event Event) error {
	return p.bus.PublishSync(context.Background(), event)
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		select {
		case e := <-b.queue:
			_ = b.PublishSync(context.Background(), e)
		case <-b.stop:
			// после закрытия gate новых событий нет: дочитываем очередь
			for {
				select {
				case e := <-b.queue:
					_ = b.PublishSync(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and waits for the
// worker until ctx expires.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.gate.Lock()
	if !b.closed {
		b.closed = true
		b.logger.Info("Shutting down event bus", zap.Int("pending", b.Pending()))
		close(b.stop)
	}
	b.gate.Unlock()

	select {
	case <-b.done:
		st := b.Stats()
		b.logger.Info("Event bus stopped",
			zap.Uint64("delivered", st.Delivered),
			zap.Uint64("failed", st.Failed),
			zap.Uint64("dropped", st.Dropped))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", b.Pending()))
		return ctx.Err()
	}
}

// Pending returns the number of queued events not yet delivered.
func (b *Bus) Pending() int {
	return len(b.queue)
}

// Stats returns the bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return BusStats{
		Buffer:      cap(b.queue),
		Pending:     b.Pending(),
		Subscribers: n,
		Delivered:   b.delivered.Load(),
		Failed:      b.failed.Load(),
		Dropped:     b.dropped.Load(),
	}
}
