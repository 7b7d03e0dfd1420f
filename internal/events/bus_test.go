package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishSyncTypedAndWildcard(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())

	var typed, all int32
	bus.Subscribe(HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&typed, 1)
		return nil
	}), CurveBuy)
	sub := bus.Subscribe(HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	}))

	require.NoError(t, bus.Sync().Publish(&TradeEvent{BaseEvent: BaseEvent{EventType: CurveBuy, EventTime: time.Now()}}))
	require.NoError(t, bus.Sync().Publish(&StatusUpdatedEvent{BaseEvent: BaseEvent{EventType: CurveStatus}}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&typed))
	assert.Equal(t, int32(2), atomic.LoadInt32(&all))

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.Sync().Publish(&StatusUpdatedEvent{BaseEvent: BaseEvent{EventType: CurveStatus}}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&all))
	assert.Equal(t, 1, bus.Stats().Subscribers)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	var after int32
	bus.Subscribe(HandlerFunc(func(context.Context, Event) error { return boom }), CurveSell)
	bus.Subscribe(HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&after, 1)
		return nil
	}), CurveSell)

	err := bus.PublishSync(context.Background(), &TradeEvent{BaseEvent: BaseEvent{EventType: CurveSell}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&after))

	st := bus.Stats()
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, uint64(1), st.Delivered)
}

func TestHandlersDispatchByKind(t *testing.T) {
	var trades, redeems []EventType
	h := Handlers{
		Trade: func(_ context.Context, e *TradeEvent) error {
			trades = append(trades, e.Type())
			return nil
		},
		Redeem: func(_ context.Context, e *RedeemEvent) error {
			redeems = append(redeems, e.Type())
			return nil
		},
	}
	assert.Equal(t, []EventType{CurveBuy, CurveSell, CurveRedeem}, h.Types())

	bus := NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())
	bus.Subscribe(h, h.Types()...)

	pub := bus.Sync()
	require.NoError(t, pub.Publish(&TradeEvent{BaseEvent: BaseEvent{EventType: CurveBuy}}))
	require.NoError(t, pub.Publish(&TradeEvent{BaseEvent: BaseEvent{EventType: CurveSell}}))
	require.NoError(t, pub.Publish(&RedeemEvent{BaseEvent: BaseEvent{EventType: CurveRedeem}}))
	require.NoError(t, pub.Publish(&ContributeEvent{BaseEvent: BaseEvent{EventType: CurveContribute}}))

	assert.Equal(t, []EventType{CurveBuy, CurveSell}, trades)
	assert.Equal(t, []EventType{CurveRedeem}, redeems)
	// contribute has no callback and no subscription
	assert.Equal(t, uint64(3), bus.Stats().Delivered)

	// без колбэка событие молча пропускается
	assert.NoError(t, Handlers{}.Handle(context.Background(), &GraduatedEvent{}))
}

func TestShutdownDeliversQueuedEventsInOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []uint64
	bus.Subscribe(Handlers{Contribute: func(_ context.Context, e *ContributeEvent) error {
		mu.Lock()
		got = append(got, e.Index)
		mu.Unlock()
		return nil
	}})
	for i := uint64(0); i < 10; i++ {
		require.NoError(t, bus.Publish(&ContributeEvent{
			BaseEvent: BaseEvent{EventType: CurveContribute},
			CurveRef:  CurveRef{Index: i},
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
	require.NoError(t, bus.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 10)
	for i, idx := range got {
		assert.Equal(t, uint64(i), idx)
	}
	assert.ErrorIs(t, bus.Publish(&ContributeEvent{}), ErrBusClosed)
	assert.Zero(t, bus.Pending())
}

func TestFullQueueDropsEvents(t *testing.T) {
	bus := NewBus(zap.NewNop(), 2)

	started, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	bus.Subscribe(HandlerFunc(func(context.Context, Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}))

	ev := &StatusUpdatedEvent{BaseEvent: BaseEvent{EventType: CurveStatus}}
	require.NoError(t, bus.Publish(ev))
	<-started // worker держит первое событие

	require.NoError(t, bus.Publish(ev))
	require.NoError(t, bus.Publish(ev))
	assert.Equal(t, 2, bus.Pending())
	assert.ErrorIs(t, bus.Publish(ev), ErrBusFull)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	st := bus.Stats()
	assert.Equal(t, 2, st.Buffer)
	assert.Equal(t, uint64(3), st.Delivered)
	assert.Equal(t, uint64(1), st.Dropped)
}
