package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBusEmitReachesSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(UpstreamStatusChanged, func(e *Event) {
		received = append(received, e)
	})

	bus.Emit(UpstreamStatusChanged, map[string]interface{}{"is_warm": true})
	bus.Emit(MarketCacheCleared, map[string]interface{}{"deleted": int64(3)})

	assert.Len(t, received, 1, "handler only sees its subscribed type")
	assert.Equal(t, UpstreamStatusChanged, received[0].Type)
	assert.Equal(t, true, received[0].Data["is_warm"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBusMultipleHandlers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	bus.Subscribe(MarketCacheCleared, func(e *Event) { calls++ })
	bus.Subscribe(MarketCacheCleared, func(e *Event) { calls++ })

	bus.Emit(MarketCacheCleared, nil)
	assert.Equal(t, 2, calls)
}

func TestBusEmitWithNoSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	assert.NotPanics(t, func() {
		bus.Emit(BackupCompleted, nil)
	})
}

func TestBusStreamReceivesAllTypes(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch := bus.SubscribeStream()
	bus.Emit(UpstreamStatusChanged, map[string]interface{}{"is_warm": true})
	bus.Emit(BackupCompleted, nil)

	first := <-ch
	second := <-ch
	assert.Equal(t, UpstreamStatusChanged, first.Type)
	assert.Equal(t, BackupCompleted, second.Type)

	bus.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestBusStreamFullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch := bus.SubscribeStream()
	defer bus.Unsubscribe(ch)

	assert.NotPanics(t, func() {
		for i := 0; i < 50; i++ {
			bus.Emit(MarketCacheCleared, nil)
		}
	})
	assert.Len(t, ch, cap(ch))
}
