// Package events provides event management functionality.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	UpstreamStatusChanged EventType = "UPSTREAM_STATUS_CHANGED"
	MarketCacheCleared    EventType = "MARKET_CACHE_CLEARED"
	BackupCompleted       EventType = "BACKUP_COMPLETED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Handler is a callback invoked for each published event.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe bus. Handlers run synchronously on
// the publisher's goroutine, so they must not block; the websocket stream
// handler buffers per connection for that reason.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	streams  map[chan *Event]struct{}
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		streams:  make(map[chan *Event]struct{}),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit publishes an event to all subscribed handlers
func (b *Bus) Emit(eventType EventType, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Int("handlers", len(handlers)).
		Msg("Emitting event")

	for _, handler := range handlers {
		handler(event)
	}

	b.mu.RLock()
	for ch := range b.streams {
		select {
		case ch <- event:
		default:
			b.log.Warn().Str("event_type", string(eventType)).Msg("Stream buffer full, event dropped")
		}
	}
	b.mu.RUnlock()
}

// SubscribeStream returns a buffered channel receiving every event,
// regardless of type. Callers must Unsubscribe when done.
func (b *Bus) SubscribeStream() chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, 16)
	b.streams[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a stream subscription and closes its channel.
func (b *Bus) Unsubscribe(ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.streams[ch]; ok {
		delete(b.streams, ch)
		close(ch)
	}
}
