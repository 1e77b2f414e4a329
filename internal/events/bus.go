// Package events carries form lifecycle events from the core to whatever
// presentation layer is attached (the demo CLI, a future UI).
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// EventValidationChanged is published after every mutation with the fresh
	// validation verdict.
	EventValidationChanged EventType = "validation_changed"
	// EventFieldToggled is published when an optional field is switched
	// active/inactive.
	EventFieldToggled EventType = "field_toggled"
	// EventEntryAppended is published when a repeatable field gains an entry.
	EventEntryAppended EventType = "entry_appended"
	// EventEntryRemoved is published when a repeatable field loses an entry.
	EventEntryRemoved EventType = "entry_removed"
	// EventFormReset is published when the form returns to its initial state.
	EventFormReset EventType = "form_reset"
	// EventFormSubmitted is published when a valid snapshot is handed to the
	// submission handler.
	EventFormSubmitted EventType = "form_submitted"
	// EventRulesReloaded is published when the watcher swaps in a new rule table.
	EventRulesReloaded EventType = "rules_reloaded"
)

// Event represents one form lifecycle event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

// Bus is a non-blocking event bus using Publish/Subscribe pattern.
// Events are delivered asynchronously via buffered channels; if a subscriber's
// channel is full, the event is dropped silently. Validation results themselves
// are returned synchronously by the session; the bus only mirrors them out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a new event bus with the specified buffer size per subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for a specific event type.
// The subscriber function is called asynchronously in a goroutine.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			// Recover so a panicking subscriber cannot take the bus down
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish sends an event to all subscribers of the given type.
// Non-blocking: if a subscriber's channel is full, the event is dropped for
// that subscriber.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
