// Package events carries node state changes to interested components.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous: handlers
// run on the dispatcher's goroutines, one event at a time per subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case BatteryStateChanged:
		event.Publish(b.dispatcher, e)
	case BrightnessChanged:
		event.Publish(b.dispatcher, e)
	case LinkStateChanged:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns an
// unsubscribe function. A handler of an unknown type is ignored.
// Usage: unsub := bus.Subscribe(func(e BatteryStateChanged) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(BatteryStateChanged):
		return event.Subscribe(b.dispatcher, h)
	case func(BrightnessChanged):
		return event.Subscribe(b.dispatcher, h)
	case func(LinkStateChanged):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
