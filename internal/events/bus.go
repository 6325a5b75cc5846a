package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(SegmentWrittenEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case TranscodeStartedEvent:
		event.Publish(b.dispatcher, e)
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case StreamLinkedEvent:
		event.Publish(b.dispatcher, e)
	case StreamIgnoredEvent:
		event.Publish(b.dispatcher, e)
	case PipelineWarningEvent:
		event.Publish(b.dispatcher, e)
	case SegmentWrittenEvent:
		event.Publish(b.dispatcher, e)
	case TranscodeFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type selects the events it receives.
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e SegmentWrittenEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(TranscodeStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamLinkedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamIgnoredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PipelineWarningEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SegmentWrittenEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TranscodeFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops delivering events and releases the subscriber goroutines.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

// Forward delivers every event of type T to ch until the returned function is
// called. Sends never block: an event is dropped when ch is full, so a slow
// SSE client cannot stall the publisher.
func Forward[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
