package pipeline

import (
	"sync"
	"time"
)

// EventKind identifies an Event.
type EventKind int

const (
	// EventEOS ends the run successfully.
	EventEOS EventKind = iota + 1
	// EventError ends the run with Message.
	EventError
	EventWarning
	EventInfo
	EventStateChanged
	EventStreamLinked
	EventStreamIgnored
)

func (k EventKind) String() string {
	switch k {
	case EventEOS:
		return "eos"
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	case EventInfo:
		return "info"
	case EventStateChanged:
		return "state_changed"
	case EventStreamLinked:
		return "stream_linked"
	case EventStreamIgnored:
		return "stream_ignored"
	default:
		return "unknown"
	}
}

// Event is one record on a graph's event stream.
type Event struct {
	Kind    EventKind
	Source  string
	Message string
	Time    time.Time

	// Set for state changes.
	From State
	To   State
	Took time.Duration

	// Set for stream events.
	Stream     string
	StreamKind StreamKind
}

// Terminal reports whether e ends a run.
func (e Event) Terminal() bool {
	return e.Kind == EventEOS || e.Kind == EventError
}

// Poster accepts events from the engine and the linker.
type Poster interface {
	Post(Event) bool
}

const defaultBusSize = 64

// Bus is the ordered event stream of a graph.
type Bus struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewBus creates a bus buffering up to size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = defaultBusSize
	}
	return &Bus{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Post delivers ev in order. It blocks while the buffer is full and returns
// false once the bus is closed.
func (b *Bus) Post(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- ev:
		return true
	case <-b.done:
		return false
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close stops accepting events. Buffered events stay readable.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Closed reports whether Close was called.
func (b *Bus) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
