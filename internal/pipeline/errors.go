package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphDestroyed is returned when a graph handle no longer resolves.
	ErrGraphDestroyed = errors.New("pipeline graph destroyed")
	// ErrBranchAlreadyLinked is returned when a second stream of an already
	// routed kind is discovered. The stream is ignored.
	ErrBranchAlreadyLinked = errors.New("branch already linked")
	// ErrInvalidTransition is returned for unknown target states or
	// transitions on a graph that is no longer usable.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTimeout is returned when the controller's optional deadline expires
	// before a terminal event.
	ErrTimeout = errors.New("timed out waiting for terminal event")
	// ErrEventStreamClosed is returned when the event stream ends without a
	// terminal event.
	ErrEventStreamClosed = errors.New("event stream closed")
)

// StageCreationError reports a stage the engine could not instantiate.
type StageCreationError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageCreationError) Error() string {
	return fmt.Sprintf("failed to create %s stage %q: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageCreationError) Unwrap() error { return e.Err }

// LinkError reports a link the engine refused.
type LinkError struct {
	From string
	To   string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// StreamError carries an Error event's message verbatim.
type StreamError struct {
	Source  string
	Message string
}

func (e *StreamError) Error() string { return e.Message }
