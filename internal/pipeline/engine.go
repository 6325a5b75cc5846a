package pipeline

import "context"

// DiscoveryFunc is called by the engine for every output the decoder
// exposes. It may run on any goroutine. The returned channel is closed once
// the stream has been routed or rejected.
type DiscoveryFunc func(Stream) <-chan struct{}

// Engine creates native processing sessions.
type Engine interface {
	Name() string
	NewSession(name string, events Poster) (Session, error)
}

// Session is the native counterpart of one Graph.
type Session interface {
	// CreateStage instantiates the native stage for node.
	CreateStage(node *Node) error
	// Link connects two created stages.
	Link(from, to *Node) error
	// LinkStream connects a discovered decoder output to the input of to.
	LinkStream(stream Stream, to *Node) error
	// OnStreamDiscovered registers fn on the decoder stage.
	OnStreamDiscovered(decoder *Node, fn DiscoveryFunc) error
	// SetState requests a state change and returns once the engine
	// acknowledged it.
	SetState(ctx context.Context, state State) error
	// Close releases native resources.
	Close() error
}
