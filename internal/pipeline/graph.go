package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Link is an established connection between two stages. Stream is set for
// links from a discovered decoder output.
type Link struct {
	From   string
	To     string
	Stream string
}

// Graph is a processing pipeline for one variant. It owns its nodes and the
// engine session backing them.
type Graph struct {
	name     string
	session  Session
	bus      *Bus
	registry *Registry
	handle   Handle
	linker   *Linker
	logger   *slog.Logger

	mu        sync.RWMutex
	nodes     []*Node
	byName    map[string]int
	links     []Link
	state     State
	destroyed bool
}

func newGraph(name string, session Session, bus *Bus, logger *slog.Logger) *Graph {
	return &Graph{
		name:    name,
		session: session,
		bus:     bus,
		byName:  make(map[string]int),
		logger:  logger.With("graph", name),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Handle returns the graph's registry handle.
func (g *Graph) Handle() Handle { return g.handle }

// Events returns the graph's event stream.
func (g *Graph) Events() <-chan Event { return g.bus.Events() }

// State returns the last acknowledged state.
func (g *Graph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Node looks up a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// Nodes returns the nodes in creation order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.nodes)
}

// CountKind returns the number of nodes of kind k.
func (g *Graph) CountKind(k Kind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, node := range g.nodes {
		if node.Kind() == k {
			n++
		}
	}
	return n
}

// Links returns the established links in order.
func (g *Graph) Links() []Link {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.links)
}

// Linked reports whether from is linked to to.
func (g *Graph) Linked(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.ContainsFunc(g.links, func(l Link) bool {
		return l.From == from && l.To == to
	})
}

// SetState asks the engine to move the graph to state.
func (g *Graph) SetState(ctx context.Context, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTransition, int(state))
	}

	g.mu.RLock()
	destroyed := g.destroyed
	g.mu.RUnlock()
	if destroyed {
		return ErrGraphDestroyed
	}

	if err := g.session.SetState(ctx, state); err != nil {
		return fmt.Errorf("failed to set %s to %s: %w", g.name, state, err)
	}

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return nil
}

// Destroy releases the graph. A graph that is not in the Null state is
// driven there first.
func (g *Graph) Destroy(ctx context.Context) error {
	if g.State() != StateNull {
		g.drain()
		if err := g.SetState(ctx, StateNull); err != nil {
			return fmt.Errorf("cannot destroy %s: %w", g.name, err)
		}
	}

	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return nil
	}
	g.destroyed = true
	g.mu.Unlock()

	g.drain()
	if g.registry != nil {
		g.registry.Remove(g.handle)
	}
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("failed to close session for %s: %w", g.name, err)
	}
	return nil
}

// drain stops the bus and waits for in-flight discovery callbacks. The bus
// closes first so a callback blocked on a full bus can finish.
func (g *Graph) drain() {
	g.bus.Close()
	if g.linker != nil {
		g.linker.Stop()
	}
}

func (g *Graph) post(ev Event) bool {
	if ev.Source == "" {
		ev.Source = g.name
	}
	return g.bus.Post(ev)
}

func (g *Graph) addNode(name string, cfg StageConfig) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byName[name]; exists {
		return nil, fmt.Errorf("duplicate stage name %q", name)
	}
	node := &Node{ID: len(g.nodes), Name: name, Config: cfg}
	g.byName[name] = node.ID
	g.nodes = append(g.nodes, node)
	return node, nil
}

func (g *Graph) link(from, to string) error {
	src, ok := g.Node(from)
	if !ok {
		return &LinkError{From: from, To: to, Err: fmt.Errorf("unknown stage %q", from)}
	}
	dst, ok := g.Node(to)
	if !ok {
		return &LinkError{From: from, To: to, Err: fmt.Errorf("unknown stage %q", to)}
	}
	if err := g.session.Link(src, dst); err != nil {
		return &LinkError{From: from, To: to, Err: err}
	}

	g.mu.Lock()
	g.links = append(g.links, Link{From: from, To: to})
	g.mu.Unlock()
	return nil
}

func (g *Graph) linkStream(decoder string, stream Stream, to string) error {
	dst, ok := g.Node(to)
	if !ok {
		return &LinkError{From: decoder, To: to, Err: fmt.Errorf("unknown stage %q", to)}
	}
	if err := g.session.LinkStream(stream, dst); err != nil {
		return &LinkError{From: decoder + ":" + stream.ID, To: to, Err: err}
	}

	g.mu.Lock()
	g.links = append(g.links, Link{From: decoder, To: to, Stream: stream.ID})
	g.mu.Unlock()
	return nil
}
