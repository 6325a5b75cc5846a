package pipeline

import "sync"

// Handle is a non-owning reference to a registered Graph. A handle stops
// resolving once its graph is removed, even if the slot is reused.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

type slot struct {
	generation uint32
	graph      *Graph
}

// Registry is an arena of live graphs addressed by generation-checked handles.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Insert registers g and returns its handle.
func (r *Registry) Insert(g *Graph) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		s := &r.slots[idx]
		s.graph = g
		return Handle{index: idx, generation: s.generation}
	}

	r.slots = append(r.slots, slot{generation: 1, graph: g})
	return Handle{index: uint32(len(r.slots) - 1), generation: 1}
}

// Resolve returns the graph for h if it is still registered.
func (r *Registry) Resolve(h Handle) (*Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h.IsZero() || int(h.index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[h.index]
	if s.generation != h.generation || s.graph == nil {
		return nil, false
	}
	return s.graph, true
}

// Remove unregisters the graph behind h. Stale handles are ignored.
func (r *Registry) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.IsZero() || int(h.index) >= len(r.slots) {
		return false
	}
	s := &r.slots[h.index]
	if s.generation != h.generation || s.graph == nil {
		return false
	}

	s.graph = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	r.free = append(r.free, h.index)
	return true
}

// Len returns the number of registered graphs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots) - len(r.free)
}
