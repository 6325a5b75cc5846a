// Package enginetest provides a scriptable in-memory pipeline.Engine.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/smazurov/hlsvariant/internal/pipeline"
)

// Engine records every session it creates. Configure failures and the
// playback script before building.
type Engine struct {
	mu sync.Mutex

	// FailStages maps stage names to the error CreateStage returns.
	FailStages map[string]error
	// FailLinks maps "from->to" to the error Link returns.
	FailLinks map[string]error
	// FailStates maps states to the error SetState returns.
	FailStates map[pipeline.State]error
	// Streams are announced to the decoder when Playing is requested.
	Streams []pipeline.Stream
	// Script is posted after the streams have been handled.
	Script []pipeline.Event
	// BeforeLinkStream, when set, runs at the start of every LinkStream
	// call on the linker goroutine. Tests block in it to hold a link in
	// flight.
	BeforeLinkStream func(pipeline.Stream)

	sessions []*Session
}

// New creates an engine with no failures and an empty script.
func New() *Engine {
	return &Engine{
		FailStages: make(map[string]error),
		FailLinks:  make(map[string]error),
		FailStates: make(map[pipeline.State]error),
	}
}

// Name implements pipeline.Engine.
func (e *Engine) Name() string { return "fake" }

// NewSession implements pipeline.Engine.
func (e *Engine) NewSession(name string, events pipeline.Poster) (pipeline.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Session{engine: e, name: name, events: events}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// Sessions returns the sessions created so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// Last returns the most recent session or nil.
func (e *Engine) Last() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

// Session is a fake native pipeline.
type Session struct {
	engine *Engine
	name   string
	events pipeline.Poster

	mu          sync.Mutex
	stages      []string
	links       []string
	streamLinks []string
	states      []pipeline.State
	discover    pipeline.DiscoveryFunc
	closed      bool
	wg          sync.WaitGroup
}

// CreateStage implements pipeline.Session.
func (s *Session) CreateStage(node *pipeline.Node) error {
	s.engine.mu.Lock()
	err := s.engine.FailStages[node.Name]
	s.engine.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, node.Name)
	return nil
}

// Link implements pipeline.Session.
func (s *Session) Link(from, to *pipeline.Node) error {
	key := from.Name + "->" + to.Name
	s.engine.mu.Lock()
	err := s.engine.FailLinks[key]
	s.engine.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, key)
	return nil
}

// LinkStream implements pipeline.Session.
func (s *Session) LinkStream(stream pipeline.Stream, to *pipeline.Node) error {
	s.engine.mu.Lock()
	hook := s.engine.BeforeLinkStream
	s.engine.mu.Unlock()
	if hook != nil {
		hook(stream)
	}

	key := stream.ID + "->" + to.Name
	s.engine.mu.Lock()
	err := s.engine.FailLinks[key]
	s.engine.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamLinks = append(s.streamLinks, key)
	return nil
}

// OnStreamDiscovered implements pipeline.Session.
func (s *Session) OnStreamDiscovered(decoder *pipeline.Node, fn pipeline.DiscoveryFunc) error {
	if decoder == nil || decoder.Kind() != pipeline.KindDecoder {
		return fmt.Errorf("stream discovery needs a decoder stage")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discover = fn
	return nil
}

// SetState implements pipeline.Session. Requesting Playing the first time
// starts the script on a separate goroutine.
func (s *Session) SetState(_ context.Context, state pipeline.State) error {
	s.engine.mu.Lock()
	err := s.engine.FailStates[state]
	streams := append([]pipeline.Stream(nil), s.engine.Streams...)
	script := append([]pipeline.Event(nil), s.engine.Script...)
	s.engine.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	first := state == pipeline.StatePlaying && !containsState(s.states, pipeline.StatePlaying)
	s.states = append(s.states, state)
	s.mu.Unlock()

	if first {
		s.wg.Add(1)
		go s.play(streams, script)
	}
	return nil
}

func (s *Session) play(streams []pipeline.Stream, script []pipeline.Event) {
	defer s.wg.Done()
	for _, st := range streams {
		<-s.Discover(st)
	}
	for _, ev := range script {
		if !s.events.Post(ev) {
			return
		}
	}
}

// Close implements pipeline.Session.
func (s *Session) Close() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Discover announces st as if the decoder exposed it. The returned channel
// closes once the linker handled it.
func (s *Session) Discover(st pipeline.Stream) <-chan struct{} {
	s.mu.Lock()
	fn := s.discover
	s.mu.Unlock()
	if fn == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return fn(st)
}

// Emit posts ev on the graph's event stream.
func (s *Session) Emit(ev pipeline.Event) bool {
	return s.events.Post(ev)
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Stages returns created stage names in order.
func (s *Session) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stages...)
}

// Links returns "from->to" pairs in order.
func (s *Session) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}

// StreamLinks returns "stream->stage" pairs in order.
func (s *Session) StreamLinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.streamLinks...)
}

// States returns every requested state in order.
func (s *Session) States() []pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.State(nil), s.states...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func containsState(states []pipeline.State, want pipeline.State) bool {
	for _, st := range states {
		if st == want {
			return true
		}
	}
	return false
}
