package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const linkerQueueSize = 8

type discovery struct {
	stream Stream
	ack    chan struct{}
}

// Linker completes the video and audio branches as the decoder announces
// streams. Announcements are queued and handled by a single goroutine, which
// is the only writer of graph topology after Build returns. The linker holds
// a Handle, never the Graph itself.
type Linker struct {
	registry *Registry
	handle   Handle
	logger   *slog.Logger

	// mu serializes enqueueing against Stop so no announcement is queued
	// after the final discard.
	mu       sync.Mutex
	stopped  bool
	intake   chan discovery
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// owned by the run goroutine
	linked map[StreamKind]bool
}

func newLinker(registry *Registry, handle Handle, logger *slog.Logger) *Linker {
	return &Linker{
		registry: registry,
		handle:   handle,
		logger:   logger,
		intake:   make(chan discovery, linkerQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		linked:   make(map[StreamKind]bool),
	}
}

func (l *Linker) start() {
	go l.run()
}

// Discover queues s for routing. It is the DiscoveryFunc registered on the
// decoder. The returned channel closes once s was handled or dropped.
func (l *Linker) Discover(s Stream) <-chan struct{} {
	ack := make(chan struct{})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		close(ack)
		return ack
	}

	select {
	case l.intake <- discovery{stream: s, ack: ack}:
	case <-l.stop:
		close(ack)
	}
	return ack
}

// Stop waits for the in-flight announcement to finish and discards the rest.
// Announcements made after Stop are acknowledged without being routed.
func (l *Linker) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })

	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	<-l.done
	l.discard()
}

func (l *Linker) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			l.discard()
			return
		case d := <-l.intake:
			select {
			case <-l.stop:
				l.logger.Debug("Dropping stream announced during teardown", "stream", d.stream.ID)
				close(d.ack)
				l.discard()
				return
			default:
			}
			if err := l.route(d.stream); err != nil && !errors.Is(err, ErrGraphDestroyed) {
				l.logger.Debug("Stream not routed", "stream", d.stream.ID, "error", err)
			}
			close(d.ack)
		}
	}
}

func (l *Linker) discard() {
	for {
		select {
		case d := <-l.intake:
			l.logger.Debug("Dropping stream announced during teardown", "stream", d.stream.ID)
			close(d.ack)
		default:
			return
		}
	}
}

// route links s into its branch. Link failures are posted as Error events
// because no caller is waiting on the result.
func (l *Linker) route(s Stream) error {
	g, ok := l.registry.Resolve(l.handle)
	if !ok {
		return ErrGraphDestroyed
	}

	kind := s.Kind()
	branch := Branch(kind)
	if branch == nil {
		l.logger.Debug("Ignoring unrecognized stream", "stream", s.ID, "media_type", s.MediaType)
		return nil
	}

	if l.linked[kind] {
		l.logger.Warn("Ignoring additional stream, branch already linked",
			"stream", s.ID, "kind", kind, "media_type", s.MediaType)
		g.post(Event{
			Kind:       EventStreamIgnored,
			Message:    fmt.Sprintf("%s branch already linked, ignoring stream %s", kind, s.ID),
			Stream:     s.ID,
			StreamKind: kind,
		})
		return ErrBranchAlreadyLinked
	}
	l.linked[kind] = true

	if err := l.linkBranch(g, s, branch); err != nil {
		l.logger.Error("Failed to link branch", "stream", s.ID, "kind", kind, "error", err)
		g.post(Event{
			Kind:       EventError,
			Message:    err.Error(),
			Stream:     s.ID,
			StreamKind: kind,
		})
		return err
	}

	l.logger.Info("Linked stream", "stream", s.ID, "kind", kind, "media_type", s.MediaType)
	g.post(Event{
		Kind:       EventStreamLinked,
		Message:    fmt.Sprintf("linked %s stream %s", kind, s.ID),
		Stream:     s.ID,
		StreamKind: kind,
	})
	return nil
}

func (l *Linker) linkBranch(g *Graph, s Stream, branch []string) error {
	if err := g.linkStream(StageDecoder, s, branch[0]); err != nil {
		return err
	}
	for i := 0; i+1 < len(branch); i++ {
		if err := g.link(branch[i], branch[i+1]); err != nil {
			return err
		}
	}
	return nil
}
