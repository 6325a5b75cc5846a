package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/hlsvariant/internal/encoders"
	ff "github.com/smazurov/hlsvariant/internal/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

var (
	errNoDecoder     = errors.New("no decoder stage")
	errNothingLinked = errors.New("no video or audio stream linked")
)

type session struct {
	engine *Engine
	name   string
	events pipeline.Poster
	logger *slog.Logger

	mu       sync.Mutex
	nodes    map[string]*pipeline.Node
	links    map[string]string          // from -> to
	streams  map[string]pipeline.Stream // queue stage -> stream
	decoder  string
	discover pipeline.DiscoveryFunc
	state    pipeline.State
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

func newSession(e *Engine, name string, events pipeline.Poster) *session {
	return &session{
		engine:  e,
		name:    name,
		events:  events,
		logger:  e.logger.With("graph", name),
		nodes:   make(map[string]*pipeline.Node),
		links:   make(map[string]string),
		streams: make(map[string]pipeline.Stream),
	}
}

func (s *session) CreateStage(node *pipeline.Node) error {
	if cfg, ok := node.Config.(pipeline.VideoEncoderConfig); ok && s.engine.cfg.Catalog != nil {
		name := encoders.FFmpegEncoder(cfg.Variant)
		if !s.engine.cfg.Catalog.Available(context.Background(), name) {
			return fmt.Errorf("encoder %s is not available in %s", name, s.engine.cfg.FFmpegPath)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.Name]; exists {
		return fmt.Errorf("stage %s already exists", node.Name)
	}
	s.nodes[node.Name] = node
	return nil
}

func (s *session) Link(from, to *pipeline.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(from.Name, to.Name); err != nil {
		return err
	}
	if prev, ok := s.links[from.Name]; ok {
		return fmt.Errorf("%s is already linked to %s", from.Name, prev)
	}
	s.links[from.Name] = to.Name
	return nil
}

func (s *session) LinkStream(stream pipeline.Stream, to *pipeline.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(to.Name); err != nil {
		return err
	}
	queue, ok := to.Config.(pipeline.QueueConfig)
	if !ok {
		return fmt.Errorf("%s cannot accept a decoded stream", to.Name)
	}
	if queue.Branch != stream.Kind() {
		return fmt.Errorf("%s stream %s cannot feed the %s branch", stream.Kind(), stream.ID, queue.Branch)
	}
	if prev, ok := s.streams[to.Name]; ok {
		return fmt.Errorf("%s already receives %s", to.Name, prev.ID)
	}
	s.streams[to.Name] = stream
	return nil
}

func (s *session) OnStreamDiscovered(decoder *pipeline.Node, fn pipeline.DiscoveryFunc) error {
	if decoder == nil || decoder.Kind() != pipeline.KindDecoder {
		return errNoDecoder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoder = decoder.Name
	s.discover = fn
	return nil
}

func (s *session) requireLocked(names ...string) error {
	for _, n := range names {
		if _, ok := s.nodes[n]; !ok {
			return fmt.Errorf("stage %s was not created", n)
		}
	}
	return nil
}

// SetState starts the transcode on the first Playing request and stops it
// on Null. Ready and Paused only record the state; ffmpeg cannot pause.
func (s *session) SetState(ctx context.Context, state pipeline.State) error {
	switch state {
	case pipeline.StatePlaying:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return errors.New("session closed")
		}
		if s.cancel == nil {
			runCtx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.done = make(chan struct{})
			go s.run(runCtx, s.done)
		}
		s.state = state
		return nil
	case pipeline.StateNull:
		err := s.stop(ctx)
		s.mu.Lock()
		s.state = state
		s.mu.Unlock()
		return err
	default:
		s.mu.Lock()
		s.state = state
		s.mu.Unlock()
		return nil
	}
}

// stop cancels a running transcode and waits for it to exit.
func (s *session) stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ffmpeg to exit: %w", ctx.Err())
	}
}

func (s *session) Close() error {
	err := s.stop(context.Background())
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *session) post(kind pipeline.EventKind, source, msg string) {
	s.events.Post(pipeline.Event{Kind: kind, Source: source, Message: msg})
}

func (s *session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	src, err := s.source()
	if err != nil {
		s.post(pipeline.EventError, pipeline.StageSource, err.Error())
		return
	}

	res, err := s.engine.cfg.Prober.Probe(ctx, src.Location)
	if err != nil {
		if ctx.Err() == nil {
			s.post(pipeline.EventError, pipeline.StageDecoder, err.Error())
		}
		return
	}

	if !s.announce(ctx, res.Streams) {
		return
	}

	params, err := s.compile(src)
	if err != nil {
		s.post(pipeline.EventError, pipeline.StageMuxer, err.Error())
		return
	}

	args := ff.BuildArgs(params)
	s.logger.Info("Starting transcode", "command", ff.BuildCommand(s.engine.cfg.FFmpegPath, params))

	code, lastErr, err := s.engine.cfg.Runner(ctx, args, s.onLine)
	switch {
	case ctx.Err() != nil:
		s.logger.Debug("Transcode stopped", "exit_code", code)
	case err != nil:
		s.post(pipeline.EventError, "ffmpeg", err.Error())
	case code == 0:
		s.post(pipeline.EventEOS, pipeline.StageSegmenter, "")
	case lastErr != "":
		s.post(pipeline.EventError, "ffmpeg", lastErr)
	default:
		s.post(pipeline.EventError, "ffmpeg", fmt.Sprintf("ffmpeg exited with status %d", code))
	}
}

// announce offers each probed stream to the linker and waits until it was
// routed or rejected. It returns false if ctx ended first.
func (s *session) announce(ctx context.Context, streams []probeStream) bool {
	s.mu.Lock()
	discover := s.discover
	s.mu.Unlock()
	if discover == nil {
		return true
	}

	for _, ps := range streams {
		st := pipeline.Stream{
			ID:        fmt.Sprintf("src_%d", ps.Index),
			Index:     ps.Index,
			MediaType: ps.MediaType(),
			Ref:       ps,
		}
		select {
		case <-discover(st):
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil
}

func (s *session) onLine(level, msg string) {
	if name, ok := ff.SegmentOpened(msg); ok {
		s.post(pipeline.EventInfo, pipeline.StageSegmenter, name)
		return
	}
	if level == "warning" {
		s.post(pipeline.EventWarning, "ffmpeg", msg)
	}
}
