//go:build gstreamer

// Package gst runs pipeline graphs as native GStreamer pipelines.
package gst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"

	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

const busPollInterval = 100 * time.Millisecond

var initOnce sync.Once

// Engine implements pipeline.Engine on libgstreamer.
type Engine struct {
	logger *slog.Logger
}

// New initializes GStreamer once per process and returns an engine.
func New() *Engine {
	initOnce.Do(func() { gst.Init(nil) })
	return &Engine{logger: logging.GetLogger("gstreamer")}
}

// Name implements pipeline.Engine.
func (e *Engine) Name() string { return "gstreamer" }

// NewSession implements pipeline.Engine.
func (e *Engine) NewSession(name string, events pipeline.Poster) (pipeline.Session, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", name, err)
	}
	s := &session{
		pipeline: p,
		events:   events,
		logger:   e.logger.With("graph", name),
		elements: make(map[string]*gst.Element),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.watchBus()
	return s, nil
}

type session struct {
	pipeline *gst.Pipeline
	events   pipeline.Poster
	logger   *slog.Logger

	mu       sync.Mutex
	elements map[string]*gst.Element

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) element(name string) (*gst.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[name]
	if !ok {
		return nil, fmt.Errorf("stage %s was not created", name)
	}
	return el, nil
}

func (s *session) CreateStage(node *pipeline.Node) error {
	factory, configure := elementFor(node.Config)
	el, err := gst.NewElementWithName(factory, node.Name)
	if err != nil {
		return fmt.Errorf("no element %s: %w", factory, err)
	}
	if configure != nil {
		if err := configure(el); err != nil {
			return fmt.Errorf("configure %s: %w", factory, err)
		}
	}
	if err := s.pipeline.Add(el); err != nil {
		return err
	}

	s.mu.Lock()
	s.elements[node.Name] = el
	s.mu.Unlock()
	return nil
}

func (s *session) Link(from, to *pipeline.Node) error {
	src, err := s.element(from.Name)
	if err != nil {
		return err
	}
	sink, err := s.element(to.Name)
	if err != nil {
		return err
	}
	if err := src.Link(sink); err != nil {
		return err
	}
	return sink.SyncStateWithParent()
}

func (s *session) LinkStream(stream pipeline.Stream, to *pipeline.Node) error {
	pad, ok := stream.Ref.(*gst.Pad)
	if !ok || pad == nil {
		return fmt.Errorf("stream %s has no decoder pad", stream.ID)
	}
	sink, err := s.element(to.Name)
	if err != nil {
		return err
	}
	sinkPad := sink.GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("%s has no sink pad", to.Name)
	}
	if ret := pad.Link(sinkPad); ret != gst.PadLinkOK {
		return fmt.Errorf("pad link: %s", ret.String())
	}
	return nil
}

func (s *session) OnStreamDiscovered(decoder *pipeline.Node, fn pipeline.DiscoveryFunc) error {
	el, err := s.element(decoder.Name)
	if err != nil {
		return err
	}
	_, err = el.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		st := pipeline.Stream{ID: pad.GetName(), Index: -1, Ref: pad}
		if caps := pad.GetCurrentCaps(); caps != nil && caps.GetSize() > 0 {
			st.MediaType = caps.GetStructureAt(0).Name()
		}
		// pad-added runs on a streaming thread; linking must finish
		// before data flows through the new pad.
		<-fn(st)
	})
	return err
}

var gstStates = map[pipeline.State]gst.State{
	pipeline.StateNull:    gst.StateNull,
	pipeline.StateReady:   gst.StateReady,
	pipeline.StatePaused:  gst.StatePaused,
	pipeline.StatePlaying: gst.StatePlaying,
}

func (s *session) SetState(ctx context.Context, state pipeline.State) error {
	target, ok := gstStates[state]
	if !ok {
		return pipeline.ErrInvalidTransition
	}
	if err := s.pipeline.SetState(target); err != nil {
		return err
	}
	if state != pipeline.StateNull {
		// Preroll completes asynchronously; errors surface on the bus.
		return nil
	}

	timeout := gst.ClockTimeNone
	if deadline, ok := ctx.Deadline(); ok {
		timeout = gst.ClockTime(uint64(max(time.Until(deadline), 0)))
	}
	if ret, _ := s.pipeline.GetState(target, timeout); ret == gst.StateChangeFailure {
		return errors.New("pipeline refused the null state")
	}
	return nil
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.pipeline.SetState(gst.StateNull)
	})
	return err
}

// watchBus forwards bus messages to the graph's event stream.
func (s *session) watchBus() {
	defer close(s.done)
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(uint64(busPollInterval)))
		if msg == nil {
			continue
		}

		var ev pipeline.Event
		switch msg.Type() {
		case gst.MessageEOS:
			ev = pipeline.Event{Kind: pipeline.EventEOS, Source: msg.Source()}
		case gst.MessageError:
			gerr := msg.ParseError()
			s.logger.Debug("Bus error", "source", msg.Source(), "debug", gerr.DebugString())
			ev = pipeline.Event{Kind: pipeline.EventError, Source: msg.Source(), Message: gerr.Error()}
		case gst.MessageWarning:
			ev = pipeline.Event{Kind: pipeline.EventWarning, Source: msg.Source(), Message: msg.ParseWarning().Error()}
		case gst.MessageInfo:
			ev = pipeline.Event{Kind: pipeline.EventInfo, Source: msg.Source(), Message: msg.ParseInfo().Error()}
		default:
			continue
		}
		if !s.events.Post(ev) {
			return
		}
	}
}
