package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/hlsvariant/internal/engine/enginetest"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

type recorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (r *recorder) observe(ev pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []pipeline.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return kinds(r.events)
}

func TestControllerEndOfStream(t *testing.T) {
	eng := enginetest.New()
	eng.Streams = []pipeline.Stream{videoStream, audioStream}
	eng.Script = []pipeline.Event{
		{Kind: pipeline.EventInfo, Message: "progress"},
		{Kind: pipeline.EventEOS},
	}
	g, _ := build(t, eng, validSpec(t))

	rec := &recorder{}
	c := pipeline.NewController()
	c.Observer = rec.observe

	res, err := c.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Terminal.Kind != pipeline.EventEOS {
		t.Errorf("Terminal = %v, want eos", res.Terminal.Kind)
	}
	if res.Elapsed < res.PlayingLatency+res.NullLatency {
		t.Errorf("Elapsed %v shorter than transitions %v + %v", res.Elapsed, res.PlayingLatency, res.NullLatency)
	}

	wantStates := []pipeline.State{pipeline.StatePlaying, pipeline.StateNull}
	if diff := cmp.Diff(wantStates, eng.Last().States()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if g.State() != pipeline.StateNull {
		t.Errorf("State() = %v, want null", g.State())
	}

	wantKinds := []pipeline.EventKind{
		pipeline.EventStateChanged,
		pipeline.EventStreamLinked,
		pipeline.EventStreamLinked,
		pipeline.EventInfo,
		pipeline.EventStateChanged,
	}
	if diff := cmp.Diff(wantKinds, rec.kinds()); diff != "" {
		t.Errorf("observed events mismatch (-want +got):\n%s", diff)
	}
}

func TestControllerErrorBeforeEOS(t *testing.T) {
	eng := enginetest.New()
	eng.Script = []pipeline.Event{
		{Kind: pipeline.EventError, Source: "decoder", Message: "decode failure"},
		{Kind: pipeline.EventEOS},
	}
	g, _ := build(t, eng, validSpec(t))

	res, err := pipeline.NewController().Run(context.Background(), g)

	var streamErr *pipeline.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Run() error = %v, want *StreamError", err)
	}
	if streamErr.Message != "decode failure" {
		t.Errorf("Message = %q, want %q", streamErr.Message, "decode failure")
	}
	if res.Terminal.Kind != pipeline.EventError {
		t.Errorf("Terminal = %v, want error", res.Terminal.Kind)
	}

	states := eng.Last().States()
	if len(states) == 0 || states[len(states)-1] != pipeline.StateNull {
		t.Errorf("States() = %v, want Null requested last", states)
	}
}

func TestControllerIssuesNullWhenPlayingFails(t *testing.T) {
	eng := enginetest.New()
	eng.FailStates[pipeline.StatePlaying] = errors.New("no hardware")
	g, _ := build(t, eng, validSpec(t))

	_, err := pipeline.NewController().Run(context.Background(), g)
	if err == nil {
		t.Fatal("Run() error = nil")
	}

	wantStates := []pipeline.State{pipeline.StateNull}
	if diff := cmp.Diff(wantStates, eng.Last().States()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestControllerContextCancel(t *testing.T) {
	eng := enginetest.New()
	g, _ := build(t, eng, validSpec(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pipeline.NewController().Run(ctx, g)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
	if g.State() != pipeline.StateNull {
		t.Errorf("State() = %v, want null", g.State())
	}
}

func TestControllerTimeout(t *testing.T) {
	eng := enginetest.New()
	g, _ := build(t, eng, validSpec(t))

	c := pipeline.NewController()
	c.Timeout = 20 * time.Millisecond

	_, err := c.Run(context.Background(), g)
	if !errors.Is(err, pipeline.ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	states := eng.Last().States()
	if states[len(states)-1] != pipeline.StateNull {
		t.Errorf("States() = %v, want Null last", states)
	}
}

func TestControllerIgnoresWarnings(t *testing.T) {
	eng := enginetest.New()
	eng.Streams = []pipeline.Stream{videoStream, secondVideo}
	eng.Script = []pipeline.Event{
		{Kind: pipeline.EventWarning, Message: "late buffer"},
		{Kind: pipeline.EventEOS},
	}
	g, _ := build(t, eng, validSpec(t))

	if _, err := pipeline.NewController().Run(context.Background(), g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
