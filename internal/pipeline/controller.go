package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/hlsvariant/internal/logging"
)

// Result summarizes a run.
type Result struct {
	Terminal       Event
	PlayingLatency time.Duration
	NullLatency    time.Duration
	Elapsed        time.Duration
}

// Controller drives a graph from Playing to a terminal event and back to Null.
type Controller struct {
	// Timeout bounds the wait for a terminal event. Zero waits forever.
	Timeout time.Duration
	// Observer, when set, receives every non-terminal event and the
	// controller's own state transitions.
	Observer func(Event)

	logger *slog.Logger
}

// NewController creates a controller without a timeout.
func NewController() *Controller {
	return &Controller{logger: logging.GetLogger("controller")}
}

// Run requests Playing, consumes the graph's events until EndOfStream or
// Error, then requests Null. The Null request is issued on every path,
// including start failures and context cancellation.
func (c *Controller) Run(ctx context.Context, g *Graph) (Result, error) {
	if c.logger == nil {
		c.logger = logging.GetLogger("controller")
	}

	var res Result
	started := time.Now()

	runErr := c.transition(ctx, g, StatePlaying, &res.PlayingLatency)
	if runErr == nil {
		c.logger.Info("Pipeline playing", "graph", g.Name(), "took", res.PlayingLatency)
		runErr = c.wait(ctx, g, &res)
	}

	g.drain()

	// The context may already be canceled; teardown must still run.
	nullErr := c.transition(context.WithoutCancel(ctx), g, StateNull, &res.NullLatency)
	res.Elapsed = time.Since(started)

	if nullErr != nil {
		c.logger.Error("Failed to stop pipeline", "graph", g.Name(), "error", nullErr)
	} else {
		c.logger.Info("Pipeline stopped", "graph", g.Name(), "took", res.NullLatency, "elapsed", res.Elapsed)
	}

	if runErr != nil {
		return res, errors.Join(runErr, nullErr)
	}
	return res, nullErr
}

func (c *Controller) transition(ctx context.Context, g *Graph, to State, took *time.Duration) error {
	from := g.State()
	start := time.Now()
	err := g.SetState(ctx, to)
	*took = time.Since(start)
	if err != nil {
		return err
	}
	c.observe(Event{Kind: EventStateChanged, Source: g.Name(), From: from, To: to, Took: *took, Time: time.Now()})
	return nil
}

func (c *Controller) wait(ctx context.Context, g *Graph, res *Result) error {
	var timeout <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	events := g.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return ErrEventStreamClosed
			}
			switch ev.Kind {
			case EventEOS:
				res.Terminal = ev
				c.logger.Info("End of stream", "graph", g.Name())
				return nil
			case EventError:
				res.Terminal = ev
				c.logger.Error("Pipeline error", "graph", g.Name(), "source", ev.Source, "message", ev.Message)
				return &StreamError{Source: ev.Source, Message: ev.Message}
			default:
				c.observe(ev)
			}
		case <-timeout:
			return fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
		case <-ctx.Done():
			return fmt.Errorf("pipeline interrupted: %w", ctx.Err())
		}
	}
}

func (c *Controller) observe(ev Event) {
	if ev.Kind == EventWarning {
		c.logger.Warn("Pipeline warning", "source", ev.Source, "message", ev.Message)
	}
	if c.Observer != nil {
		c.Observer(ev)
	}
}
