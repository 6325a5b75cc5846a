// Package transcode runs one input file through a variant pipeline and
// reports progress on the event bus.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/events"
	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/segments"
)

// Report summarizes a finished run.
type Report struct {
	RunID     string
	OutputDir string
	Segments  int
	Result    pipeline.Result
}

// Runner builds and drives variant pipelines on one engine.
type Runner struct {
	engine   pipeline.Engine
	registry *pipeline.Registry
	selector *encoders.Selector
	bus      *events.Bus
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a runner. selector and bus may be nil.
func NewRunner(engine pipeline.Engine, selector *encoders.Selector, bus *events.Bus) *Runner {
	return &Runner{
		engine:   engine,
		registry: pipeline.NewRegistry(),
		selector: selector,
		bus:      bus,
		logger:   logging.GetLogger("transcode"),
		status:   Status{Phase: PhaseIdle, State: pipeline.StateNull.String()},
	}
}

// Status returns the current or last run's status.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.clone()
}

// Run validates opts, prepares the output directory, builds the graph and
// drives it to a terminal event. Partial segments of a failed run are kept.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	if err := opts.Validate(); err != nil {
		return Report{}, err
	}
	if err := checkInput(opts.InputPath); err != nil {
		return Report{}, err
	}

	spec := opts.Spec()
	report := Report{RunID: uuid.NewString(), OutputDir: spec.OutputDir()}

	created, err := ensureDir(report.OutputDir)
	if err != nil {
		return report, err
	}

	r.setStatus(Status{
		RunID:     report.RunID,
		Phase:     PhaseBuilding,
		State:     pipeline.StateNull.String(),
		Variant:   opts.VariantName,
		Input:     opts.InputPath,
		OutputDir: report.OutputDir,
		Engine:    r.engine.Name(),
		StartedAt: time.Now(),
	})
	logger := r.logger.With("run_id", report.RunID, "variant", opts.VariantName)

	g, err := pipeline.NewBuilder(r.engine, r.registry, r.selector).Build(spec)
	if err != nil {
		if created {
			// Only removes the directory while it is still empty.
			_ = os.Remove(report.OutputDir)
		}
		r.finish(report, false, err, 0)
		return report, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if destroyErr := g.Destroy(context.WithoutCancel(ctx)); destroyErr != nil {
			logger.Warn("Failed to destroy pipeline", "error", destroyErr)
		}
	}()

	encoder := graphEncoder(g)
	r.updateStatus(func(s *Status) {
		s.Phase = PhaseRunning
		s.Encoder = encoder.Variant.String()
		s.Bitrate = encoder.Bitrate
	})
	r.publish(events.TranscodeStartedEvent{
		RunID:     report.RunID,
		Variant:   opts.VariantName,
		Input:     opts.InputPath,
		OutputDir: report.OutputDir,
		Engine:    r.engine.Name(),
		Encoder:   encoder.Variant.String(),
		Bitrate:   encoder.Bitrate,
		Timestamp: now(),
	})

	watcher := segments.NewWatcher(report.OutputDir, opts.VariantName, r.onSegment)
	if watchErr := watcher.Start(); watchErr != nil {
		logger.Warn("Segment watcher unavailable", "dir", report.OutputDir, "error", watchErr)
	}

	ctrl := pipeline.NewController()
	ctrl.Timeout = opts.Timeout
	ctrl.Observer = r.observer(report.RunID, opts.VariantName)

	report.Result, err = ctrl.Run(ctx, g)
	report.Segments = watcher.Stop()

	logger.Info("Transcode finished",
		"success", err == nil,
		"segments", report.Segments,
		"playing_took", report.Result.PlayingLatency,
		"null_took", report.Result.NullLatency,
		"elapsed", report.Result.Elapsed)

	r.finish(report, err == nil, err, report.Result.Elapsed)
	return report, err
}

// observer maps controller events onto the bus and the status.
func (r *Runner) observer(runID, variant string) func(pipeline.Event) {
	return func(ev pipeline.Event) {
		switch ev.Kind {
		case pipeline.EventStateChanged:
			r.updateStatus(func(s *Status) { s.State = ev.To.String() })
			r.publish(events.StateChangedEvent{
				RunID:     runID,
				Variant:   variant,
				From:      ev.From.String(),
				To:        ev.To.String(),
				Seconds:   ev.Took.Seconds(),
				Timestamp: now(),
			})
		case pipeline.EventStreamLinked:
			r.updateStatus(func(s *Status) { s.LinkedStreams = append(s.LinkedStreams, ev.Stream) })
			r.publish(events.StreamLinkedEvent{
				RunID:     runID,
				Variant:   variant,
				StreamID:  ev.Stream,
				Kind:      ev.StreamKind.String(),
				Timestamp: now(),
			})
		case pipeline.EventStreamIgnored:
			r.publish(events.StreamIgnoredEvent{
				RunID:     runID,
				Variant:   variant,
				StreamID:  ev.Stream,
				Kind:      ev.StreamKind.String(),
				Timestamp: now(),
			})
		case pipeline.EventWarning:
			r.publish(events.PipelineWarningEvent{
				RunID:     runID,
				Variant:   variant,
				Source:    ev.Source,
				Message:   ev.Message,
				Timestamp: now(),
			})
		case pipeline.EventInfo:
			r.logger.Debug("Pipeline info", "run_id", runID, "source", ev.Source, "message", ev.Message)
		}
	}
}

func (r *Runner) onSegment(e events.SegmentWrittenEvent) {
	if !e.Playlist {
		r.updateStatus(func(s *Status) { s.Segments++ })
	}
	r.publish(e)
}

func (r *Runner) finish(report Report, success bool, err error, elapsed time.Duration) {
	ev := events.TranscodeFinishedEvent{
		RunID:          report.RunID,
		Variant:        r.Status().Variant,
		Success:        success,
		Segments:       report.Segments,
		ElapsedSeconds: elapsed.Seconds(),
		Timestamp:      now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}

	r.updateStatus(func(s *Status) {
		s.Phase = PhaseFinished
		if !success {
			s.Phase = PhaseFailed
			s.Error = ev.Error
		}
		s.Segments = report.Segments
		s.FinishedAt = time.Now()
	})
	r.publish(ev)
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

func (r *Runner) updateStatus(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
}

func graphEncoder(g *pipeline.Graph) encoders.Config {
	node, ok := g.Node(pipeline.StageVideoEncoder)
	if !ok {
		return encoders.Config{}
	}
	if cfg, ok := node.Config.(pipeline.VideoEncoderConfig); ok {
		return cfg.Config
	}
	return encoders.Config{}
}

// ensureDir creates dir if needed and reports whether it did.
func ensureDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return true, nil
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
