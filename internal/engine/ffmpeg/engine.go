// Package ffmpeg runs a pipeline graph as one ffmpeg subprocess.
//
// Stages are recorded as they are created and linked. When the graph is
// set to Playing the input is probed with ffprobe, every stream is offered
// to the graph's linker, and the linked branches are compiled into a single
// ffmpeg HLS command.
package ffmpeg

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	ff "github.com/smazurov/hlsvariant/internal/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/probe"
	"github.com/smazurov/hlsvariant/internal/process"
)

// Prober lists the streams of an input file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// LineFunc receives each parsed output line of a run.
type LineFunc func(level, msg string)

// Runner executes ffmpeg with args and reports its exit code and last error line.
type Runner func(ctx context.Context, args []string, onLine LineFunc) (exitCode int, lastError string, err error)

// Config configures the engine.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	LogLevel    string
	Options     []ff.OptionType
	// GracefulTimeout bounds the wait after SIGINT on teardown.
	GracefulTimeout time.Duration

	// Catalog, when set, makes encoder stage creation fail for encoders the
	// ffmpeg build does not list.
	Catalog *encoders.Catalog

	Prober Prober
	Runner Runner
}

// Engine implements pipeline.Engine on the ffmpeg binary.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an engine. Empty paths default to ffmpeg and ffprobe on PATH.
func New(cfg Config) *Engine {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	if cfg.Prober == nil {
		cfg.Prober = probe.NewProber(cfg.FFprobePath)
	}
	e := &Engine{cfg: cfg, logger: logging.GetLogger("ffmpeg")}
	if e.cfg.Runner == nil {
		e.cfg.Runner = e.runProcess
	}
	return e
}

// Name implements pipeline.Engine.
func (e *Engine) Name() string { return "ffmpeg" }

// NewSession implements pipeline.Engine.
func (e *Engine) NewSession(name string, events pipeline.Poster) (pipeline.Session, error) {
	return newSession(e, name, events), nil
}

func (e *Engine) runProcess(ctx context.Context, args []string, onLine LineFunc) (int, string, error) {
	cmd := append([]string{e.cfg.FFmpegPath}, args...)
	handler := process.OutputFunc(func(_, line string) {
		if onLine != nil {
			onLine(ff.ParseLogLevel(line))
		}
	})

	proc := process.NewProcessWithOutput("ffmpeg", cmd, e.logger, handler)
	proc.SetLogParser(logging.GetLogger("ffmpeg.output"), ff.ParseLogLevel)
	proc.SetGracefulTimeout(e.cfg.GracefulTimeout)

	code, err := proc.Run(ctx)
	return code, proc.LastError(), err
}
