package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/hlsvariant/cmd"
	"github.com/smazurov/hlsvariant/internal/api"
	"github.com/smazurov/hlsvariant/internal/config"
	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/events"
	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/metrics"
	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/transcode"
	"github.com/smazurov/hlsvariant/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Variant settings
	Input      string `help:"Media file to transcode" short:"i" toml:"input" env:"INPUT"`
	Output     string `help:"Output root directory" short:"o" toml:"output" env:"OUTPUT"`
	Variant    string `help:"Variant name, used as the output subdirectory" short:"n" toml:"variant" env:"VARIANT"`
	Width      int    `help:"Output width in pixels" toml:"width" env:"WIDTH"`
	Height     int    `help:"Output height in pixels" toml:"height" env:"HEIGHT"`
	Bitrate    int    `help:"Video bitrate in bits per second" toml:"bitrate" env:"BITRATE"`
	Accelerate bool   `help:"Prefer the hardware encoder" default:"true" toml:"accelerate" env:"ACCELERATE"`
	Engine     string `help:"Pipeline engine (ffmpeg, gstreamer)" default:"ffmpeg" toml:"engine" env:"ENGINE"`

	// Encoder overrides, negative means unset
	EncoderBFrames     int    `help:"Number of B-frames" default:"-1" toml:"encoder.bframes" env:"ENCODER_BFRAMES"`
	EncoderGOPSize     int    `help:"Keyframe interval in frames" default:"-1" toml:"encoder.gop_size" env:"ENCODER_GOP_SIZE"`
	EncoderProfile     string `help:"H.264 profile" toml:"encoder.profile" env:"ENCODER_PROFILE"`
	EncoderPreset      string `help:"Encoder preset" toml:"encoder.preset" env:"ENCODER_PRESET"`
	EncoderRateControl string `help:"Rate control mode" toml:"encoder.rate_control" env:"ENCODER_RATE_CONTROL"`

	// Muxer and segmenter settings, zero uses defaults
	MuxerPATIntervalMs      int    `help:"PAT interval in milliseconds" toml:"muxer.pat_interval_ms" env:"MUXER_PAT_INTERVAL_MS"`
	MuxerPMTIntervalMs      int    `help:"PMT interval in milliseconds" toml:"muxer.pmt_interval_ms" env:"MUXER_PMT_INTERVAL_MS"`
	MuxerPCRIntervalMs      int    `help:"PCR interval in milliseconds" toml:"muxer.pcr_interval_ms" env:"MUXER_PCR_INTERVAL_MS"`
	SegmenterTargetDuration string `help:"Target segment duration" toml:"segmenter.target_duration" env:"SEGMENTER_TARGET_DURATION"`
	SegmenterPlaylistLength int    `help:"Segments kept in the playlist" toml:"segmenter.playlist_length" env:"SEGMENTER_PLAYLIST_LENGTH"`
	SegmenterMaxFiles       int    `help:"Segment files kept on disk" toml:"segmenter.max_files" env:"SEGMENTER_MAX_FILES"`
	SegmenterPlaylistType   string `help:"Playlist type (event, vod), empty for a sliding window" toml:"segmenter.playlist_type" env:"SEGMENTER_PLAYLIST_TYPE"`
	SourceBlockSize         int    `help:"Source read block size in bytes" toml:"source.blocksize" env:"SOURCE_BLOCKSIZE"`

	RunTimeout string `help:"Give up if the run has not finished after this long" toml:"run.timeout" env:"RUN_TIMEOUT"`

	// Status API settings
	StatusAddr        string `help:"Serve the status API on this address while running" toml:"status.addr" env:"STATUS_ADDR"`
	StatusAllowOrigin string `help:"CORS origin allowed to read the status API" default:"*" toml:"status.allow_origin" env:"STATUS_ALLOW_ORIGIN"`
	AuthUsername      string `help:"Basic auth username" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword      string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Binaries and encoder validation
	FFmpegPath          string `help:"Path to the ffmpeg binary" default:"ffmpeg" toml:"ffmpeg.path" env:"FFMPEG_PATH"`
	FFprobePath         string `help:"Path to the ffprobe binary" default:"ffprobe" toml:"ffprobe.path" env:"FFPROBE_PATH"`
	EncodersResultsFile string `help:"Encoder validation results" default:"validated_encoders.toml" toml:"encoders.results_file" env:"ENCODERS_RESULTS_FILE"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline  string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingEncoders  string `help:"Encoders logging level" default:"info" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingFFmpeg    string `help:"FFmpeg logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingTranscode string `help:"Transcode logging level" default:"info" toml:"logging.transcode" env:"LOGGING_TRANSCODE"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"pipeline":   opts.LoggingPipeline,
				"controller": opts.LoggingPipeline,
				"segments":   opts.LoggingPipeline,
				"encoders":   opts.LoggingEncoders,
				"ffmpeg":     opts.LoggingFFmpeg,
				"gstreamer":  opts.LoggingFFmpeg,
				"transcode":  opts.LoggingTranscode,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.OnRecord(func(e logging.Entry) {
			eventBus.Publish(api.LogEntryEvent(e))
		})

		recorder := metrics.NewRecorder()
		unsubscribe := recorder.Subscribe(eventBus)

		results := encoders.NewResultsStore(opts.EncodersResultsFile)
		selector := encoders.NewSelector(results)

		engine, engineErr := newEngine(opts)
		if engineErr != nil {
			logger.Error("Failed to create pipeline engine", "engine", opts.Engine, "error", engineErr)
			os.Exit(1)
		}

		runner := transcode.NewRunner(engine, selector, eventBus)

		var server *api.Server
		if opts.StatusAddr != "" {
			server = api.NewServer(&api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				EventBus:     eventBus,
				Status:       runner,
				Metrics:      recorder,
				Results:      results,
				AllowOrigin:  opts.StatusAllowOrigin,
			})
		}

		hooks.OnStart(func() {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runOpts, optsErr := transcodeOptions(opts)
			if optsErr != nil {
				logger.Error("Invalid options", "error", optsErr)
				os.Exit(1)
			}

			g, gctx := errgroup.WithContext(ctx)
			serverCtx, stopServer := context.WithCancel(gctx)
			defer stopServer()

			g.Go(func() error {
				defer stopServer()
				report, err := runner.Run(gctx, runOpts)
				if err != nil {
					return err
				}
				logger.Info("Variant written",
					"output", report.OutputDir,
					"segments", report.Segments,
					"elapsed", report.Result.Elapsed)
				return nil
			})
			if server != nil {
				g.Go(func() error {
					return server.Run(serverCtx, opts.StatusAddr)
				})
			}

			err := g.Wait()
			unsubscribe()
			if closeErr := eventBus.Close(); closeErr != nil {
				logger.Debug("Event bus close", "error", closeErr)
			}
			if err != nil {
				logger.Error("Transcode failed", "error", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "hlsvariant"
	cli.Root().Short = "Transcode one media file into an HLS variant"
	cli.Root().Version = version.Get().Summary()

	cli.Root().AddCommand(cmd.CreateValidateEncodersCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}

// transcodeOptions converts CLI options into a run request.
func transcodeOptions(opts *Options) (transcode.Options, error) {
	out := transcode.Options{
		InputPath:   opts.Input,
		OutputRoot:  opts.Output,
		VariantName: opts.Variant,
		Width:       opts.Width,
		Height:      opts.Height,
		Accelerate:  opts.Accelerate,
		Encoder: encoders.Overrides{
			Profile:     opts.EncoderProfile,
			Preset:      opts.EncoderPreset,
			RateControl: opts.EncoderRateControl,
		},
		Muxer: pipeline.MuxerConfig{
			PATInterval: time.Duration(opts.MuxerPATIntervalMs) * time.Millisecond,
			PMTInterval: time.Duration(opts.MuxerPMTIntervalMs) * time.Millisecond,
			PCRInterval: time.Duration(opts.MuxerPCRIntervalMs) * time.Millisecond,
		},
		Segmenter: pipeline.SegmenterSettings{
			PlaylistType: pipeline.PlaylistType(opts.SegmenterPlaylistType),
		},
		BlockSize: opts.SourceBlockSize,
	}

	if opts.Bitrate > 0 {
		out.Bitrate = uint32(min(int64(opts.Bitrate), math.MaxUint32))
	}
	if opts.EncoderBFrames >= 0 {
		b := uint32(opts.EncoderBFrames)
		out.Encoder.BFrames = &b
	}
	if opts.EncoderGOPSize >= 0 {
		gop := int32(opts.EncoderGOPSize)
		out.Encoder.GOPSize = &gop
	}
	if opts.SegmenterPlaylistLength > 0 {
		out.Segmenter.PlaylistLength = uint(opts.SegmenterPlaylistLength)
	}
	if opts.SegmenterMaxFiles > 0 {
		out.Segmenter.MaxFiles = uint(opts.SegmenterMaxFiles)
	}

	var err error
	if out.Segmenter.TargetDuration, err = parseDuration("segmenter.target_duration", opts.SegmenterTargetDuration); err != nil {
		return out, err
	}
	if out.Timeout, err = parseDuration("run.timeout", opts.RunTimeout); err != nil {
		return out, err
	}
	return out, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
