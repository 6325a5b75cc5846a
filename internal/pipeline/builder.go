package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/logging"
)

// Stage names. They are unique within a graph.
const (
	StageSource    = "source"
	StageDecoder   = "decoder"
	StageMuxer     = "muxer"
	StageSegmenter = "segmenter"

	StageVideoQueue   = "video_queue"
	StageVideoScaler  = "video_scaler"
	StageVideoFilter  = "video_filter"
	StageVideoEncoder = "video_encoder"
	StageVideoParser  = "video_parser"

	StageAudioQueue    = "audio_queue"
	StageAudioConvert  = "audio_convert"
	StageAudioResample = "audio_resample"
	StageAudioProbe    = "audio_probe"
	StageAudioEncoder  = "audio_encoder"
	StageAudioParser   = "audio_parser"
)

const (
	defaultBlockSize    = 65536
	defaultAudioBitrate = 128000
)

// Segment and playlist file names inside the variant directory.
const (
	SegmentPattern = "segment_%02d.ts"
	PlaylistName   = "playlist.m3u8"
)

// DefaultTargetDuration is the default HLS segment duration.
const DefaultTargetDuration = 5 * time.Second

// Branch chains, from the queue that receives the discovered stream up to
// the shared muxer.
var (
	videoBranch = []string{StageVideoQueue, StageVideoScaler, StageVideoFilter, StageVideoEncoder, StageVideoParser, StageMuxer}
	audioBranch = []string{StageAudioQueue, StageAudioConvert, StageAudioResample, StageAudioProbe, StageAudioEncoder, StageAudioParser, StageMuxer}
)

// Branch returns the stage chain for kind, or nil for Unrecognized.
func Branch(kind StreamKind) []string {
	switch kind {
	case Video:
		return videoBranch
	case Audio:
		return audioBranch
	default:
		return nil
	}
}

// SegmenterSettings tunes the segment writer. Zero values use defaults.
type SegmenterSettings struct {
	TargetDuration time.Duration
	PlaylistLength uint
	MaxFiles       uint
	PlaylistType   PlaylistType
}

// VariantSpec describes one rendition to build.
type VariantSpec struct {
	InputPath   string
	OutputRoot  string
	VariantName string
	Width       int
	Height      int
	Bitrate     uint32
	Accelerate  bool

	Encoder   encoders.Overrides
	Muxer     MuxerConfig
	Segmenter SegmenterSettings
	BlockSize int
}

// OutputDir returns the directory the variant writes to.
func (s VariantSpec) OutputDir() string {
	return filepath.Join(s.OutputRoot, s.VariantName)
}

func (s VariantSpec) validate() error {
	var errs []error
	if s.InputPath == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if s.OutputRoot == "" {
		errs = append(errs, errors.New("output root is required"))
	}
	if s.VariantName == "" {
		errs = append(errs, errors.New("variant name is required"))
	}
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid resolution %dx%d", s.Width, s.Height))
	}
	switch pt := s.Segmenter.PlaylistType; {
	case !pt.Valid():
		errs = append(errs, fmt.Errorf("unknown playlist type %q", pt))
	case pt != PlaylistUnspecified && s.Segmenter.MaxFiles > 0:
		errs = append(errs, fmt.Errorf("%s playlist keeps every segment, max files must be 0", pt))
	}
	return errors.Join(errs...)
}

// Builder assembles graphs on an Engine.
type Builder struct {
	engine   Engine
	registry *Registry
	selector *encoders.Selector
	logger   *slog.Logger
}

// NewBuilder creates a builder. A nil selector uses encoders.NewSelector(nil).
func NewBuilder(engine Engine, registry *Registry, selector *encoders.Selector) *Builder {
	if selector == nil {
		selector = encoders.NewSelector(nil)
	}
	return &Builder{
		engine:   engine,
		registry: registry,
		selector: selector,
		logger:   logging.GetLogger("pipeline"),
	}
}

type stage struct {
	name string
	cfg  StageConfig
}

// Build creates every stage of the variant graph, links the static parts and
// registers the dynamic linker on the decoder. On error no graph is
// returned and the engine session is released.
func (b *Builder) Build(spec VariantSpec) (*Graph, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	encoder, err := b.selector.Select(spec.Accelerate, spec.Bitrate, spec.Encoder)
	if err != nil {
		return nil, err
	}

	name := "pipeline_" + spec.VariantName
	bus := NewBus(defaultBusSize)
	session, err := b.engine.NewSession(name, bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session: %w", b.engine.Name(), err)
	}

	g := newGraph(name, session, bus, b.logger)
	if err := b.assemble(g, spec, encoder); err != nil {
		bus.Close()
		if closeErr := session.Close(); closeErr != nil {
			b.logger.Warn("Failed to close session after build error", "graph", name, "error", closeErr)
		}
		return nil, err
	}

	b.logger.Info("Built pipeline",
		"graph", name,
		"engine", b.engine.Name(),
		"encoder", encoder.Variant,
		"bitrate", encoder.Bitrate,
		"output", spec.OutputDir())
	return g, nil
}

func (b *Builder) assemble(g *Graph, spec VariantSpec, encoder encoders.Config) error {
	nodes := make(map[string]*Node)
	for _, st := range stagePlan(spec, encoder) {
		node, err := g.addNode(st.name, st.cfg)
		if err != nil {
			return &StageCreationError{Stage: st.name, Kind: st.cfg.StageKind(), Err: err}
		}
		if err := g.session.CreateStage(node); err != nil {
			return &StageCreationError{Stage: st.name, Kind: st.cfg.StageKind(), Err: err}
		}
		nodes[st.name] = node
	}

	if err := g.link(StageSource, StageDecoder); err != nil {
		return err
	}
	if err := g.link(StageMuxer, StageSegmenter); err != nil {
		return err
	}

	g.registry = b.registry
	g.handle = b.registry.Insert(g)
	g.linker = newLinker(b.registry, g.handle, g.logger)
	g.linker.start()

	if err := g.session.OnStreamDiscovered(nodes[StageDecoder], g.linker.Discover); err != nil {
		g.linker.Stop()
		b.registry.Remove(g.handle)
		return fmt.Errorf("failed to register stream discovery on %s: %w", StageDecoder, err)
	}
	return nil
}

// stagePlan lists every stage in creation order.
func stagePlan(spec VariantSpec, encoder encoders.Config) []stage {
	blockSize := spec.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}

	muxer := spec.Muxer
	defaults := DefaultMuxerConfig()
	if muxer.Alignment == 0 {
		muxer.Alignment = defaults.Alignment
	}
	if muxer.PATInterval == 0 {
		muxer.PATInterval = defaults.PATInterval
	}
	if muxer.PMTInterval == 0 {
		muxer.PMTInterval = defaults.PMTInterval
	}
	if muxer.PCRInterval == 0 {
		muxer.PCRInterval = defaults.PCRInterval
	}

	target := spec.Segmenter.TargetDuration
	if target <= 0 {
		target = DefaultTargetDuration
	}
	dir := spec.OutputDir()

	return []stage{
		{StageSource, SourceConfig{Location: spec.InputPath, BlockSize: blockSize}},
		{StageDecoder, DecoderConfig{ExposeAllStreams: true, UseBuffering: false}},

		{StageVideoQueue, QueueConfig{Branch: Video}},
		{StageVideoScaler, ScalerConfig{}},
		{StageVideoFilter, FormatFilterConfig{MediaType: "video/x-raw", Width: spec.Width, Height: spec.Height, Profile: "high"}},
		{StageVideoEncoder, VideoEncoderConfig{Config: encoder}},
		{StageVideoParser, ParserConfig{Codec: "h264"}},

		{StageAudioQueue, QueueConfig{Branch: Audio}},
		{StageAudioConvert, ConverterConfig{}},
		{StageAudioResample, ResamplerConfig{}},
		{StageAudioProbe, ProbeConfig{Silent: false}},
		{StageAudioEncoder, AudioEncoderConfig{Codec: "aac", Bitrate: defaultAudioBitrate}},
		{StageAudioParser, ParserConfig{Codec: "aac"}},

		{StageMuxer, muxer},
		{StageSegmenter, SegmenterConfig{
			Location:         filepath.Join(dir, SegmentPattern),
			PlaylistLocation: filepath.Join(dir, PlaylistName),
			TargetDuration:   target,
			PlaylistLength:   spec.Segmenter.PlaylistLength,
			MaxFiles:         spec.Segmenter.MaxFiles,
			PlaylistType:     spec.Segmenter.PlaylistType,
		}},
	}
}
