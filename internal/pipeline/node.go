package pipeline

import (
	"fmt"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
)

// Kind is the role of a stage in the graph.
type Kind int

const (
	KindSource Kind = iota
	KindDecoder
	KindQueue
	KindScaler
	KindFormatFilter
	KindEncoder
	KindParser
	KindMuxer
	KindSegmenter
	KindConverter
	KindResampler
	KindProbe
)

var kindNames = map[Kind]string{
	KindSource:       "source",
	KindDecoder:      "decoder",
	KindQueue:        "queue",
	KindScaler:       "scaler",
	KindFormatFilter: "format_filter",
	KindEncoder:      "encoder",
	KindParser:       "parser",
	KindMuxer:        "muxer",
	KindSegmenter:    "segmenter",
	KindConverter:    "converter",
	KindResampler:    "resampler",
	KindProbe:        "probe",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// StageConfig is the configuration record of a stage.
type StageConfig interface {
	StageKind() Kind
}

// Node is a stage owned by a Graph.
type Node struct {
	ID     int
	Name   string
	Config StageConfig
}

// Kind returns the node's stage kind.
func (n *Node) Kind() Kind {
	return n.Config.StageKind()
}

// SourceConfig reads the input file.
type SourceConfig struct {
	Location  string
	BlockSize int
}

func (SourceConfig) StageKind() Kind { return KindSource }

// DecoderConfig auto-detects container and codecs.
type DecoderConfig struct {
	ExposeAllStreams bool
	UseBuffering     bool
}

func (DecoderConfig) StageKind() Kind { return KindDecoder }

// QueueConfig decouples a branch from the decoder thread.
type QueueConfig struct {
	Branch StreamKind
}

func (QueueConfig) StageKind() Kind { return KindQueue }

// ScalerConfig resizes raw video to the filter caps.
type ScalerConfig struct{}

func (ScalerConfig) StageKind() Kind { return KindScaler }

// FormatFilterConfig constrains raw video format.
type FormatFilterConfig struct {
	MediaType string
	Width     int
	Height    int
	Profile   string
}

func (FormatFilterConfig) StageKind() Kind { return KindFormatFilter }

// Caps renders the filter as a caps string.
func (c FormatFilterConfig) Caps() string {
	caps := fmt.Sprintf("%s,width=%d,height=%d", c.MediaType, c.Width, c.Height)
	if c.Profile != "" {
		caps += ",profile=" + c.Profile
	}
	return caps
}

// VideoEncoderConfig wraps the selected H.264 encoder configuration.
type VideoEncoderConfig struct {
	encoders.Config
}

func (VideoEncoderConfig) StageKind() Kind { return KindEncoder }

// AudioEncoderConfig encodes audio to AAC.
type AudioEncoderConfig struct {
	Codec   string
	Bitrate int
}

func (AudioEncoderConfig) StageKind() Kind { return KindEncoder }

// ParserConfig packetizes an elementary stream for the muxer.
type ParserConfig struct {
	Codec string
}

func (ParserConfig) StageKind() Kind { return KindParser }

// ConverterConfig converts raw audio sample formats.
type ConverterConfig struct{}

func (ConverterConfig) StageKind() Kind { return KindConverter }

// ResamplerConfig resamples raw audio.
type ResamplerConfig struct {
	SampleRate int
}

func (ResamplerConfig) StageKind() Kind { return KindResampler }

// ProbeConfig is a passthrough stage used to observe audio buffers.
type ProbeConfig struct {
	Silent bool
}

func (ProbeConfig) StageKind() Kind { return KindProbe }

// MuxerConfig configures the MPEG transport stream muxer.
type MuxerConfig struct {
	Alignment   int
	PATInterval time.Duration
	PMTInterval time.Duration
	PCRInterval time.Duration
}

func (MuxerConfig) StageKind() Kind { return KindMuxer }

// DefaultMuxerConfig returns the muxer defaults.
func DefaultMuxerConfig() MuxerConfig {
	return MuxerConfig{
		Alignment:   1,
		PATInterval: 500 * time.Millisecond,
		PMTInterval: 500 * time.Millisecond,
		PCRInterval: 20 * time.Millisecond,
	}
}

// PlaylistType is the EXT-X-PLAYLIST-TYPE written to the playlist.
type PlaylistType string

const (
	// PlaylistUnspecified omits the tag; the playlist is a sliding window.
	PlaylistUnspecified PlaylistType = ""
	// PlaylistEvent only ever appends segments.
	PlaylistEvent PlaylistType = "event"
	// PlaylistVOD is a complete presentation once the run ends.
	PlaylistVOD PlaylistType = "vod"
)

// Valid reports whether p is a known playlist type.
func (p PlaylistType) Valid() bool {
	switch p {
	case PlaylistUnspecified, PlaylistEvent, PlaylistVOD:
		return true
	}
	return false
}

// SegmenterConfig writes HLS segments and the playlist.
type SegmenterConfig struct {
	Location         string
	PlaylistLocation string
	TargetDuration   time.Duration
	PlaylistLength   uint
	MaxFiles         uint
	PlaylistType     PlaylistType
}

func (SegmenterConfig) StageKind() Kind { return KindSegmenter }
