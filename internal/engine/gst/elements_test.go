//go:build gstreamer

package gst

import (
	"testing"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

func TestTicks90k(t *testing.T) {
	if got := ticks90k(500 * time.Millisecond); got != 45000 {
		t.Errorf("ticks90k(500ms) = %d, want 45000", got)
	}
	if got := ticks90k(20 * time.Millisecond); got != 1800 {
		t.Errorf("ticks90k(20ms) = %d, want 1800", got)
	}
}

func TestElementFactories(t *testing.T) {
	tests := []struct {
		cfg  pipeline.StageConfig
		want string
	}{
		{pipeline.SourceConfig{}, "filesrc"},
		{pipeline.DecoderConfig{}, "decodebin"},
		{pipeline.FormatFilterConfig{}, "capsfilter"},
		{pipeline.VideoEncoderConfig{Config: encoders.Defaults(encoders.Hardware)}, "nvh264enc"},
		{pipeline.VideoEncoderConfig{Config: encoders.Defaults(encoders.Software)}, "x264enc"},
		{pipeline.ParserConfig{Codec: "h264"}, "h264parse"},
		{pipeline.ParserConfig{Codec: "aac"}, "aacparse"},
		{pipeline.ProbeConfig{}, "identity"},
		{pipeline.MuxerConfig{}, "mpegtsmux"},
		{pipeline.SegmenterConfig{}, "hlssink"},
		{pipeline.SegmenterConfig{PlaylistType: pipeline.PlaylistVOD}, "hlssink3"},
	}
	for _, tt := range tests {
		if got, _ := elementFor(tt.cfg); got != tt.want {
			t.Errorf("elementFor(%T) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestSessionCreatesStages(t *testing.T) {
	eng := New()
	bus := pipeline.NewBus(8)
	s, err := eng.NewSession("pipeline_test", bus)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	queue := &pipeline.Node{Name: "video_queue", Config: pipeline.QueueConfig{Branch: pipeline.Video}}
	scaler := &pipeline.Node{Name: "video_scaler", Config: pipeline.ScalerConfig{}}
	for _, n := range []*pipeline.Node{queue, scaler} {
		if err := s.CreateStage(n); err != nil {
			t.Fatalf("CreateStage(%s) error = %v", n.Name, err)
		}
	}
	if err := s.Link(queue, scaler); err != nil {
		t.Errorf("Link() error = %v", err)
	}
}
