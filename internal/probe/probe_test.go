package probe

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "disposition": {"attached_pic": 0}},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2, "sample_rate": "48000",
     "tags": {"language": "eng"}},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle"},
    {"index": 3, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600,
     "disposition": {"attached_pic": 1}}
  ],
  "format": {"format_name": "matroska,webm", "duration": "12.500000"}
}`

func TestParse(t *testing.T) {
	res, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if res.Duration != 12500*time.Millisecond {
		t.Errorf("Duration = %v", res.Duration)
	}
	if res.FormatName != "matroska,webm" {
		t.Errorf("FormatName = %q", res.FormatName)
	}

	want := []string{"video/h264", "audio/aac", "text/subrip", "image/mjpeg"}
	var got []string
	for _, s := range res.Streams {
		got = append(got, s.MediaType())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("media types mismatch (-want +got):\n%s", diff)
	}

	audio := res.Streams[1]
	if audio.SampleRate != 48000 || audio.Channels != 2 || audio.Language != "eng" {
		t.Errorf("audio stream = %+v", audio)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("Parse() error = nil")
	}
}

func TestProbeRunsFFprobe(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := NewProber("/opt/ffprobe").WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(sample), nil
	})

	res, err := p.Probe(context.Background(), "/media/in.mkv")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(res.Streams) != 4 {
		t.Errorf("len(Streams) = %d", len(res.Streams))
	}
	if gotName != "/opt/ffprobe" || gotArgs[len(gotArgs)-1] != "/media/in.mkv" {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
	if !slices.Contains(gotArgs, "-show_streams") {
		t.Errorf("args %v missing -show_streams", gotArgs)
	}
}

func TestProbeError(t *testing.T) {
	boom := errors.New("exit status 1: No such file or directory")
	p := NewProber("").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, boom
	})

	if _, err := p.Probe(context.Background(), "/missing"); !errors.Is(err, boom) {
		t.Fatalf("Probe() error = %v, want wrapped runner error", err)
	}
	if p.Binary != "ffprobe" {
		t.Errorf("Binary = %q, want ffprobe default", p.Binary)
	}
}
