package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/engine/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/probe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProber struct {
	res *probe.Result
	err error
}

func (p fakeProber) Probe(context.Context, string) (*probe.Result, error) {
	return p.res, p.err
}

var movie = &probe.Result{Streams: []probe.Stream{
	{Index: 0, CodecType: "video", CodecName: "h264"},
	{Index: 1, CodecType: "audio", CodecName: "aac"},
	{Index: 2, CodecType: "subtitle", CodecName: "subrip"},
	{Index: 3, CodecType: "audio", CodecName: "ac3"},
}}

// fakeRunner records the ffmpeg arguments and replays output lines.
type fakeRunner struct {
	mu       sync.Mutex
	args     []string
	lines    [][2]string
	code     int
	lastErr  string
	blocking bool
}

func (r *fakeRunner) run(ctx context.Context, args []string, onLine ffmpeg.LineFunc) (int, string, error) {
	r.mu.Lock()
	r.args = args
	lines := r.lines
	r.mu.Unlock()

	for _, l := range lines {
		onLine(l[0], l[1])
	}
	if r.blocking {
		<-ctx.Done()
		return 255, "", nil
	}
	return r.code, r.lastErr, nil
}

func (r *fakeRunner) Args() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args
}

func spec(t *testing.T) pipeline.VariantSpec {
	t.Helper()
	return pipeline.VariantSpec{
		InputPath:   "/media/in.mkv",
		OutputRoot:  t.TempDir(),
		VariantName: "v720",
		Width:       1280,
		Height:      720,
		Bitrate:     3_000_000,
		Accelerate:  true,
	}
}

func run(t *testing.T, eng *ffmpeg.Engine, s pipeline.VariantSpec, observe func(pipeline.Event)) (pipeline.Result, error) {
	t.Helper()
	g, err := pipeline.NewBuilder(eng, pipeline.NewRegistry(), nil).Build(s)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := g.Destroy(context.Background()); err != nil {
			t.Errorf("Destroy() error = %v", err)
		}
	}()

	c := pipeline.NewController()
	c.Observer = observe
	return c.Run(context.Background(), g)
}

func mapped(args []string) []string {
	var out []string
	for i, a := range args {
		if a == "-map" && i+1 < len(args) {
			out = append(out, args[i+1])
		}
	}
	return out
}

func TestTranscodeEndOfStream(t *testing.T) {
	runner := &fakeRunner{lines: [][2]string{
		{"info", "[hls @ 0x1] Opening '/out/v720/segment_00.ts' for writing"},
		{"warning", "deprecated pixel format used"},
	}}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: movie}, Runner: runner.run})

	var mu sync.Mutex
	var events []pipeline.Event
	s := spec(t)
	res, err := run(t, eng, s, func(ev pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Terminal.Kind != pipeline.EventEOS {
		t.Errorf("Terminal = %v, want eos", res.Terminal.Kind)
	}

	args := runner.Args()
	if diff := cmp.Diff([]string{"0:0", "0:1"}, mapped(args)); diff != "" {
		t.Errorf("mapped streams mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"h264_nvenc", "2048k", "scale=1280:720", "aac"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if last := args[len(args)-1]; last != filepath.Join(s.OutputDir(), "playlist.m3u8") {
		t.Errorf("playlist = %q", last)
	}

	mu.Lock()
	defer mu.Unlock()
	var linked, ignored, segments int
	for _, ev := range events {
		switch {
		case ev.Kind == pipeline.EventStreamLinked:
			linked++
		case ev.Kind == pipeline.EventStreamIgnored:
			ignored++
		case ev.Kind == pipeline.EventInfo && ev.Source == pipeline.StageSegmenter:
			segments++
		}
	}
	if linked != 2 || ignored != 1 || segments != 1 {
		t.Errorf("linked=%d ignored=%d segments=%d, want 2, 1, 1", linked, ignored, segments)
	}
}

func TestTranscodeAudioOnly(t *testing.T) {
	runner := &fakeRunner{}
	input := &probe.Result{Streams: []probe.Stream{{Index: 0, CodecType: "audio", CodecName: "mp3"}}}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: input}, Runner: runner.run})

	if _, err := run(t, eng, spec(t), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	args := runner.Args()
	if slices.Contains(args, "-c:v") {
		t.Error("video encoder configured for an audio-only input")
	}
	if diff := cmp.Diff([]string{"0:0"}, mapped(args)); diff != "" {
		t.Errorf("mapped streams mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscodePlaylistType(t *testing.T) {
	runner := &fakeRunner{}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: movie}, Runner: runner.run})

	s := spec(t)
	s.Segmenter.PlaylistType = pipeline.PlaylistEvent
	if _, err := run(t, eng, s, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	args := runner.Args()
	i := slices.Index(args, "-hls_playlist_type")
	if i == -1 || i+1 >= len(args) || args[i+1] != "event" {
		t.Errorf("args = %v, want -hls_playlist_type event", args)
	}
}

func TestTranscodeFailureReportsLastError(t *testing.T) {
	runner := &fakeRunner{code: 1, lastErr: "Conversion failed!"}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: movie}, Runner: runner.run})

	_, err := run(t, eng, spec(t), nil)
	var streamErr *pipeline.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Run() error = %v, want *StreamError", err)
	}
	if streamErr.Message != "Conversion failed!" {
		t.Errorf("Message = %q", streamErr.Message)
	}
}

func TestTranscodeFailureWithoutOutput(t *testing.T) {
	runner := &fakeRunner{code: 69}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: movie}, Runner: runner.run})

	_, err := run(t, eng, spec(t), nil)
	if err == nil || !strings.Contains(err.Error(), "status 69") {
		t.Fatalf("Run() error = %v, want exit status", err)
	}
}

func TestProbeFailureIsAnError(t *testing.T) {
	runner := &fakeRunner{}
	eng := ffmpeg.New(ffmpeg.Config{
		Prober: fakeProber{err: errors.New("Invalid data found when processing input")},
		Runner: runner.run,
	})

	_, err := run(t, eng, spec(t), nil)
	var streamErr *pipeline.StreamError
	if !errors.As(err, &streamErr) || !strings.Contains(streamErr.Message, "Invalid data") {
		t.Fatalf("Run() error = %v", err)
	}
	if runner.Args() != nil {
		t.Error("ffmpeg started after a failed probe")
	}
}

func TestNoUsableStreams(t *testing.T) {
	runner := &fakeRunner{}
	input := &probe.Result{Streams: []probe.Stream{{Index: 0, CodecType: "subtitle", CodecName: "ass"}}}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: input}, Runner: runner.run})

	if _, err := run(t, eng, spec(t), nil); err == nil {
		t.Fatal("Run() error = nil for an input without audio or video")
	}
	if runner.Args() != nil {
		t.Error("ffmpeg started without linked streams")
	}
}

func TestCancelStopsRunner(t *testing.T) {
	runner := &fakeRunner{blocking: true}
	eng := ffmpeg.New(ffmpeg.Config{Prober: fakeProber{res: movie}, Runner: runner.run})

	g, err := pipeline.NewBuilder(eng, pipeline.NewRegistry(), nil).Build(spec(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer g.Destroy(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	c := pipeline.NewController()
	c.Observer = func(ev pipeline.Event) {
		if ev.Kind == pipeline.EventStreamLinked && ev.StreamKind == pipeline.Audio {
			cancel()
		}
	}
	if _, err := c.Run(ctx, g); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestMissingEncoderFailsStageCreation(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\nprintf 'Encoders:\\n ------\\n V....D libx264              libx264 H.264\\n'\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	eng := ffmpeg.New(ffmpeg.Config{
		FFmpegPath: fake,
		Catalog:    encoders.NewCatalog(fake),
		Prober:     fakeProber{res: movie},
	})

	_, err := pipeline.NewBuilder(eng, pipeline.NewRegistry(), nil).Build(spec(t))
	var stageErr *pipeline.StageCreationError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Build() error = %v, want *StageCreationError", err)
	}
	if stageErr.Stage != pipeline.StageVideoEncoder || !strings.Contains(err.Error(), "h264_nvenc") {
		t.Errorf("error = %v", err)
	}

	s := spec(t)
	s.Accelerate = false
	g, err := pipeline.NewBuilder(eng, pipeline.NewRegistry(), nil).Build(s)
	if err != nil {
		t.Fatalf("software Build() error = %v", err)
	}
	if err := g.Destroy(context.Background()); err != nil {
		t.Errorf("Destroy() error = %v", err)
	}
}
