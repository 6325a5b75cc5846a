package segments

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/hlsvariant/internal/events"
)

type collector struct {
	mu     sync.Mutex
	events []events.SegmentWrittenEvent
}

func (c *collector) publish(e events.SegmentWrittenEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []events.SegmentWrittenEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.SegmentWrittenEvent(nil), c.events...)
}

func (c *collector) waitFor(t *testing.T, match func(events.SegmentWrittenEvent) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range c.snapshot() {
			if match(e) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for event")
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

type seen struct {
	Name     string
	Playlist bool
}

func names(evs []events.SegmentWrittenEvent) []seen {
	var out []seen
	for _, e := range evs {
		out = append(out, seen{filepath.Base(e.Path), e.Playlist})
	}
	return out
}

func TestWatcherReportsSegments(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := NewWatcher(dir, "v720", c.publish)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeFile(t, filepath.Join(dir, "segment_00.ts"), 188)
	writeFile(t, filepath.Join(dir, "segment_01.ts"), 376)
	c.waitFor(t, func(e events.SegmentWrittenEvent) bool { return filepath.Base(e.Path) == "segment_00.ts" })

	writeFile(t, filepath.Join(dir, "playlist.m3u8"), 10)
	c.waitFor(t, func(e events.SegmentWrittenEvent) bool { return e.Playlist })

	if n := w.Stop(); n != 2 {
		t.Errorf("Stop() = %d, want 2", n)
	}

	got := c.snapshot()
	want := []seen{
		{"segment_00.ts", false},
		{"playlist.m3u8", true},
		{"segment_01.ts", false},
	}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if got[0].Size != 188 || got[2].Size != 376 {
		t.Errorf("sizes = %d, %d", got[0].Size, got[2].Size)
	}
	if got[0].Variant != "v720" {
		t.Errorf("Variant = %q", got[0].Variant)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := NewWatcher(dir, "v720", c.publish)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "notes.txt"), 1)
	writeFile(t, filepath.Join(dir, "playlist.m3u8"), 1)
	c.waitFor(t, func(e events.SegmentWrittenEvent) bool { return e.Playlist })

	if n := w.Stop(); n != 0 {
		t.Errorf("Stop() = %d, want 0", n)
	}
	for _, e := range c.snapshot() {
		if !e.Playlist {
			t.Errorf("unexpected segment event %+v", e)
		}
	}
}

func TestWatcherCustomNames(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := NewWatcher(dir, "v1", c.publish, WithPlaylistName("index.m3u8"), WithSegmentExtension(".m4s"))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "chunk_0.m4s"), 4)
	writeFile(t, filepath.Join(dir, "index.m3u8"), 1)
	c.waitFor(t, func(e events.SegmentWrittenEvent) bool { return e.Playlist })

	if n := w.Stop(); n != 1 {
		t.Errorf("Stop() = %d, want 1", n)
	}
}

func TestWatcherStopTwice(t *testing.T) {
	w := NewWatcher(t.TempDir(), "v720", nil)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if n := w.Stop(); n != 0 {
		t.Errorf("second Stop() = %d, want 0", n)
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), "v720", nil)
	if err := w.Start(); err == nil {
		t.Fatal("Start() error = nil for missing directory")
	}
	if n := w.Stop(); n != 0 {
		t.Errorf("Stop() = %d, want 0", n)
	}
}
