// Package segments watches a variant directory and reports finished HLS
// segments and playlist rewrites.
package segments

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/hlsvariant/internal/events"
	"github.com/smazurov/hlsvariant/internal/logging"
)

// Watcher reports segments in one directory. A segment counts as written
// once the next segment is created or the watcher stops.
type Watcher struct {
	dir      string
	variant  string
	segExt   string
	playlist string
	publish  func(events.SegmentWrittenEvent)
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending string
	written int
	done    chan struct{}
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPlaylistName overrides the playlist file name.
func WithPlaylistName(name string) Option {
	return func(w *Watcher) {
		w.playlist = name
	}
}

// WithSegmentExtension overrides the segment file extension.
func WithSegmentExtension(ext string) Option {
	return func(w *Watcher) {
		w.segExt = ext
	}
}

// NewWatcher creates a watcher for dir. publish receives every event and
// must not block.
func NewWatcher(dir, variant string, publish func(events.SegmentWrittenEvent), opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		variant:  variant,
		segExt:   ".ts",
		playlist: "playlist.m3u8",
		publish:  publish,
		logger:   logging.GetLogger("segments"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Files present before Start are not reported.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := watcher.Add(w.dir); addErr != nil {
		watcher.Close()
		return addErr
	}

	w.mu.Lock()
	w.watcher = watcher
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.logger.Debug("Segment watcher started", "dir", w.dir)
	go w.watch(watcher, w.done)
	return nil
}

// Stop ends watching, reports the last pending segment and returns the
// number of segments reported.
func (w *Watcher) Stop() int {
	w.mu.Lock()
	watcher, done := w.watcher, w.done
	if w.stopped || watcher == nil {
		n := w.written
		w.mu.Unlock()
		return n
	}
	w.stopped = true
	w.mu.Unlock()

	if err := watcher.Close(); err != nil {
		w.logger.Warn("Failed to close segment watcher", "error", err)
	}
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
	w.logger.Debug("Segment watcher stopped", "dir", w.dir, "segments", w.written)
	return w.written
}

// Written returns the number of segments reported so far.
func (w *Watcher) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Watcher) watch(watcher *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Segment watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)

	switch {
	case name == w.playlist && event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.emit(event.Name, true)

	case strings.HasSuffix(name, w.segExt) && event.Has(fsnotify.Create):
		w.mu.Lock()
		if event.Name != w.pending {
			w.flushLocked()
			w.pending = event.Name
		}
		w.mu.Unlock()

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		if event.Name == w.pending {
			w.pending = ""
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) flushLocked() {
	if w.pending == "" {
		return
	}
	path := w.pending
	w.pending = ""
	w.written++
	w.emitLocked(path, false)
}

func (w *Watcher) emit(path string, playlist bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emitLocked(path, playlist)
}

func (w *Watcher) emitLocked(path string, playlist bool) {
	var size int64
	info, err := os.Stat(path)
	switch {
	case err == nil:
		size = info.Size()
	case errors.Is(err, os.ErrNotExist):
		// Rotated away by playlist retention.
	default:
		w.logger.Debug("Failed to stat segment", "path", path, "error", err)
	}

	if !playlist {
		w.logger.Debug("Segment written", "path", path, "size", size)
	}
	if w.publish != nil {
		w.publish(events.SegmentWrittenEvent{
			Variant:   w.variant,
			Path:      path,
			Size:      size,
			Playlist:  playlist,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
