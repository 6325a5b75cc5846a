package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Entry is a single recorded log line.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RecordFunc observes recorded entries.
type RecordFunc func(Entry)

// RingBuffer keeps the most recent entries.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewHistory creates a ring buffer holding up to size entries.
func NewHistory(size int) *RingBuffer {
	return &RingBuffer{entries: make([]Entry, size)}
}

// Write appends e, overwriting the oldest entry when full.
func (rb *RingBuffer) Write(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
}

// Entries returns the buffered entries oldest first.
func (rb *RingBuffer) Entries() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count < len(rb.entries) {
		return slices.Clone(rb.entries[:rb.count])
	}
	return slices.Concat(rb.entries[rb.head:], rb.entries[:rb.head])
}

// Len returns the number of buffered entries.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// HistoryHandler is a slog.Handler writing to a RingBuffer.
type HistoryHandler struct {
	buffer *RingBuffer
	level  slog.Leveler
	attrs  []groupedAttr
	groups []string
}

// groupedAttr remembers the groups that were open when the attr was added.
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewHistoryHandler creates a handler for buffer.
func NewHistoryHandler(buffer *RingBuffer, level slog.Leveler) *HistoryHandler {
	return &HistoryHandler{buffer: buffer, level: level}
}

// Enabled implements slog.Handler.
func (h *HistoryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *HistoryHandler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}

	add := func(groups []string, a slog.Attr) {
		if a.Key == "module" && len(groups) == 0 {
			entry.Module = a.Value.String()
			return
		}
		flatten(entry.Attributes, groups, a)
	}
	for _, ga := range h.attrs {
		add(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.groups, a)
		return true
	})

	h.buffer.Write(entry)
	if fn := recordCallback(); fn != nil {
		fn(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *HistoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := slices.Clone(h.attrs)
	for _, a := range attrs {
		next = append(next, groupedAttr{groups: h.groups, attr: a})
	}
	return &HistoryHandler{buffer: h.buffer, level: h.level, attrs: next, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *HistoryHandler) WithGroup(name string) slog.Handler {
	return &HistoryHandler{buffer: h.buffer, level: h.level, attrs: h.attrs, groups: append(slices.Clone(h.groups), name)}
}

func flatten(dst map[string]any, groups []string, a slog.Attr) {
	key := strings.Join(append(slices.Clone(groups), a.Key), ".")
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			flatten(dst, append(slices.Clone(groups), a.Key), ga)
		}
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = v.Any()
		}
	default:
		dst[key] = v.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
