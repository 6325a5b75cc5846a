// Package logging provides slog loggers with per-module levels.
//
// Records fan out to stdout (text or json), the systemd journal when it is
// reachable, and an in-memory history that the status API serves.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mu       sync.RWMutex
	current  = Config{Level: "info", Format: "text"}
	modules  = make(map[string]*moduleLogger)
	history  = NewHistory(historySize)
	onRecord RecordFunc
)

// Initialize applies config to every existing and future module logger and
// installs the default slog logger.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	if config.Format == "" {
		config.Format = "text"
	}
	current = config

	for name, m := range modules {
		m.level.Set(levelFor(config, name))
		m.logger = slog.New(newHandler(config.Format, m.level)).With("module", name)
	}

	global := &slog.LevelVar{}
	global.Set(levelFor(config, ""))
	slog.SetDefault(slog.New(newHandler(config.Format, global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()

	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(levelFor(current, module))
	m = &moduleLogger{
		logger: slog.New(newHandler(current.Format, level)).With("module", module),
		level:  level,
	}
	modules[module] = m
	return m.logger
}

// SetModuleLevel changes a module's level at runtime.
func SetModuleLevel(module, level string) bool {
	parsed, ok := ParseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	mu.Lock()
	defer mu.Unlock()
	modules[module].level.Set(parsed)
	return true
}

// History returns the in-memory record history.
func History() *RingBuffer {
	return history
}

// OnRecord registers fn to be called for every recorded entry.
func OnRecord(fn RecordFunc) {
	mu.Lock()
	defer mu.Unlock()
	onRecord = fn
}

func recordCallback() RecordFunc {
	mu.RLock()
	defer mu.RUnlock()
	return onRecord
}

func levelFor(config Config, module string) slog.Level {
	level := slog.LevelInfo
	if parsed, ok := ParseLevel(config.Level); ok {
		level = parsed
	}
	if module != "" {
		if parsed, ok := ParseLevel(config.Modules[module]); ok {
			level = parsed
		}
	}
	return level
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutConnected() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewHistoryHandler(history, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewFanout(handlers...)
}

// stdoutConnected is false when stdout points at /dev/null.
func stdoutConnected() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
