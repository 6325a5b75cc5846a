package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/hlsvariant/internal/logging"
)

// requestLogger logs each completed request. Polling endpoints and event
// streams log at debug so a dashboard does not flood the log.
func requestLogger(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	path := ctx.URL().Path
	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}

	logging.GetLogger("http").LogAttrs(ctx.Context(), requestLevel(ctx.Method(), path, status), "HTTP request completed", attrs...)
}

func requestLevel(method, path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case method == "OPTIONS",
		path == "/api/health",
		path == "/api/status",
		strings.HasPrefix(path, "/api/events"),
		strings.HasPrefix(path, "/api/logs/stream"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
