package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from ffmpeg output.
// With -loglevel level+info lines look like "[info] message" or
// "[component @ 0x...] [level] message". The returned message keeps the
// component prefix and drops only the level.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	bracket := line[1:end]
	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			nextBracket := rest[1:nextEnd]
			if isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

// IsErrorLevel reports whether level is error or worse.
func IsErrorLevel(level string) bool {
	switch level {
	case "panic", "fatal", "error":
		return true
	}
	return false
}

// SegmentOpened extracts the file name from the hls muxer's
// "Opening '...' for writing" line.
func SegmentOpened(msg string) (string, bool) {
	const prefix = "Opening '"
	i := strings.Index(msg, prefix)
	if i == -1 || !strings.HasSuffix(msg, "' for writing") {
		return "", false
	}
	return msg[i+len(prefix) : len(msg)-len("' for writing")], true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
