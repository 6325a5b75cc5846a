// Package process runs one subprocess to completion.
//
// Process wraps os/exec with:
//   - Graceful shutdown with SIGINT when the context is cancelled
//   - Force kill with SIGKILL if graceful shutdown times out
//   - Output streaming with pluggable log parsing
//   - Tracking of the last error line for failure reports
//
// Example:
//
//	p := process.NewProcess("ffmpeg", []string{"ffmpeg", "-i", "in.mkv", "out.m3u8"}, logger)
//	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	exitCode := p.Run(ctx)
package process
