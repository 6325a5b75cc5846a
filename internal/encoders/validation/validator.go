// Package validation test-encodes the H.264 encoder variants on this host
// and records which ones work.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	ff "github.com/smazurov/hlsvariant/internal/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/process"
)

const (
	testFrames     = 60
	testResolution = "1280x720"
)

// Runner executes ffmpeg with args, streaming raw output lines to onLine.
type Runner func(ctx context.Context, args []string, onLine func(string)) (exitCode int, lastError string, err error)

// Validator runs one short synthetic encode per variant.
type Validator struct {
	FFmpegPath string
	// Catalog, when set, skips encoders the ffmpeg build does not list.
	Catalog *encoders.Catalog
	// Timeout bounds each test encode.
	Timeout time.Duration

	run    Runner
	logger *slog.Logger
}

// New creates a validator for the given ffmpeg binary.
func New(ffmpegPath string) *Validator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	v := &Validator{
		FFmpegPath: ffmpegPath,
		Timeout:    15 * time.Second,
		logger:     logging.GetLogger("encoders"),
	}
	v.run = v.runProcess
	return v
}

// WithRunner replaces process execution, mostly for tests.
func (v *Validator) WithRunner(run Runner) *Validator {
	v.run = run
	return v
}

// Validate test-encodes both variants and returns the outcome.
func (v *Validator) Validate(ctx context.Context) (*encoders.ValidationResults, error) {
	start := time.Now()
	results := &encoders.ValidationResults{
		Timestamp:      start.UTC().Format(time.RFC3339),
		FFmpegVersion:  v.version(ctx),
		TestResolution: testResolution,
		Working:        []string{},
		Failed:         []string{},
	}

	for _, variant := range []encoders.Variant{encoders.Hardware, encoders.Software} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := encoders.FFmpegEncoder(variant)
		if err := v.testEncode(ctx, name); err != nil {
			v.logger.Warn("Encoder failed validation", "encoder", name, "variant", variant, "error", err)
			results.Failed = append(results.Failed, name)
			continue
		}
		v.logger.Info("Encoder validated", "encoder", name, "variant", variant)
		results.Working = append(results.Working, name)
	}

	results.TestDuration = int(time.Since(start).Milliseconds())
	return results, nil
}

// ValidateAndSave runs Validate and persists the results to store.
func (v *Validator) ValidateAndSave(ctx context.Context, store *encoders.ResultsStore) (*encoders.ValidationResults, error) {
	results, err := v.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Save(results); err != nil {
		return results, fmt.Errorf("save validation results: %w", err)
	}
	v.logger.Info("Saved validation results", "path", store.Path(), "working", results.Working, "failed", results.Failed)
	return results, nil
}

func (v *Validator) testEncode(ctx context.Context, name string) error {
	if v.Catalog != nil && !v.Catalog.Available(ctx, name) {
		return fmt.Errorf("%s is not compiled into %s", name, v.FFmpegPath)
	}

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	code, lastErr, err := v.run(ctx, ff.TestEncodeArgs(name, testFrames), nil)
	switch {
	case err != nil:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("test encode timed out after %s", v.Timeout)
	case code != 0 && lastErr != "":
		return fmt.Errorf("exit status %d: %s", code, lastErr)
	case code != 0:
		return fmt.Errorf("exit status %d", code)
	}
	return nil
}

// version returns the ffmpeg release from the first line of -version.
func (v *Validator) version(ctx context.Context) string {
	var first string
	_, _, err := v.run(ctx, []string{"-hide_banner", "-version"}, func(line string) {
		if first == "" {
			first = line
		}
	})
	if err != nil {
		return "unknown"
	}
	return ParseVersion(first)
}

// ParseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func ParseVersion(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

func (v *Validator) runProcess(ctx context.Context, args []string, onLine func(string)) (int, string, error) {
	var handler process.OutputHandler
	if onLine != nil {
		handler = process.OutputFunc(func(_, line string) { onLine(line) })
	}
	proc := process.NewProcessWithOutput("validate", append([]string{v.FFmpegPath}, args...), v.logger, handler)
	proc.SetLogParser(v.logger, ff.ParseLogLevel)
	proc.SetGracefulTimeout(time.Second)
	code, err := proc.Run(ctx)
	return code, proc.LastError(), err
}
