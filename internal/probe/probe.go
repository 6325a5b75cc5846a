// Package probe discovers the elementary streams of a media file with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Stream is one elementary stream reported by ffprobe.
type Stream struct {
	Index       int    `json:"index"`
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Language    string `json:"language,omitempty"`
	AttachedPic bool   `json:"attached_pic,omitempty"`
}

// MediaType returns a caps-style media type such as video/h264.
// Cover art is reported as image so it is never mistaken for the
// video track.
func (s Stream) MediaType() string {
	kind := s.CodecType
	switch {
	case s.AttachedPic:
		kind = "image"
	case kind == "subtitle":
		kind = "text"
	case kind == "":
		kind = "application"
	}
	codec := s.CodecName
	if codec == "" {
		codec = "unknown"
	}
	return kind + "/" + codec
}

// Result is the parsed ffprobe report for one input.
type Result struct {
	FormatName string        `json:"format_name"`
	Duration   time.Duration `json:"duration"`
	Streams    []Stream      `json:"streams"`
}

// RunFunc executes a command and returns its stdout.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober runs ffprobe against local files.
type Prober struct {
	Binary string
	run    RunFunc
}

// NewProber returns a prober for the given ffprobe binary.
func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{Binary: binary, run: execOutput}
}

// WithRunner replaces command execution, mostly for tests.
func (p *Prober) WithRunner(run RunFunc) *Prober {
	p.run = run
	return p
}

// Probe lists the streams of path in container order.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	out, err := p.run(ctx, p.Binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return Parse(out)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Channels    int               `json:"channels"`
	SampleRate  string            `json:"sample_rate"`
	Tags        map[string]string `json:"tags"`
	Disposition ffprobeDisp       `json:"disposition"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeDisp struct {
	AttachedPic int `json:"attached_pic"`
}

// Parse decodes ffprobe -of json output.
func Parse(data []byte) (*Result, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	res := &Result{FormatName: ff.Format.FormatName}
	if secs, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil {
		res.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range ff.Streams {
		rate, _ := strconv.Atoi(s.SampleRate)
		res.Streams = append(res.Streams, Stream{
			Index:       s.Index,
			CodecType:   s.CodecType,
			CodecName:   s.CodecName,
			Width:       s.Width,
			Height:      s.Height,
			Channels:    s.Channels,
			SampleRate:  rate,
			Language:    s.Tags["language"],
			AttachedPic: s.Disposition.AttachedPic == 1,
		})
	}
	return res, nil
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
			}
		}
		return nil, err
	}
	return out, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i != -1 {
		return s[i+1:]
	}
	return s
}
