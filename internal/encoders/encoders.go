package encoders

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// EncoderType represents the type of encoder (video, audio, subtitle)
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents an encoder compiled into ffmpeg
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	HWAccel     bool        `json:"hwaccel"`
}

// FFmpegEncoder returns the ffmpeg encoder name for a variant.
func FFmpegEncoder(v Variant) string {
	if v == Hardware {
		return "h264_nvenc"
	}
	return "libx264"
}

// GstFactory returns the GStreamer element factory for a variant.
func GstFactory(v Variant) string {
	if v == Hardware {
		return "nvh264enc"
	}
	return "x264enc"
}

var (
	encoderLine  = regexp.MustCompile(`^\s*([VASFXBD\.]{6})\s+(\w+)\s+(.+)$`)
	hwaccelNames = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|vdpau|cuda|vulkan)`)
)

// Catalog lists the encoders compiled into an ffmpeg binary. The listing is
// fetched once and cached.
type Catalog struct {
	binary string

	once     sync.Once
	encoders []Encoder
	err      error
}

// NewCatalog creates a catalog for the given ffmpeg binary.
func NewCatalog(binary string) *Catalog {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Catalog{binary: binary}
}

// Encoders returns the compiled encoders.
func (c *Catalog) Encoders(ctx context.Context) ([]Encoder, error) {
	c.once.Do(func() {
		cmd := exec.CommandContext(ctx, c.binary, "-hide_banner", "-nostats", "-encoders")
		output, err := cmd.Output()
		if err != nil {
			c.err = fmt.Errorf("failed to list ffmpeg encoders: %w", err)
			return
		}
		c.encoders, c.err = ParseEncoderOutput(string(output))
	})
	return c.encoders, c.err
}

// Available reports whether name is compiled into ffmpeg.
func (c *Catalog) Available(ctx context.Context, name string) bool {
	list, err := c.Encoders(ctx)
	if err != nil {
		return false
	}
	for _, enc := range list {
		if enc.Name == name {
			return true
		}
	}
	return false
}

// ParseEncoderOutput processes the output of ffmpeg -encoders.
func ParseEncoderOutput(output string) ([]Encoder, error) {
	var result []Encoder

	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false

	for scanner.Scan() {
		line := scanner.Text()

		// Skip the legend until the separator line after "Encoders:"
		if !started {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}

		matches := encoderLine.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}

		flags, name, description := matches[1], matches[2], matches[3]

		encType := Unknown
		switch flags[0] {
		case 'V':
			encType = VideoEncoder
		case 'A':
			encType = AudioEncoder
		case 'S':
			encType = SubtitleEncoder
		}

		result = append(result, Encoder{
			Type:        encType,
			Name:        name,
			Description: description,
			HWAccel:     hwaccelNames.MatchString(name) || hwaccelNames.MatchString(description),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading encoder list: %w", err)
	}

	return result, nil
}
