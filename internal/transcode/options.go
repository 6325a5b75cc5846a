package transcode

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

// ErrInputNotFound is returned when the input file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// MissingArgumentError reports a required option that was not supplied.
type MissingArgumentError struct {
	Name string
}

func (e *MissingArgumentError) Error() string {
	return "missing required argument: " + e.Name
}

// Options describes one transcode run.
type Options struct {
	InputPath   string
	OutputRoot  string
	VariantName string
	Width       int
	Height      int
	// Bitrate is the requested video bitrate in bits per second before
	// clamping.
	Bitrate    uint32
	Accelerate bool

	Encoder   encoders.Overrides
	Muxer     pipeline.MuxerConfig
	Segmenter pipeline.SegmenterSettings
	BlockSize int

	// Timeout bounds the wait for end of stream. Zero waits forever.
	Timeout time.Duration
}

// Validate reports the first missing required option.
func (o Options) Validate() error {
	switch {
	case o.InputPath == "":
		return &MissingArgumentError{Name: "input"}
	case o.OutputRoot == "":
		return &MissingArgumentError{Name: "output"}
	case o.VariantName == "":
		return &MissingArgumentError{Name: "variant"}
	case o.Width <= 0:
		return &MissingArgumentError{Name: "width"}
	case o.Height <= 0:
		return &MissingArgumentError{Name: "height"}
	case o.Bitrate == 0:
		return &MissingArgumentError{Name: "bitrate"}
	}
	return nil
}

// Spec converts the options into a pipeline variant spec.
func (o Options) Spec() pipeline.VariantSpec {
	return pipeline.VariantSpec{
		InputPath:   o.InputPath,
		OutputRoot:  o.OutputRoot,
		VariantName: o.VariantName,
		Width:       o.Width,
		Height:      o.Height,
		Bitrate:     o.Bitrate,
		Accelerate:  o.Accelerate,
		Encoder:     o.Encoder,
		Muxer:       o.Muxer,
		Segmenter:   o.Segmenter,
		BlockSize:   o.BlockSize,
	}
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat input %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("input %s is not a regular file", path)
	}
	return nil
}
