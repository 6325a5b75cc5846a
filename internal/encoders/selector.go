package encoders

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/smazurov/hlsvariant/internal/logging"
)

// Overrides carries caller-supplied encoder options. Zero values keep the
// variant defaults.
type Overrides struct {
	BFrames     *uint32
	GOPSize     *int32
	Profile     string
	Preset      string
	RateControl string
}

// ResultsLoader provides previously recorded encoder validation results.
type ResultsLoader interface {
	Load() (*ValidationResults, error)
}

// Select returns the defaults for the requested variant with bitrate applied.
func Select(accelerate bool, bitrate uint32) Config {
	variant := Software
	if accelerate {
		variant = Hardware
	}
	return Defaults(variant).WithBitrate(bitrate)
}

// Selector picks and validates encoder configurations.
type Selector struct {
	results ResultsLoader
	logger  *slog.Logger
}

// NewSelector creates a Selector. results may be nil.
func NewSelector(results ResultsLoader) *Selector {
	return &Selector{
		results: results,
		logger:  logging.GetLogger("encoders"),
	}
}

// Select builds the encoder configuration for accelerate and bitrate and
// applies overrides. Every parameter is clamped or validated before the
// configuration is returned.
func (s *Selector) Select(accelerate bool, bitrate uint32, o Overrides) (Config, error) {
	cfg := Select(accelerate, bitrate)

	if o.BFrames != nil {
		cfg = cfg.WithBFrames(*o.BFrames)
	}
	if o.GOPSize != nil {
		cfg = cfg.WithGOPSize(*o.GOPSize)
	}

	var err error
	if o.Profile != "" {
		if cfg, err = cfg.WithProfile(o.Profile); err != nil {
			return Config{}, fmt.Errorf("%s encoder: %w", cfg.Variant, err)
		}
	}
	if o.Preset != "" {
		if cfg, err = cfg.WithPreset(o.Preset); err != nil {
			return Config{}, fmt.Errorf("%s encoder: %w", cfg.Variant, err)
		}
	}
	if o.RateControl != "" {
		if cfg, err = cfg.WithRateControl(o.RateControl); err != nil {
			return Config{}, fmt.Errorf("%s encoder: %w", cfg.Variant, err)
		}
	}

	s.checkRecorded(cfg.Variant)

	s.logger.Debug("Selected encoder",
		"variant", cfg.Variant,
		"bitrate", cfg.Bitrate,
		"bframes", cfg.BFrames,
		"gop_size", cfg.GOPSize,
		"preset", cfg.Preset,
		"rate_control", cfg.RateControl)

	return cfg, nil
}

// checkRecorded warns when the last validation run recorded the variant as
// failing. The selection itself is never changed.
func (s *Selector) checkRecorded(v Variant) {
	if s.results == nil {
		return
	}
	results, err := s.results.Load()
	if err != nil || results == nil {
		return
	}
	name := FFmpegEncoder(v)
	if slices.Contains(results.Failed, name) {
		s.logger.Warn("Encoder previously failed validation", "variant", v, "encoder", name, "validated_at", results.Timestamp)
	}
}
