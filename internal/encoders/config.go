package encoders

import (
	"runtime"
	"slices"
)

// Variant selects the H.264 encoder implementation.
type Variant int

const (
	// Hardware is the NVIDIA NVENC encoder.
	Hardware Variant = iota
	// Software is the x264 encoder.
	Software
)

func (v Variant) String() string {
	switch v {
	case Hardware:
		return "hardware"
	case Software:
		return "software"
	default:
		return "unknown"
	}
}

// IsHardware reports whether the variant needs a GPU.
func (v Variant) IsHardware() bool {
	return v == Hardware
}

var (
	hardwareProfiles = []string{"main", "high", "high-4:4:4", "baseline", "constrained-baseline"}
	hardwarePresets  = []string{"default", "hp", "hq", "low-latency", "low-latency-hq", "low-latency-hp", "lossless", "lossless-hp"}
	hardwareRC       = []string{"default", "constqp", "cbr", "vbr", "vbr-minqp", "cbr-ld-hq", "cbr-hq", "vbr-hq"}

	softwarePresets = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow", "placebo"}
	softwareRC      = []string{"cbr", "quant", "qual", "pass1", "pass2", "pass3"}
)

// Config is a fully populated encoder configuration bound to one Variant.
// Values stored here have already been clamped and validated.
type Config struct {
	Variant     Variant `json:"variant"`
	Bitrate     uint32  `json:"bitrate"`
	BFrames     uint32  `json:"bframes"`
	GOPSize     int32   `json:"gop_size"`
	Profile     string  `json:"profile,omitempty"`
	RateControl string  `json:"rate_control"`
	Preset      string  `json:"preset"`
	Tune        string  `json:"tune,omitempty"`
	Threads     uint32  `json:"threads,omitempty"`
}

// Defaults returns the default configuration for a variant.
func Defaults(v Variant) Config {
	if v == Hardware {
		return Config{
			Variant:     Hardware,
			Bitrate:     1000,
			BFrames:     0,
			GOPSize:     75,
			Preset:      "hp",
			RateControl: "cbr",
		}
	}
	return Config{
		Variant:     Software,
		Bitrate:     2048,
		GOPSize:     30,
		Preset:      "superfast",
		Tune:        "zerolatency",
		RateControl: "cbr",
		Threads:     uint32(runtime.NumCPU()),
	}
}

// AllowedProfiles returns the profiles the variant accepts. Software returns
// an empty set which leaves the profile unconstrained.
func (c Config) AllowedProfiles() []string {
	if c.Variant == Hardware {
		return slices.Clone(hardwareProfiles)
	}
	return nil
}

// AllowedPresets returns the preset tokens the variant accepts.
func (c Config) AllowedPresets() []string {
	if c.Variant == Hardware {
		return slices.Clone(hardwarePresets)
	}
	return slices.Clone(softwarePresets)
}

// AllowedRateControls returns the rate-control tokens the variant accepts.
func (c Config) AllowedRateControls() []string {
	if c.Variant == Hardware {
		return slices.Clone(hardwareRC)
	}
	return slices.Clone(softwareRC)
}

// WithBitrate returns a copy with the clamped bitrate.
func (c Config) WithBitrate(bitrate uint32) Config {
	c.Bitrate = ClampBitrate(bitrate)
	return c
}

// WithBFrames returns a copy with the clamped B-frame count.
func (c Config) WithBFrames(bframes uint32) Config {
	c.BFrames = ClampBFrames(bframes)
	return c
}

// WithGOPSize returns a copy with the clamped GOP size.
func (c Config) WithGOPSize(gop int32) Config {
	c.GOPSize = ClampGOPSize(gop)
	return c
}

// WithProfile returns a copy using profile, or an error if the variant
// does not allow it.
func (c Config) WithProfile(profile string) (Config, error) {
	if err := ValidateProfile(profile, c.AllowedProfiles()); err != nil {
		return c, err
	}
	c.Profile = profile
	return c, nil
}

// WithPreset returns a copy using preset.
func (c Config) WithPreset(preset string) (Config, error) {
	if err := ValidatePreset(preset, c.AllowedPresets()); err != nil {
		return c, err
	}
	c.Preset = preset
	return c, nil
}

// WithRateControl returns a copy using the rate-control mode.
func (c Config) WithRateControl(mode string) (Config, error) {
	if err := ValidateRateControl(mode, c.AllowedRateControls()); err != nil {
		return c, err
	}
	c.RateControl = mode
	return c, nil
}
