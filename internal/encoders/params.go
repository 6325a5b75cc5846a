package encoders

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Bitrate limits applied by ClampBitrate.
const (
	MaxBitrate       uint32 = 2_048_000
	KbpsThreshold    uint32 = 1_000_000
	MaxBFrames       uint32 = 4
	MinGOPSize       int32  = -1
	MaxGOPSize       int32  = math.MaxInt32
	bitsPerKilobit   uint32 = 1000
	unlimitedProfile        = "any"
)

// InvalidParameterError reports an encoder parameter outside the variant's allowed set.
type InvalidParameterError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidParameterError) Error() string {
	allowed := unlimitedProfile
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("invalid %s %q (allowed: %s)", e.Field, e.Value, allowed)
}

// ClampBitrate caps the requested bitrate at MaxBitrate. Values above
// KbpsThreshold are treated as bits per second and converted to kbps.
func ClampBitrate(requested uint32) uint32 {
	result := min(requested, MaxBitrate)
	if result > KbpsThreshold {
		result /= bitsPerKilobit
	}
	return result
}

// ClampBFrames caps the number of B-frames at MaxBFrames.
func ClampBFrames(requested uint32) uint32 {
	return min(requested, MaxBFrames)
}

// ClampGOPSize keeps the GOP size within [MinGOPSize, MaxGOPSize].
// -1 lets the engine choose.
func ClampGOPSize(requested int32) int32 {
	return max(requested, MinGOPSize)
}

// ValidateProfile checks requested against allowed. An empty allowed set
// leaves the profile unconstrained.
func ValidateProfile(requested string, allowed []string) error {
	return validateToken("profile", requested, allowed)
}

// ValidatePreset checks a preset token against the variant's preset set.
func ValidatePreset(requested string, allowed []string) error {
	return validateToken("preset", requested, allowed)
}

// ValidateRateControl checks a rate-control token against the variant's set.
func ValidateRateControl(requested string, allowed []string) error {
	return validateToken("rate_control", requested, allowed)
}

func validateToken(field, requested string, allowed []string) error {
	if len(allowed) == 0 || slices.Contains(allowed, requested) {
		return nil
	}
	return &InvalidParameterError{
		Field:   field,
		Value:   requested,
		Allowed: slices.Clone(allowed),
	}
}
