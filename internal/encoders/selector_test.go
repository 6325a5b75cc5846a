package encoders

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelectHardwareDefaults(t *testing.T) {
	got := Select(true, 1_000_000)
	want := Config{
		Variant:     Hardware,
		Bitrate:     1_000_000,
		BFrames:     0,
		GOPSize:     75,
		Preset:      "hp",
		RateControl: "cbr",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select(true) mismatch (-want +got):\n%s", diff)
	}
	if len(got.AllowedProfiles()) != 5 {
		t.Errorf("AllowedProfiles() = %v, want 5 entries", got.AllowedProfiles())
	}
}

func TestSelectSoftwareDefaults(t *testing.T) {
	got := Select(false, 3_000_000)
	if got.Variant != Software {
		t.Fatalf("Variant = %v, want software", got.Variant)
	}
	if got.Bitrate != 2048 {
		t.Errorf("Bitrate = %d, want 2048", got.Bitrate)
	}
	if got.Preset != "superfast" || got.Tune != "zerolatency" {
		t.Errorf("Preset/Tune = %q/%q, want superfast/zerolatency", got.Preset, got.Tune)
	}
	if got.GOPSize != 30 {
		t.Errorf("GOPSize = %d, want 30", got.GOPSize)
	}
	if got.Threads != uint32(runtime.NumCPU()) {
		t.Errorf("Threads = %d, want %d", got.Threads, runtime.NumCPU())
	}
	if len(got.AllowedProfiles()) != 0 {
		t.Errorf("AllowedProfiles() = %v, want empty", got.AllowedProfiles())
	}
}

func TestSoftwareAcceptsAnyProfile(t *testing.T) {
	cfg := Select(false, 1_000_000)
	for _, p := range []string{"high", "baseline", "made-up"} {
		got, err := cfg.WithProfile(p)
		if err != nil {
			t.Fatalf("WithProfile(%q) error = %v", p, err)
		}
		if got.Profile != p {
			t.Errorf("Profile = %q, want %q", got.Profile, p)
		}
	}
}

func TestHardwareRejectsUnknownProfile(t *testing.T) {
	cfg := Select(true, 1_000_000)
	got, err := cfg.WithProfile("high-10")
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) {
		t.Fatalf("WithProfile(high-10) error = %v, want *InvalidParameterError", err)
	}
	if got.Profile != "" {
		t.Errorf("Profile changed to %q on error", got.Profile)
	}
}

func TestWithBitrateAlwaysClamps(t *testing.T) {
	cfg := Select(true, 0).WithBitrate(3_000_000)
	if cfg.Bitrate != 2048 {
		t.Errorf("Bitrate = %d, want 2048", cfg.Bitrate)
	}
	cfg = cfg.WithBitrate(500_000)
	if cfg.Bitrate != 500_000 {
		t.Errorf("Bitrate = %d, want 500000", cfg.Bitrate)
	}
}

func TestSelectorOverrides(t *testing.T) {
	bframes := uint32(9)
	gop := int32(-20)

	tests := []struct {
		name       string
		accelerate bool
		overrides  Overrides
		wantErr    bool
		check      func(t *testing.T, cfg Config)
	}{
		{
			name:       "clamped numeric overrides",
			accelerate: true,
			overrides:  Overrides{BFrames: &bframes, GOPSize: &gop},
			check: func(t *testing.T, cfg Config) {
				if cfg.BFrames != 4 || cfg.GOPSize != -1 {
					t.Errorf("BFrames/GOPSize = %d/%d, want 4/-1", cfg.BFrames, cfg.GOPSize)
				}
			},
		},
		{
			name:       "hardware preset and rate control",
			accelerate: true,
			overrides:  Overrides{Preset: "hq", RateControl: "vbr", Profile: "main"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Preset != "hq" || cfg.RateControl != "vbr" || cfg.Profile != "main" {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name:       "software rejects hardware preset",
			accelerate: false,
			overrides:  Overrides{Preset: "hp"},
			wantErr:    true,
		},
		{
			name:       "hardware rejects unknown rate control",
			accelerate: true,
			overrides:  Overrides{RateControl: "crf"},
			wantErr:    true,
		},
	}

	s := NewSelector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := s.Select(tt.accelerate, 1_000_000, tt.overrides)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSelectorWithRecordedFailure(t *testing.T) {
	store := NewResultsStore(filepath.Join(t.TempDir(), "validation.toml"))
	if err := store.Save(&ValidationResults{Failed: []string{"h264_nvenc"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cfg, err := NewSelector(store).Select(true, 1_000_000, Overrides{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if cfg.Variant != Hardware {
		t.Errorf("Variant = %v, want hardware even after a recorded failure", cfg.Variant)
	}
}

func TestVariantNames(t *testing.T) {
	if FFmpegEncoder(Hardware) != "h264_nvenc" || FFmpegEncoder(Software) != "libx264" {
		t.Error("unexpected ffmpeg encoder names")
	}
	if GstFactory(Hardware) != "nvh264enc" || GstFactory(Software) != "x264enc" {
		t.Error("unexpected gstreamer factory names")
	}
}
