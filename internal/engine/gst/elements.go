//go:build gstreamer

package gst

import (
	"fmt"
	"time"

	"github.com/go-gst/go-gst/gst"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

type configureFunc func(*gst.Element) error

// mpegtsmux intervals are in 90 kHz clock ticks.
func ticks90k(d time.Duration) uint {
	return uint(d * 90 / time.Millisecond)
}

func setProperties(el *gst.Element, props map[string]any) error {
	for name, value := range props {
		if err := el.SetProperty(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// elementFor returns the element factory for a stage and a function that
// applies its configuration.
func elementFor(cfg pipeline.StageConfig) (string, configureFunc) {
	switch c := cfg.(type) {
	case pipeline.SourceConfig:
		return "filesrc", func(el *gst.Element) error {
			return setProperties(el, map[string]any{"location": c.Location, "blocksize": uint(c.BlockSize)})
		}
	case pipeline.DecoderConfig:
		return "decodebin", func(el *gst.Element) error {
			return setProperties(el, map[string]any{"expose-all-streams": c.ExposeAllStreams, "use-buffering": c.UseBuffering})
		}
	case pipeline.QueueConfig:
		return "queue", nil
	case pipeline.ScalerConfig:
		return "videoscale", nil
	case pipeline.FormatFilterConfig:
		return "capsfilter", func(el *gst.Element) error {
			return el.SetProperty("caps", gst.NewCapsFromString(c.Caps()))
		}
	case pipeline.VideoEncoderConfig:
		return encoders.GstFactory(c.Variant), func(el *gst.Element) error {
			return configureEncoder(el, c.Config)
		}
	case pipeline.AudioEncoderConfig:
		return "avenc_aac", func(el *gst.Element) error {
			return el.SetProperty("bitrate", c.Bitrate)
		}
	case pipeline.ParserConfig:
		return c.Codec + "parse", nil
	case pipeline.ConverterConfig:
		return "audioconvert", nil
	case pipeline.ResamplerConfig:
		return "audioresample", nil
	case pipeline.ProbeConfig:
		return "identity", func(el *gst.Element) error {
			return el.SetProperty("silent", c.Silent)
		}
	case pipeline.MuxerConfig:
		return "mpegtsmux", func(el *gst.Element) error {
			return setProperties(el, map[string]any{
				"alignment":    c.Alignment,
				"pat-interval": ticks90k(c.PATInterval),
				"pmt-interval": ticks90k(c.PMTInterval),
				"pcr-interval": ticks90k(c.PCRInterval),
			})
		}
	case pipeline.SegmenterConfig:
		props := map[string]any{
			"location":          c.Location,
			"playlist-location": c.PlaylistLocation,
			"target-duration":   uint(c.TargetDuration / time.Second),
			"playlist-length":   c.PlaylistLength,
			"max-files":         c.MaxFiles,
		}
		if c.PlaylistType == pipeline.PlaylistUnspecified {
			return "hlssink", func(el *gst.Element) error {
				return setProperties(el, props)
			}
		}
		// Only hlssink3 knows playlist-type.
		return "hlssink3", func(el *gst.Element) error {
			if err := setProperties(el, props); err != nil {
				return err
			}
			el.SetArg("playlist-type", string(c.PlaylistType))
			return nil
		}
	}
	return fmt.Sprintf("unknown-%T", cfg), nil
}

func configureEncoder(el *gst.Element, c encoders.Config) error {
	props := map[string]any{
		"bitrate": uint(c.Bitrate),
		"bframes": uint(c.BFrames),
	}
	if c.Variant.IsHardware() {
		props["gop-size"] = int(c.GOPSize)
		if err := setProperties(el, props); err != nil {
			return err
		}
		el.SetArg("preset", c.Preset)
		el.SetArg("rc-mode", c.RateControl)
		return nil
	}

	if c.GOPSize > 0 {
		props["key-int-max"] = uint(c.GOPSize)
	}
	if c.Threads > 0 {
		props["threads"] = uint(c.Threads)
	}
	if err := setProperties(el, props); err != nil {
		return err
	}
	el.SetArg("speed-preset", c.Preset)
	if c.Tune != "" {
		el.SetArg("tune", c.Tune)
	}
	if c.RateControl != "" {
		el.SetArg("pass", c.RateControl)
	}
	return nil
}
