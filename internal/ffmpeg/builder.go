package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Base returns the flags every invocation starts with.
func Base(logLevel string) []string {
	if logLevel == "" {
		logLevel = "info"
	}
	return []string{"-hide_banner", "-nostats", "-nostdin", "-y", "-loglevel", "level+" + logLevel}
}

// BuildArgs builds the ffmpeg argument list for p.
func BuildArgs(p *Params) []string {
	args := Base(p.LogLevel)

	args = ApplyOptions(p.Options, args)
	if p.BlockSize > 0 {
		args = append(args, "-blocksize", strconv.Itoa(p.BlockSize))
	}
	args = append(args, "-i", p.Input)

	if v := p.Video; v != nil {
		args = append(args, "-map", fmt.Sprintf("0:%d", v.StreamIndex))
	}
	if a := p.Audio; a != nil {
		args = append(args, "-map", fmt.Sprintf("0:%d", a.StreamIndex))
	}

	if v := p.Video; v != nil {
		args = appendVideo(args, v)
	}
	if a := p.Audio; a != nil {
		args = appendAudio(args, a)
	}

	return appendHLS(args, p.Mux, p.HLS)
}

// BuildCommand renders BuildArgs as a single line for logs.
func BuildCommand(binary string, p *Params) string {
	var cmd strings.Builder
	cmd.WriteString(binary)
	for _, arg := range BuildArgs(p) {
		cmd.WriteByte(' ')
		if strings.ContainsAny(arg, " \t\"'") {
			cmd.WriteString(strconv.Quote(arg))
		} else {
			cmd.WriteString(arg)
		}
	}
	return cmd.String()
}

func appendVideo(args []string, v *VideoParams) []string {
	if v.Width > 0 && v.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", v.Width, v.Height))
	}
	args = append(args, "-c:v", v.Encoder)

	if v.Hardware {
		if v.Profile != "" {
			args = append(args, "-profile:v", nvencProfile(v.Profile))
		}
		if preset := nvencToken(v.Preset); preset != "" && preset != "default" {
			args = append(args, "-preset", preset)
		}
		if rc := nvencToken(v.RateControl); rc != "" && rc != "default" {
			args = append(args, "-rc", rc)
		}
		args = appendBitrate(args, v.Bitrate)
	} else {
		if v.Profile != "" {
			args = append(args, "-profile:v", v.Profile)
		}
		if v.Preset != "" {
			args = append(args, "-preset", v.Preset)
		}
		if v.Tune != "" {
			args = append(args, "-tune", v.Tune)
		}
		if v.Threads > 0 {
			args = append(args, "-threads", strconv.FormatUint(uint64(v.Threads), 10))
		}
		args = appendSoftwareRateControl(args, v)
	}

	if v.GOP >= 0 {
		args = append(args, "-g", strconv.Itoa(int(v.GOP)))
	}
	return append(args, "-bf", strconv.FormatUint(uint64(v.BFrames), 10))
}

func appendBitrate(args []string, kbps uint32) []string {
	if kbps == 0 {
		return args
	}
	return append(args, "-b:v", fmt.Sprintf("%dk", kbps))
}

// appendSoftwareRateControl maps the x264 pass modes onto libx264 flags.
func appendSoftwareRateControl(args []string, v *VideoParams) []string {
	switch v.RateControl {
	case "quant":
		return append(args, "-qp", "21")
	case "qual":
		return append(args, "-crf", "21")
	case "cbr", "":
		args = appendBitrate(args, v.Bitrate)
		if v.Bitrate > 0 {
			rate := fmt.Sprintf("%dk", v.Bitrate)
			args = append(args,
				"-minrate", rate,
				"-maxrate", rate,
				"-bufsize", fmt.Sprintf("%dk", 2*v.Bitrate),
				"-x264-params", "nal-hrd=cbr")
		}
		return args
	default:
		return appendBitrate(args, v.Bitrate)
	}
}

// nvencToken converts element-style tokens such as low-latency-hq or
// cbr-ld-hq to the spelling the ffmpeg nvenc wrapper accepts.
func nvencToken(s string) string {
	switch s {
	case "low-latency":
		return "ll"
	case "low-latency-hq":
		return "llhq"
	case "low-latency-hp":
		return "llhp"
	case "lossless-hp":
		return "losslesshp"
	}
	return strings.ReplaceAll(s, "-", "_")
}

func nvencProfile(profile string) string {
	switch profile {
	case "high-4:4:4":
		return "high444p"
	case "constrained-baseline":
		return "baseline"
	}
	return profile
}

func appendAudio(args []string, a *AudioParams) []string {
	codec := a.Codec
	if codec == "" {
		codec = "aac"
	}
	args = append(args, "-c:a", codec)
	if a.Bitrate > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", a.Bitrate/1000))
	}
	if a.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(a.SampleRate))
	}
	return args
}

func appendHLS(args []string, m MuxParams, h HLSParams) []string {
	target := h.TargetDuration
	if target <= 0 {
		target = 5 * time.Second
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", formatSeconds(target),
		"-hls_list_size", strconv.FormatUint(uint64(h.ListSize), 10),
		"-hls_segment_type", "mpegts",
	)
	if h.MaxFiles > 0 {
		args = append(args,
			"-hls_flags", "delete_segments",
			"-hls_delete_threshold", strconv.FormatUint(uint64(h.MaxFiles), 10))
	}
	if h.PlaylistType != "" {
		args = append(args, "-hls_playlist_type", h.PlaylistType)
	}

	var ts []string
	if m.PATPeriod > 0 {
		ts = append(ts, "pat_period="+formatSeconds(m.PATPeriod))
	}
	if m.PCRPeriod > 0 {
		ts = append(ts, "pcr_period="+strconv.FormatInt(m.PCRPeriod.Milliseconds(), 10))
	}
	if len(ts) > 0 {
		args = append(args, "-hls_segment_options", strings.Join(ts, ":"))
	}

	if h.SegmentPattern != "" {
		args = append(args, "-hls_segment_filename", h.SegmentPattern)
	}
	return append(args, h.Playlist)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// TestEncodeArgs returns a short synthetic encode used to check that
// encoder works on this host.
func TestEncodeArgs(encoder string, frames int) []string {
	args := Base("error")
	args = append(args,
		"-f", "lavfi", "-i", "testsrc2=size=1280x720:rate=30",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", encoder,
		"-f", "null", "-")
	return args
}
