package ffmpeg

import "time"

// Params describes one file-to-HLS transcode for a single variant.
// Zero values mean "leave the ffmpeg default in place".
type Params struct {
	// Input
	Input     string
	BlockSize int
	Options   []OptionType

	// Streams; nil when the input has no stream of that kind linked
	Video *VideoParams
	Audio *AudioParams

	Mux MuxParams
	HLS HLSParams

	// LogLevel passed as level+<LogLevel>; defaults to info
	LogLevel string
}

// VideoParams carries the scaled output size and the encoder settings.
type VideoParams struct {
	StreamIndex int
	Width       int
	Height      int

	Encoder     string // h264_nvenc, libx264
	Hardware    bool
	Profile     string
	Bitrate     uint32 // kbit/s
	RateControl string
	Preset      string
	Tune        string
	GOP         int32 // -1 leaves the keyframe interval to the encoder
	BFrames     uint32
	Threads     uint32
}

// AudioParams carries the audio branch settings.
type AudioParams struct {
	StreamIndex int
	Codec       string
	Bitrate     int // bit/s
	SampleRate  int
}

// MuxParams maps the MPEG-TS muxer settings.
type MuxParams struct {
	PATPeriod time.Duration
	PCRPeriod time.Duration
}

// HLSParams describes the segmenter output.
type HLSParams struct {
	SegmentPattern string
	Playlist       string
	TargetDuration time.Duration
	ListSize       uint
	MaxFiles       uint
	// PlaylistType is passed to -hls_playlist_type when set (event, vod).
	PlaylistType   string
}
