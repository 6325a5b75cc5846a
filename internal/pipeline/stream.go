package pipeline

import "strings"

// StreamKind classifies a discovered stream.
type StreamKind int

const (
	Unrecognized StreamKind = iota
	Video
	Audio
)

func (k StreamKind) String() string {
	switch k {
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return "unrecognized"
	}
}

// Stream is an output the decoder exposed at runtime.
type Stream struct {
	// ID identifies the stream within the engine, e.g. "src_0".
	ID string
	// Index is the stream's position in the input container.
	Index int
	// MediaType is the declared media type, e.g. "video/x-raw".
	MediaType string
	// Ref is the engine's own handle for the stream output.
	Ref any
}

// Kind classifies s by its media type.
func (s Stream) Kind() StreamKind {
	return Classify(s.MediaType)
}

// Classify maps a media type to a StreamKind by its top-level type.
func Classify(mediaType string) StreamKind {
	top, _, _ := strings.Cut(strings.TrimSpace(mediaType), "/")
	switch strings.ToLower(top) {
	case "video":
		return Video
	case "audio":
		return Audio
	default:
		return Unrecognized
	}
}
