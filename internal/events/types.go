package events

// Event type constants for kelindar/event.
const (
	TypeTranscodeStarted uint32 = iota + 1
	TypeStateChanged
	TypeStreamLinked
	TypeStreamIgnored
	TypePipelineWarning
	TypeSegmentWritten
	TypeTranscodeFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TranscodeStartedEvent is published once the graph was built.
type TranscodeStartedEvent struct {
	RunID     string `json:"run_id" example:"4f1c2a9e-8a8b-4c43-9d0e-52f1b1f2a001" doc:"Run identifier"`
	Variant   string `json:"variant" example:"v720" doc:"Variant name"`
	Input     string `json:"input" example:"/media/movie.mkv" doc:"Input file"`
	OutputDir string `json:"output_dir" example:"/srv/hls/v720" doc:"Variant output directory"`
	Engine    string `json:"engine" example:"ffmpeg" doc:"Processing engine"`
	Encoder   string `json:"encoder" example:"hardware" doc:"Selected encoder variant"`
	Bitrate   uint32 `json:"bitrate" example:"2048" doc:"Effective encoder bitrate"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TranscodeStartedEvent.
func (e TranscodeStartedEvent) Type() uint32 { return TypeTranscodeStarted }

// StateChangedEvent reports a completed graph state transition.
type StateChangedEvent struct {
	RunID     string  `json:"run_id" doc:"Run identifier"`
	Variant   string  `json:"variant" example:"v720" doc:"Variant name"`
	From      string  `json:"from" example:"null" doc:"Previous state"`
	To        string  `json:"to" example:"playing" doc:"New state"`
	Seconds   float64 `json:"seconds" example:"0.012" doc:"Time the transition took"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// StreamLinkedEvent reports a decoder stream routed into its branch.
type StreamLinkedEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Variant   string `json:"variant" example:"v720" doc:"Variant name"`
	StreamID  string `json:"stream_id" example:"src_0" doc:"Decoder stream identifier"`
	Kind      string `json:"kind" example:"video" doc:"Stream kind"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamLinkedEvent.
func (e StreamLinkedEvent) Type() uint32 { return TypeStreamLinked }

// StreamIgnoredEvent reports an additional stream of an already linked kind.
type StreamIgnoredEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Variant   string `json:"variant" example:"v720" doc:"Variant name"`
	StreamID  string `json:"stream_id" example:"src_3" doc:"Decoder stream identifier"`
	Kind      string `json:"kind" example:"audio" doc:"Stream kind"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamIgnoredEvent.
func (e StreamIgnoredEvent) Type() uint32 { return TypeStreamIgnored }

// PipelineWarningEvent carries a non-fatal warning from the engine.
type PipelineWarningEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Variant   string `json:"variant" example:"v720" doc:"Variant name"`
	Source    string `json:"source" example:"ffmpeg" doc:"Emitting stage"`
	Message   string `json:"message" doc:"Warning text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineWarningEvent.
func (e PipelineWarningEvent) Type() uint32 { return TypePipelineWarning }

// SegmentWrittenEvent reports a finished segment or a playlist rewrite.
type SegmentWrittenEvent struct {
	Variant   string `json:"variant" example:"v720" doc:"Variant name"`
	Path      string `json:"path" example:"/srv/hls/v720/segment_03.ts" doc:"File path"`
	Size      int64  `json:"size" example:"1048576" doc:"File size in bytes"`
	Playlist  bool   `json:"playlist" doc:"Whether the file is the playlist"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SegmentWrittenEvent.
func (e SegmentWrittenEvent) Type() uint32 { return TypeSegmentWritten }

// TranscodeFinishedEvent is published after the graph returned to Null.
type TranscodeFinishedEvent struct {
	RunID          string  `json:"run_id" doc:"Run identifier"`
	Variant        string  `json:"variant" example:"v720" doc:"Variant name"`
	Success        bool    `json:"success" doc:"Whether the run reached end of stream"`
	Error          string  `json:"error,omitempty" doc:"Failure message"`
	Segments       int     `json:"segments" example:"24" doc:"Segments written"`
	ElapsedSeconds float64 `json:"elapsed_seconds" example:"12.5" doc:"Total run time"`
	Timestamp      string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TranscodeFinishedEvent.
func (e TranscodeFinishedEvent) Type() uint32 { return TypeTranscodeFinished }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"pipeline" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
