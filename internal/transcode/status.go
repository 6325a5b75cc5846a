package transcode

import (
	"slices"
	"time"
)

// Phase is the coarse progress of a run.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseBuilding Phase = "building"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
	PhaseFailed   Phase = "failed"
)

// Status is a point-in-time view of the current or last run.
type Status struct {
	RunID         string    `json:"run_id,omitempty" doc:"Run identifier"`
	Phase         Phase     `json:"phase" example:"running" doc:"Run phase"`
	State         string    `json:"state" example:"playing" doc:"Pipeline state"`
	Variant       string    `json:"variant,omitempty" example:"v720" doc:"Variant name"`
	Input         string    `json:"input,omitempty" doc:"Input file"`
	OutputDir     string    `json:"output_dir,omitempty" doc:"Variant output directory"`
	Engine        string    `json:"engine,omitempty" example:"ffmpeg" doc:"Processing engine"`
	Encoder       string    `json:"encoder,omitempty" example:"hardware" doc:"Selected encoder variant"`
	Bitrate       uint32    `json:"bitrate,omitempty" example:"2048" doc:"Effective encoder bitrate"`
	LinkedStreams []string  `json:"linked_streams,omitempty" doc:"Streams routed into a branch"`
	Segments      int       `json:"segments" doc:"Segments written"`
	Error         string    `json:"error,omitempty" doc:"Failure message"`
	StartedAt     time.Time `json:"started_at,omitzero" doc:"Run start"`
	FinishedAt    time.Time `json:"finished_at,omitzero" doc:"Run end"`
}

func (s Status) clone() Status {
	s.LinkedStreams = slices.Clone(s.LinkedStreams)
	return s
}
