package models

import (
	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/logging"
	"github.com/smazurov/hlsvariant/internal/metrics"
	"github.com/smazurov/hlsvariant/internal/transcode"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Transcode status models
type StatusData struct {
	Run     transcode.Status        `json:"run" doc:"Current or last transcode run"`
	Metrics *metrics.VariantMetrics `json:"metrics,omitempty" doc:"Counters for the run's variant"`
}

type StatusResponse struct {
	Body StatusData
}

// Encoder validation models
type EncodersData struct {
	Validated bool                        `json:"validated" doc:"Whether validation results were recorded"`
	Results   *encoders.ValidationResults `json:"results,omitempty" doc:"Last validation results"`
}

type EncodersResponse struct {
	Body EncodersData
}

// Log history models
type LogsInput struct {
	Module string `query:"module" example:"pipeline" doc:"Only return entries from this module"`
	Limit  int    `query:"limit" minimum:"0" example:"100" doc:"Return at most this many of the newest entries"`
}

type LogsData struct {
	Entries []logging.Entry `json:"entries" doc:"Recorded log entries, oldest first"`
	Count   int             `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Options models for FFmpeg configuration
type OptionsData struct {
	Options []ffmpeg.OptionInfo `json:"options" doc:"All available FFmpeg input options with metadata"`
}

type OptionsResponse struct {
	Body OptionsData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}
