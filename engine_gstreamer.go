//go:build gstreamer

package main

import (
	"fmt"

	"github.com/smazurov/hlsvariant/internal/engine/gst"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

func newEngine(opts *Options) (pipeline.Engine, error) {
	switch opts.Engine {
	case "", "ffmpeg":
		return newFFmpegEngine(opts), nil
	case "gstreamer":
		return gst.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
}
