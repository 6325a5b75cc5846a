//go:build !gstreamer

package main

import (
	"fmt"

	"github.com/smazurov/hlsvariant/internal/pipeline"
)

func newEngine(opts *Options) (pipeline.Engine, error) {
	if opts.Engine != "" && opts.Engine != "ffmpeg" {
		return nil, fmt.Errorf("engine %q is not available in this build", opts.Engine)
	}
	return newFFmpegEngine(opts), nil
}
