package main

import (
	"time"

	"github.com/smazurov/hlsvariant/internal/encoders"
	enginepkg "github.com/smazurov/hlsvariant/internal/engine/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/pipeline"
)

func newFFmpegEngine(opts *Options) pipeline.Engine {
	return enginepkg.New(enginepkg.Config{
		FFmpegPath:      opts.FFmpegPath,
		FFprobePath:     opts.FFprobePath,
		GracefulTimeout: 5 * time.Second,
		Catalog:         encoders.NewCatalog(opts.FFmpegPath),
	})
}
