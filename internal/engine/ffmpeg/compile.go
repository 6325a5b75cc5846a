package ffmpeg

import (
	"fmt"

	"github.com/smazurov/hlsvariant/internal/encoders"
	ff "github.com/smazurov/hlsvariant/internal/ffmpeg"
	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/probe"
)

type probeStream = probe.Stream

func (s *session) source() (pipeline.SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if cfg, ok := n.Config.(pipeline.SourceConfig); ok {
			return cfg, nil
		}
	}
	return pipeline.SourceConfig{}, fmt.Errorf("graph %s has no source stage", s.name)
}

// compile turns the created stages and the links made so far into ffmpeg
// parameters. Only branches fed by a linked stream are included.
func (s *session) compile(src pipeline.SourceConfig) (*ff.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &ff.Params{
		Input:     src.Location,
		BlockSize: src.BlockSize,
		Options:   s.engine.cfg.Options,
		LogLevel:  s.engine.cfg.LogLevel,
	}

	var muxer *pipeline.Node
	for queue, stream := range s.streams {
		chain, err := s.chainLocked(queue)
		if err != nil {
			return nil, err
		}
		muxer = chain[len(chain)-1]

		switch stream.Kind() {
		case pipeline.Video:
			p.Video = videoParams(stream, chain)
		case pipeline.Audio:
			p.Audio = audioParams(stream, chain)
		}
	}
	if muxer == nil {
		return nil, errNothingLinked
	}

	mux, _ := muxer.Config.(pipeline.MuxerConfig)
	p.Mux = ff.MuxParams{PATPeriod: mux.PATInterval, PCRPeriod: mux.PCRInterval}

	next, ok := s.links[muxer.Name]
	if !ok {
		return nil, fmt.Errorf("%s is not linked to a segmenter", muxer.Name)
	}
	seg, ok := s.nodes[next].Config.(pipeline.SegmenterConfig)
	if !ok {
		return nil, fmt.Errorf("%s is linked to %s, not a segmenter", muxer.Name, next)
	}
	p.HLS = ff.HLSParams{
		SegmentPattern: seg.Location,
		Playlist:       seg.PlaylistLocation,
		TargetDuration: seg.TargetDuration,
		ListSize:       seg.PlaylistLength,
		MaxFiles:       seg.MaxFiles,
		PlaylistType:   string(seg.PlaylistType),
	}
	return p, nil
}

// chainLocked follows links from start until it reaches the muxer.
func (s *session) chainLocked(start string) ([]*pipeline.Node, error) {
	var chain []*pipeline.Node
	name := start
	for range len(s.nodes) {
		node := s.nodes[name]
		chain = append(chain, node)
		if node.Kind() == pipeline.KindMuxer {
			return chain, nil
		}
		next, ok := s.links[name]
		if !ok {
			return nil, fmt.Errorf("branch from %s ends at %s before the muxer", start, name)
		}
		name = next
	}
	return nil, fmt.Errorf("branch from %s does not reach the muxer", start)
}

func videoParams(stream pipeline.Stream, chain []*pipeline.Node) *ff.VideoParams {
	v := &ff.VideoParams{StreamIndex: stream.Index, GOP: -1}
	var filterProfile string
	for _, n := range chain {
		switch cfg := n.Config.(type) {
		case pipeline.FormatFilterConfig:
			v.Width, v.Height = cfg.Width, cfg.Height
			filterProfile = cfg.Profile
		case pipeline.VideoEncoderConfig:
			v.Encoder = encoders.FFmpegEncoder(cfg.Variant)
			v.Hardware = cfg.Variant.IsHardware()
			v.Profile = cfg.Profile
			v.Bitrate = cfg.Bitrate
			v.RateControl = cfg.RateControl
			v.Preset = cfg.Preset
			v.Tune = cfg.Tune
			v.GOP = cfg.GOPSize
			v.BFrames = cfg.BFrames
			v.Threads = cfg.Threads
		}
	}
	if v.Profile == "" {
		v.Profile = filterProfile
	}
	return v
}

func audioParams(stream pipeline.Stream, chain []*pipeline.Node) *ff.AudioParams {
	a := &ff.AudioParams{StreamIndex: stream.Index}
	for _, n := range chain {
		switch cfg := n.Config.(type) {
		case pipeline.AudioEncoderConfig:
			a.Codec = cfg.Codec
			a.Bitrate = cfg.Bitrate
		case pipeline.ResamplerConfig:
			a.SampleRate = cfg.SampleRate
		}
	}
	return a
}
