// Package receiver - many independent audio/video sessions on one shared,
// clock synced pipeline. Sessions come and go while the pipeline plays.
package receiver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/core"
	"github.com/streaminsync/streaminsync/pkg/engine"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
)

const DefaultLatency = 10 * time.Second

type Options struct {
	Latency time.Duration
	Clock   engine.ClockConfig

	RestartTimeout time.Duration
	RestartOnEOS   bool
	RestartOnError bool
}

func DefaultOptions() Options {
	return Options{
		Latency:        DefaultLatency,
		RestartTimeout: 2 * time.Second,
		RestartOnEOS:   true,
	}
}

type Receiver struct {
	*Manager

	engine  *engine.Engine
	factory graph.Factory
	latency time.Duration
	log     zerolog.Logger
}

func NewReceiver(opts Options, factory graph.Factory, log zerolog.Logger) *Receiver {
	r := &Receiver{factory: factory, latency: opts.Latency, log: log}

	r.engine = engine.New(engine.Config{
		Name:           "receiver",
		Latency:        opts.Latency,
		Clock:          opts.Clock,
		RestartTimeout: opts.RestartTimeout,
		RestartOnEOS:   opts.RestartOnEOS,
		RestartOnError: opts.RestartOnError,
	}, r.build, log)

	r.Manager = NewManager(r.engine, factory, log)
	r.engine.OnRestart(r.restore)
	return r
}

// NewPipeline - empty receiver pipeline with a configured multiplexer
func NewPipeline(factory graph.Factory, latency time.Duration) (graph.Pipeline, error) {
	bin, err := factory.Make("rtpbin", MuxName)
	if err != nil {
		return nil, err
	}

	p := base.NewPipeline("receiver")
	if err = p.Add(bin); err != nil {
		return nil, err
	}

	mux := &Mux{bin: bin}
	if err = mux.Configure(latency); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Receiver) build() (graph.Pipeline, error) {
	return NewPipeline(r.factory, r.latency)
}

// restore - sessions do not survive a restart, the new pipeline gets them again
func (r *Receiver) restore(graph.Pipeline) {
	if err := r.Restore(); err != nil {
		r.log.Error().Err(err).Msgf("[receiver] restore")
	}
}

func (r *Receiver) Start() error {
	return r.engine.Start()
}

func (r *Receiver) Stop() {
	r.engine.Stop()
	r.Reset()
}

func (r *Receiver) Engine() *engine.Engine {
	return r.engine
}

// Attach installs host callbacks on the session sinks, nil skips the kind.
// Callbacks are installed again after a pipeline restart.
func (r *Receiver) Attach(s *Session, cfg OutputConfig, onVideo VideoFunc, onAudio AudioFunc) error {
	return r.engine.Mutate(func(graph.Pipeline) error {
		s.output = &output{cfg: cfg, onVideo: onVideo, onAudio: onAudio}
		return s.output.attach(s)
	})
}

// ConfigFromSDP - session config from a sender description,
// RTCP out port is the one after RTCP in
func ConfigFromSDP(data []byte) (cfg Config, err error) {
	address, medias, err := core.UnmarshalSDP(data)
	if err != nil {
		return
	}

	video := core.FindMedia(medias, core.KindVideo)
	audio := core.FindMedia(medias, core.KindAudio)
	if video == nil || audio == nil {
		return cfg, fmt.Errorf("%w: sdp needs video and audio", ErrConfiguration)
	}
	if video.MatchCodec(&core.Codec{Name: core.CodecH264, ClockRate: h264.ClockRate}) == nil {
		return cfg, fmt.Errorf("%w: sdp video is not H264", ErrConfiguration)
	}
	if audio.MatchCodec(&core.Codec{Name: core.CodecOpus, ClockRate: opus.ClockRate}) == nil {
		return cfg, fmt.Errorf("%w: sdp audio is not Opus", ErrConfiguration)
	}

	cfg.Dest = address
	cfg.VideoID, cfg.AudioID = IDsFrom(0)
	if video.ID != "" {
		id, _ := strconv.ParseUint(video.ID, 10, 32)
		cfg.VideoID = uint32(id)
	}
	if audio.ID != "" {
		id, _ := strconv.ParseUint(audio.ID, 10, 32)
		cfg.AudioID = uint32(id)
	} else {
		cfg.AudioID = cfg.VideoID + 1
	}

	cfg.Ports = [6]int{
		video.Port, video.GetRTCPPort(), video.GetRTCPPort() + 1,
		audio.Port, audio.GetRTCPPort(), audio.GetRTCPPort() + 1,
	}

	if video.Key != "" {
		cfg.Key = video.Key
	}
	return
}
