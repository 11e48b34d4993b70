// Package sender - one audio/video pair to a receiver session over RTP,
// with sender reports on the shared clock and restart on failure.
package sender

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/appsink"
	"github.com/streaminsync/streaminsync/pkg/core"
	"github.com/streaminsync/streaminsync/pkg/engine"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/streaminsync/streaminsync/pkg/rtpbin"
)

var ErrNotReady = errors.New("sender: pipeline not ready")

type Options struct {
	Clock engine.ClockConfig

	RestartTimeout time.Duration
	RestartOnEOS   bool
	RestartOnError bool
}

func DefaultOptions() Options {
	return Options{
		RestartTimeout: 2 * time.Second,
		RestartOnEOS:   true,
		RestartOnError: true,
	}
}

type Sender struct {
	cfg     Config
	engine  *engine.Engine
	factory graph.Factory
	log     zerolog.Logger
}

func NewSender(cfg Config, opts Options, factory graph.Factory, log zerolog.Logger) *Sender {
	s := &Sender{cfg: cfg, factory: factory, log: log}
	s.engine = engine.New(engine.Config{
		Name:           "sender",
		Clock:          opts.Clock,
		RestartTimeout: opts.RestartTimeout,
		RestartOnEOS:   opts.RestartOnEOS,
		RestartOnError: opts.RestartOnError,
	}, s.build, log)
	return s
}

func (s *Sender) build() (graph.Pipeline, error) {
	return NewPipeline(s.factory, &s.cfg)
}

func (s *Sender) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	return s.engine.Start()
}

func (s *Sender) Stop() {
	s.engine.Stop()
}

func (s *Sender) Engine() *engine.Engine {
	return s.engine
}

func (s *Sender) Config() Config {
	return s.cfg
}

// PushVideo sends one Annex-B access unit, graph.ClockTimeNone pts
// takes the running time. Returns graph.ErrFlushing while restarting.
func (s *Sender) PushVideo(au []byte, pts time.Duration) error {
	buf := graph.NewBuffer(au)
	buf.PTS = pts
	if !h264.IsKeyframe(h264.SplitNALU(au)) {
		buf.Flags |= graph.FlagDeltaUnit
	}
	return s.push(VideoSrcName, buf)
}

// PushAudio sends one Opus packet
func (s *Sender) PushAudio(packet []byte, pts time.Duration) error {
	buf := graph.NewBuffer(packet)
	buf.PTS = pts
	if header := opus.UnmarshalHeader(packet); header != nil {
		buf.Duration = header.Duration()
	}
	return s.push(AudioSrcName, buf)
}

// EndOfStream - restarts the pipeline when the policy says so
func (s *Sender) EndOfStream() error {
	src, err := s.src(VideoSrcName)
	if err != nil {
		return err
	}
	src.EndOfStream()
	return nil
}

// Stats - RTP session statistics of the id, false while not playing
func (s *Sender) Stats(id uint32) (rtpbin.SessionStats, bool) {
	if p := s.engine.Pipeline(); p != nil {
		if b, ok := p.ByName(MuxName).(*rtpbin.RTPBin); ok {
			return b.Stats(id)
		}
	}
	return rtpbin.SessionStats{}, false
}

func (s *Sender) push(name string, buf *graph.Buffer) error {
	src, err := s.src(name)
	if err != nil {
		return err
	}
	return src.Push(buf)
}

func (s *Sender) src(name string) (*appsink.Src, error) {
	p := s.engine.Pipeline()
	if p == nil {
		return nil, ErrNotReady
	}
	src, ok := p.ByName(name).(*appsink.Src)
	if !ok {
		return nil, fmt.Errorf("%w: no %s", ErrNotReady, name)
	}
	return src, nil
}

// SDP - what the receiver needs to add the session, address is the sender host
func (s *Sender) SDP(address string) ([]byte, error) {
	cfg := s.cfg.Session()
	medias := []*core.Media{
		{
			Kind: core.KindVideo, Direction: core.DirectionSendonly,
			ID: strconv.Itoa(int(cfg.VideoID)), Key: cfg.Key, Bitrate: s.cfg.Bitrate,
			Port: cfg.RTPPort(receiver.KindVideo), RTCPPort: cfg.RTCPPort(receiver.KindVideo),
			Codecs: []*core.Codec{{
				Name: core.CodecH264, ClockRate: h264.ClockRate, PayloadType: h264.PayloadType,
				FmtpLine: "packetization-mode=1",
			}},
		},
		{
			Kind: core.KindAudio, Direction: core.DirectionSendonly,
			ID: strconv.Itoa(int(cfg.AudioID)), Key: cfg.Key,
			Port: cfg.RTPPort(receiver.KindAudio), RTCPPort: cfg.RTCPPort(receiver.KindAudio),
			Codecs: []*core.Codec{{
				Name: core.CodecOpus, ClockRate: opus.ClockRate, Channels: 2, PayloadType: opus.PayloadType,
			}},
		},
	}
	return core.MarshalSDP("streaminsync", address, medias)
}
