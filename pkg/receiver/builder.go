package receiver

import (
	"errors"
	"fmt"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
)

// Chain - element factories of a session, tests replace them with fakes
type Chain struct {
	UDPSrc  string
	UDPSink string
	SRTPDec string
	SRTPEnc string

	VideoDepay   string
	VideoParse   string
	VideoDecoder string
	VideoConvert string

	AudioDepay    string
	AudioDecoder  string
	AudioConvert  string
	AudioResample string

	Sink string
}

func DefaultChain() Chain {
	return Chain{
		UDPSrc:  "udpsrc",
		UDPSink: "udpsink",
		SRTPDec: "srtpdec",
		SRTPEnc: "srtpenc",

		VideoDepay:   "rtph264depay",
		VideoParse:   "h264parse",
		VideoDecoder: "h264dec",
		VideoConvert: "videoconvert",

		AudioDepay:    "rtpopusdepay",
		AudioDecoder:  "opusdec",
		AudioConvert:  "audioconvert",
		AudioResample: "audioresample",

		Sink: "appsink",
	}
}

// SinkName - "video_sink_<video_id>" or "audio_sink_<audio_id>"
func SinkName(kind Kind, id uint32) string {
	return fmt.Sprintf("%s_sink_%d", kind, id)
}

// sink tuning, skipped by sinks without these properties
var sinkProps = map[string]any{
	"max-buffers": 32,
	"drop":        true,
}

// stream - nodes and pads of one media kind of a session
type stream struct {
	kind Kind
	id   uint32

	rtpSrc   graph.Element
	rtcpSrc  graph.Element
	rtcpSink graph.Element
	decrypt  graph.Element
	encrypt  graph.Element
	// depayloader first, sink last
	chain []graph.Element

	// request pads of the multiplexer
	rtpPad      graph.Pad
	rtcpPad     graph.Pad
	feedbackPad graph.Pad

	// links between own nodes, as src => sink
	links [][2]graph.Pad
}

// elements - sources first, sinks last
func (s *stream) elements() []graph.Element {
	items := []graph.Element{s.rtpSrc, s.rtcpSrc}
	if s.decrypt != nil {
		items = append(items, s.decrypt)
	}
	items = append(items, s.chain...)
	if s.encrypt != nil {
		items = append(items, s.encrypt)
	}
	return append(items, s.rtcpSink)
}

func (s *stream) sink() graph.Element {
	return s.chain[len(s.chain)-1]
}

// head - sink pad that receives the dynamic multiplexer pad
func (s *stream) head() graph.Pad {
	return s.chain[0].Pad("sink")
}

func (s *stream) link(src graph.Element, srcPad string, sink graph.Element, sinkPad string) error {
	if err := graph.LinkPads(src, srcPad, sink, sinkPad); err != nil {
		return err
	}
	s.links = append(s.links, [2]graph.Pad{src.Pad(srcPad), sink.Pad(sinkPad)})
	return nil
}

// release undoes every link and returns every multiplexer pad
func (s *stream) release(mux *Mux) error {
	var errs []error
	for _, pad := range []graph.Pad{s.rtpPad, s.rtcpPad, s.feedbackPad} {
		if pad == nil {
			continue
		}
		if err := mux.Release(pad); err != nil {
			errs = append(errs, err)
		}
	}
	s.rtpPad, s.rtcpPad, s.feedbackPad = nil, nil, nil

	for i := len(s.links) - 1; i >= 0; i-- {
		src, sink := s.links[i][0], s.links[i][1]
		if src.Peer() == sink {
			_ = src.Unlink(sink)
		}
	}
	s.links = nil

	return errors.Join(errs...)
}

type builder struct {
	factory graph.Factory
	chain   Chain
	mux     *Mux
}

// build makes and links both streams of the session or releases
// everything it made, nothing is added to the pipeline here
func (b *builder) build(cfg *Config) (video, audio *stream, err error) {
	if video, err = b.buildStream(cfg, KindVideo); err != nil {
		return nil, nil, err
	}
	if audio, err = b.buildStream(cfg, KindAudio); err != nil {
		_ = video.release(b.mux)
		return nil, nil, err
	}
	return
}

func (b *builder) buildStream(cfg *Config, kind Kind) (*stream, error) {
	s := &stream{kind: kind, id: cfg.ID(kind)}
	if err := b.makeStream(cfg, s); err != nil {
		return nil, fmt.Errorf("%w: %s %d: %w", ErrConstructionFailed, kind, s.id, err)
	}
	if err := b.linkStream(s); err != nil {
		_ = s.release(b.mux)
		return nil, fmt.Errorf("%w: %s %d: %w", ErrConstructionFailed, kind, s.id, err)
	}
	return s, nil
}

func (b *builder) make(factory string, s *stream, role string, props map[string]any) (graph.Element, error) {
	name := fmt.Sprintf("%s_%s_%d", s.kind, role, s.id)
	el, err := b.factory.Make(factory, name)
	if err != nil {
		return nil, err
	}
	if err = graph.SetProperties(el, props); err != nil {
		return nil, err
	}
	return el, nil
}

func (b *builder) makeStream(cfg *Config, s *stream) (err error) {
	rtpCaps := h264.NewRTPCaps(h264.PayloadType)
	if s.kind == KindAudio {
		rtpCaps = opus.NewRTPCaps(opus.PayloadType)
	}

	if s.rtpSrc, err = b.make(b.chain.UDPSrc, s, "rtp_src", map[string]any{
		"port": cfg.RTPPort(s.kind), "caps": rtpCaps,
	}); err != nil {
		return
	}
	if s.rtcpSrc, err = b.make(b.chain.UDPSrc, s, "rtcp_src", map[string]any{
		"port": cfg.RTCPPort(s.kind),
	}); err != nil {
		return
	}
	if s.rtcpSink, err = b.make(b.chain.UDPSink, s, "rtcp_sink", map[string]any{
		"host": cfg.Dest, "port": cfg.RTCPOutPort(s.kind), "sync": false, "async": false,
	}); err != nil {
		return
	}

	if cfg.Key != "" {
		key := map[string]any{"key": cfg.Key}
		if s.decrypt, err = b.make(b.chain.SRTPDec, s, "srtpdec", key); err != nil {
			return
		}
		if s.encrypt, err = b.make(b.chain.SRTPEnc, s, "srtpenc", key); err != nil {
			return
		}
	}

	var factories [][2]string
	if s.kind == KindVideo {
		factories = [][2]string{
			{b.chain.VideoDepay, "depay"},
			{b.chain.VideoParse, "parse"},
			{b.chain.VideoDecoder, "dec"},
			{b.chain.VideoConvert, "convert"},
		}
	} else {
		factories = [][2]string{
			{b.chain.AudioDepay, "depay"},
			{b.chain.AudioDecoder, "dec"},
			{b.chain.AudioConvert, "convert"},
			{b.chain.AudioResample, "resample"},
		}
	}

	for _, item := range factories {
		el, err := b.make(item[0], s, item[1], nil)
		if err != nil {
			return err
		}
		s.chain = append(s.chain, el)
	}

	sink, err := b.factory.Make(b.chain.Sink, SinkName(s.kind, s.id))
	if err != nil {
		return err
	}
	for name, value := range sinkProps {
		if err = sink.Set(name, value); err != nil && !errors.Is(err, graph.ErrUnknownProperty) {
			return err
		}
	}
	s.chain = append(s.chain, sink)

	return nil
}

func (b *builder) linkStream(s *stream) (err error) {
	// RTP: udpsrc [=> srtpdec] => recv_rtp_sink_<id>
	rtp := s.rtpSrc.Pad("src")
	if s.decrypt != nil {
		if err = s.link(s.rtpSrc, "src", s.decrypt, "rtp_sink"); err != nil {
			return
		}
		rtp = s.decrypt.Pad("rtp_src")
	}
	if s.rtpPad, err = b.mux.BindReceive(s.id, s.kind, rtp); err != nil {
		return
	}

	// RTCP in: udpsrc [=> srtpdec] => recv_rtcp_sink_<id>
	rtcp := s.rtcpSrc.Pad("src")
	if s.decrypt != nil {
		if err = s.link(s.rtcpSrc, "src", s.decrypt, "rtcp_sink"); err != nil {
			return
		}
		rtcp = s.decrypt.Pad("rtcp_src")
	}
	if s.rtcpPad, err = b.mux.BindControl(s.id, s.kind, rtcp); err != nil {
		return
	}

	// RTCP out: send_rtcp_src_<id> [=> srtpenc] => udpsink
	feedback := s.rtcpSink.Pad("sink")
	if s.encrypt != nil {
		if err = s.link(s.encrypt, "rtcp_src", s.rtcpSink, "sink"); err != nil {
			return
		}
		feedback = s.encrypt.Pad("rtcp_sink")
	}
	if s.feedbackPad, err = b.mux.BindFeedback(s.id, s.kind, feedback); err != nil {
		return
	}

	// decode chain, its head waits for the dynamic pad
	for i := 0; i+1 < len(s.chain); i++ {
		if err = s.link(s.chain[i], "src", s.chain[i+1], "sink"); err != nil {
			return
		}
	}
	if s.head() == nil {
		return fmt.Errorf("%w: %s.sink", graph.ErrNoSuchPad, s.chain[0].Name())
	}
	return nil
}
