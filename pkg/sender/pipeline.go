package sender

import (
	"fmt"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/streaminsync/streaminsync/pkg/rtpbin"
)

const (
	MuxName      = "rtpbin"
	VideoSrcName = "video_src"
	AudioSrcName = "audio_src"
)

type pipelineBuilder struct {
	factory graph.Factory
	cfg     *Config
	p       *base.Pipeline
	mux     graph.Element
}

// NewPipeline - sender pipeline in NULL state:
//
//	appsrc => h264parse => rtph264pay => send_rtp_sink_<vid>
//	send_rtp_src_<vid> [=> srtpenc] => udpsink(port 0)
//	send_rtcp_src_<vid> [=> srtpenc] => udpsink(port 1)
//	udpsrc(port 2) [=> srtpdec] => recv_rtcp_sink_<vid>
//
// audio goes the same way with rtpopuspay and ports 3-5
func NewPipeline(factory graph.Factory, cfg *Config) (graph.Pipeline, error) {
	b := &pipelineBuilder{factory: factory, cfg: cfg, p: base.NewPipeline("sender")}

	var err error
	if b.mux, err = b.make(rtpbin.Factory, MuxName, map[string]any{
		"ntp-time-source": rtpbin.NTPTimeSourceClockTime,
		"rtp-profile":     rtpbin.ProfileAVPF,
	}); err != nil {
		return nil, err
	}

	if err = b.video(); err != nil {
		return nil, err
	}
	if err = b.audio(); err != nil {
		return nil, err
	}
	return b.p, nil
}

func (b *pipelineBuilder) make(factory, name string, props map[string]any) (graph.Element, error) {
	el, err := b.factory.Make(factory, name)
	if err != nil {
		return nil, err
	}
	if err = graph.SetProperties(el, props); err != nil {
		return nil, err
	}
	if err = b.p.Add(el); err != nil {
		return nil, err
	}
	return el, nil
}

func (b *pipelineBuilder) video() error {
	cfg := b.cfg
	caps := h264.NewCaps().
		Set("width", cfg.Width).
		Set("height", cfg.Height).
		Set("framerate", cfg.Framerate)

	src, err := b.make("appsrc", VideoSrcName, map[string]any{"caps": caps})
	if err != nil {
		return err
	}
	parse, err := b.make(h264.FactoryParse, "video_parse", map[string]any{"config-interval": 1})
	if err != nil {
		return err
	}
	pay, err := b.make(h264.FactoryPay, "video_pay", map[string]any{"pt": h264.PayloadType, "mtu": cfg.MTU})
	if err != nil {
		return err
	}
	if err = graph.LinkMany(src, parse, pay); err != nil {
		return err
	}
	return b.session(receiver.KindVideo, pay)
}

func (b *pipelineBuilder) audio() error {
	src, err := b.make("appsrc", AudioSrcName, map[string]any{"caps": opus.NewCaps(2)})
	if err != nil {
		return err
	}
	pay, err := b.make(opus.FactoryPay, "audio_pay", map[string]any{"pt": opus.PayloadType})
	if err != nil {
		return err
	}
	if err = graph.LinkMany(src, pay); err != nil {
		return err
	}
	return b.session(receiver.KindAudio, pay)
}

// session links the payloader to the multiplexer and the multiplexer to the network
func (b *pipelineBuilder) session(kind receiver.Kind, pay graph.Element) error {
	session := b.cfg.Session()
	id := session.ID(kind)

	sendRTP, err := b.mux.RequestPad(rtpbin.PadName(rtpbin.SendRTPSink, id))
	if err != nil {
		return err
	}
	if err = pay.Pad("src").Link(sendRTP); err != nil {
		return err
	}

	name := func(role string) string {
		return fmt.Sprintf("%s_%s", kind, role)
	}

	rtpSink, err := b.make("udpsink", name("rtp_sink"), map[string]any{
		"host": session.Dest, "port": session.RTPPort(kind), "sync": false, "async": false,
	})
	if err != nil {
		return err
	}
	rtcpSink, err := b.make("udpsink", name("rtcp_sink"), map[string]any{
		"host": session.Dest, "port": session.RTCPPort(kind), "sync": false, "async": false,
	})
	if err != nil {
		return err
	}
	rtcpSrc, err := b.make("udpsrc", name("rtcp_src"), map[string]any{
		"port": session.RTCPOutPort(kind),
	})
	if err != nil {
		return err
	}

	sendRTCP, err := b.mux.RequestPad(rtpbin.PadName(rtpbin.SendRTCPSrc, id))
	if err != nil {
		return err
	}
	recvRTCP, err := b.mux.RequestPad(rtpbin.PadName(rtpbin.RecvRTCPSink, id))
	if err != nil {
		return err
	}
	muxRTP := b.mux.Pad(rtpbin.PadName(rtpbin.SendRTPSrc, id))

	if session.Key == "" {
		if err = muxRTP.Link(rtpSink.Pad("sink")); err != nil {
			return err
		}
		if err = sendRTCP.Link(rtcpSink.Pad("sink")); err != nil {
			return err
		}
		return rtcpSrc.Pad("src").Link(recvRTCP)
	}

	key := map[string]any{"key": session.Key}
	enc, err := b.make("srtpenc", name("srtpenc"), key)
	if err != nil {
		return err
	}
	dec, err := b.make("srtpdec", name("srtpdec"), key)
	if err != nil {
		return err
	}

	for _, link := range [][2]graph.Pad{
		{muxRTP, enc.Pad("rtp_sink")},
		{enc.Pad("rtp_src"), rtpSink.Pad("sink")},
		{sendRTCP, enc.Pad("rtcp_sink")},
		{enc.Pad("rtcp_src"), rtcpSink.Pad("sink")},
		{rtcpSrc.Pad("src"), dec.Pad("rtcp_sink")},
		{dec.Pad("rtcp_src"), recvRTCP},
	} {
		if err = link[0].Link(link[1]); err != nil {
			return err
		}
	}
	return nil
}
