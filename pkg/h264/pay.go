package h264

import (
	"errors"
	"math/rand"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryPay = "rtph264pay"

// Pay - "rtph264pay", Annex-B access units to RTP packets,
// timestamps follow buffer PTS in 90 kHz units
type Pay struct {
	*base.Element
	src *base.Pad

	payloader codecs.H264Payloader
	sequencer rtp.Sequencer
	offset    uint32
}

func NewPay(name string) *Pay {
	p := &Pay{
		Element:   base.NewElement(FactoryPay, name),
		src:       base.NewSrcPad("src"),
		sequencer: rtp.NewRandomSequencer(),
		offset:    randomOffset(),
	}
	p.Init(p)

	p.Install("pt", PayloadType)
	p.Install("mtu", 1400)

	_ = p.AddPad(base.NewSinkPad("sink", p.chain))
	_ = p.AddPad(p.src)
	return p
}

func (p *Pay) chain(_ *base.Pad, buf *graph.Buffer) error {
	mtu := p.Int("mtu") - 12 // rtp.Header size
	if mtu <= 2 {
		return errors.New("rtph264pay: wrong mtu")
	}

	pts := buf.PTS
	if pts == graph.ClockTimeNone {
		if pts = p.RunningTime(); pts == graph.ClockTimeNone {
			pts = 0
		}
	}

	pt := p.Int("pt")
	caps := NewRTPCaps(pt)
	ts := p.offset + uint32(int64(pts)*ClockRate/1e9)

	payloads := p.payloader.Payload(uint16(mtu), buf.Data)
	last := len(payloads) - 1
	for i, payload := range payloads {
		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == last,
				PayloadType:    uint8(pt),
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
			},
			Payload: payload,
		}
		data, err := packet.Marshal()
		if err != nil {
			return err
		}

		out := graph.NewBuffer(data)
		out.PTS = buf.PTS
		out.Caps = caps
		out.RTP = packet
		if err = p.src.Push(out); err != nil {
			return err
		}
	}
	return nil
}

func randomOffset() uint32 {
	return rand.Uint32()
}
