package opus

import (
	"math/rand"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryPay = "rtpopuspay"

// Pay - "rtpopuspay", one Opus packet per RTP packet with 48 kHz timestamps
type Pay struct {
	*base.Element
	src *base.Pad

	payloader codecs.OpusPayloader
	sequencer rtp.Sequencer
	offset    uint32
}

func NewPay(name string) *Pay {
	p := &Pay{
		Element:   base.NewElement(FactoryPay, name),
		src:       base.NewSrcPad("src"),
		sequencer: rtp.NewRandomSequencer(),
		offset:    rand.Uint32(),
	}
	p.Init(p)

	p.Install("pt", PayloadType)

	_ = p.AddPad(base.NewSinkPad("sink", p.chain))
	_ = p.AddPad(p.src)
	return p
}

func (p *Pay) chain(_ *base.Pad, buf *graph.Buffer) error {
	pts := buf.PTS
	if pts == graph.ClockTimeNone {
		if pts = p.RunningTime(); pts == graph.ClockTimeNone {
			pts = 0
		}
	}

	pt := p.Int("pt")
	payloads := p.payloader.Payload(0, buf.Data)
	if len(payloads) == 0 {
		return nil
	}

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         buf.Has(graph.FlagDiscont),
			PayloadType:    uint8(pt),
			SequenceNumber: p.sequencer.NextSequenceNumber(),
			Timestamp:      p.offset + uint32(int64(pts)*ClockRate/1e9),
		},
		Payload: payloads[0],
	}
	data, err := packet.Marshal()
	if err != nil {
		return err
	}

	out := graph.NewBuffer(data)
	out.PTS = buf.PTS
	out.Caps = NewRTPCaps(pt)
	out.RTP = packet
	return p.src.Push(out)
}
