package opus

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryDepay = "rtpopusdepay"

// Depay - "rtpopusdepay", one RTP packet is one Opus packet, RFC 7587
type Depay struct {
	*base.Element
	src *base.Pad

	depack codecs.OpusPacket
}

func NewDepay(name string) *Depay {
	d := &Depay{Element: base.NewElement(FactoryDepay, name), src: base.NewSrcPad("src")}
	d.Init(d)

	_ = d.AddPad(base.NewSinkPad("sink", d.chain))
	_ = d.AddPad(d.src)
	return d
}

func (d *Depay) chain(_ *base.Pad, buf *graph.Buffer) error {
	packet := buf.RTP
	if packet == nil {
		packet = &rtp.Packet{}
		if err := packet.Unmarshal(buf.Data); err != nil {
			return nil
		}
	}

	payload, err := d.depack.Unmarshal(packet.Payload)
	if err != nil || len(payload) == 0 {
		return nil
	}

	header := UnmarshalHeader(payload)

	out := graph.NewBuffer(payload)
	out.PTS = buf.PTS
	out.Duration = header.Duration()
	out.Flags = buf.Flags & graph.FlagDiscont
	out.Caps = NewCaps(int(header.Channels))
	return d.src.Push(out)
}
