package h264

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryDepay = "rtph264depay"

// Depay - "rtph264depay", RTP packets to Annex-B access units.
// Packets are aggregated until the marker bit, a discont drops the partial AU.
type Depay struct {
	*base.Element
	src *base.Pad

	depack    codecs.H264Packet
	buffer    []byte
	discont   bool
	waitStart bool
}

func NewDepay(name string) *Depay {
	d := &Depay{Element: base.NewElement(FactoryDepay, name), src: base.NewSrcPad("src")}
	d.Init(d)

	_ = d.AddPad(base.NewSinkPad("sink", d.chain))
	_ = d.AddPad(d.src)

	d.OnStateChange(func(from, to graph.State) error {
		if !to.Active() {
			d.buffer = nil
			d.depack = codecs.H264Packet{}
		}
		return nil
	})
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

	if buf.Has(graph.FlagDiscont) {
		d.buffer = nil
		d.depack = codecs.H264Packet{}
		d.discont = true
		d.waitStart = true
	}

	// rest of a fragmented NALU after loss is useless
	if d.waitStart {
		if isFragment(packet.Payload) && !isFragmentStart(packet.Payload) {
			return nil
		}
		d.waitStart = false
	}

	payload, err := d.depack.Unmarshal(packet.Payload)
	if err != nil {
		d.buffer = nil
		d.discont = true
		return nil
	}

	// ffmpeg with `-tune zerolatency` enable option `-x264opts sliced-threads=1`
	// and every NALU will be sliced to multiple NALUs
	d.buffer = append(d.buffer, payload...)
	if !packet.Marker || len(d.buffer) == 0 {
		return nil
	}

	out := graph.NewBuffer(d.buffer)
	out.PTS = buf.PTS
	out.Caps = NewCaps()
	d.buffer = nil

	if d.discont {
		out.Flags |= graph.FlagDiscont
		d.discont = false
	}
	if !IsKeyframe(SplitNALU(out.Data)) {
		out.Flags |= graph.FlagDeltaUnit
	}

	return d.src.Push(out)
}

func isFragment(payload []byte) bool {
	return len(payload) > 1 && payload[0]&naluTypeBitmask == fuaNALUType
}

func isFragmentStart(payload []byte) bool {
	return payload[1]&0x80 != 0
}
