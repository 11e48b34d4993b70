package opus

import (
	pionopus "github.com/pion/opus"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryDec = "opusdec"

// 120 ms of 48 kHz stereo S16LE, the longest Opus packet
const maxOutputSize = 120 * 48 * 2 * 2

// Dec - "opusdec", Opus packets to S16LE mono PCM at 48 kHz.
// Packets the decoder can't handle are replaced with silence of the same
// length, so downstream timing stays intact.
type Dec struct {
	*base.Element
	src *base.Pad

	decoder pionopus.Decoder
	output  []byte
	caps    *graph.Caps

	warned bool
}

func NewDec(name string) *Dec {
	d := &Dec{
		Element: base.NewElement(FactoryDec, name),
		src:     base.NewSrcPad("src"),
		decoder: pionopus.NewDecoder(),
		output:  make([]byte, maxOutputSize),
		caps:    NewPCMCaps(),
	}
	d.Init(d)

	// insert silence for lost packets
	d.Install("plc", false)

	_ = d.AddPad(base.NewSinkPad("sink", d.chain))
	_ = d.AddPad(d.src)
	return d
}

// NewPCMCaps - decoder output
func NewPCMCaps() *graph.Caps {
	return graph.NewCaps(
		"audio/x-raw", "format", "S16LE", "rate", ClockRate, "channels", 1, "layout", "interleaved",
	)
}

func (d *Dec) chain(_ *base.Pad, buf *graph.Buffer) error {
	header := UnmarshalHeader(buf.Data)
	if header == nil || header.Frames == 0 {
		return nil
	}

	size := header.Samples() * 2
	if size > len(d.output) {
		return nil
	}

	if buf.Has(graph.FlagDiscont) && d.Bool("plc") && buf.PTS != graph.ClockTimeNone {
		silence := graph.NewBuffer(make([]byte, size))
		silence.PTS = buf.PTS - header.Duration()
		silence.Duration = header.Duration()
		silence.Caps = d.caps
		silence.Flags = graph.FlagDiscont
		if err := d.src.Push(silence); err != nil {
			return err
		}
	}

	data := make([]byte, size)
	if _, _, err := d.decoder.Decode(buf.Data, d.output); err != nil {
		if !d.warned {
			d.warned = true
			d.PostWarning(err, "opusdec: decode failed, silence is used")
		}
	} else {
		copy(data, d.output)
	}

	out := graph.NewBuffer(data)
	out.PTS = buf.PTS
	out.Duration = header.Duration()
	out.Caps = d.caps
	return d.src.Push(out)
}
