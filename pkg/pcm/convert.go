package pcm

import (
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const (
	FactoryConvert  = "audioconvert"
	FactoryResample = "audioresample"
)

// Converter - raw audio transform, input format comes from buffer caps,
// output format from element properties
type Converter struct {
	*base.Element
	src *base.Pad

	target func(in Format) Format

	in, out   Format
	transcode func([]byte) []byte
}

// NewConvert - "audioconvert", changes sample format and channel count,
// "channels" = 0 keeps input channels
func NewConvert(name string) *Converter {
	c := newConverter(FactoryConvert, name)
	c.Install("format", FormatS16LE)
	c.Install("channels", 0)

	c.target = func(in Format) Format {
		out := in
		out.Name = c.Str("format")
		if n := c.Int("channels"); n > 0 {
			out.Channels = n
		}
		return out
	}
	return c
}

// NewResample - "audioresample", "rate" = 0 keeps input rate
func NewResample(name string) *Converter {
	c := newConverter(FactoryResample, name)
	c.Install("rate", 0)

	c.target = func(in Format) Format {
		out := in
		if rate := c.Int("rate"); rate > 0 {
			out.Rate = rate
		}
		return out
	}
	return c
}

func newConverter(factory, name string) *Converter {
	c := &Converter{Element: base.NewElement(factory, name), src: base.NewSrcPad("src")}
	c.Init(c)

	_ = c.AddPad(base.NewSinkPad("sink", c.chain))
	_ = c.AddPad(c.src)
	return c
}

func (c *Converter) chain(_ *base.Pad, buf *graph.Buffer) error {
	in := FormatFromCaps(buf.Caps)
	out := c.target(in)

	if c.transcode == nil || in != c.in || out != c.out {
		c.in, c.out = in, out
		c.transcode = Transcode(out, in)
	}

	data := buf.Data
	if in != out {
		data = c.transcode(data)
	}

	return c.src.Push(&graph.Buffer{
		Data: data, PTS: buf.PTS, Duration: buf.Duration, Flags: buf.Flags, Caps: out.Caps(),
	})
}
