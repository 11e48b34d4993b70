package h264

import (
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryDec = "h264dec"

// Dec - "h264dec", the output boundary of the video chain. Pixel decoding
// belongs to the host, so the element hands over complete access units and
// guarantees the first one and the first after a loss are keyframes.
type Dec struct {
	*base.Element
	src *base.Pad

	waitKeyframe bool
	frames       int
	dropped      int
}

func NewDec(name string) *Dec {
	d := &Dec{Element: base.NewElement(FactoryDec, name), src: base.NewSrcPad("src"), waitKeyframe: true}
	d.Init(d)

	// drop delta frames after a discont until the next keyframe
	d.Install("discard-corrupted-frames", true)

	_ = d.AddPad(base.NewSinkPad("sink", d.chain))
	_ = d.AddPad(d.src)

	d.OnStateChange(func(from, to graph.State) error {
		if !to.Active() {
			d.waitKeyframe = true
		}
		return nil
	})
	return d
}

func (d *Dec) chain(_ *base.Pad, buf *graph.Buffer) error {
	keyframe := buf.IsKeyframe()

	if buf.Has(graph.FlagDiscont) && !keyframe && d.Bool("discard-corrupted-frames") {
		d.waitKeyframe = true
	}

	if d.waitKeyframe {
		if !keyframe {
			d.dropped++
			return nil
		}
		d.waitKeyframe = false
	}

	d.frames++

	out := &graph.Buffer{Data: buf.Data, PTS: buf.PTS, Duration: buf.Duration, Flags: buf.Flags, Caps: buf.Caps}
	if out.Caps != nil {
		out.Caps = out.Caps.Copy().Set("format", "H264")
	}
	return d.src.Push(out)
}

// Stats - passed and dropped frames
func (d *Dec) Stats() (frames, dropped int) {
	return d.frames, d.dropped
}
