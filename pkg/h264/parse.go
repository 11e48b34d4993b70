package h264

import (
	"bytes"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactoryParse = "h264parse"

// Parse - "h264parse", keeps last SPS and PPS, sets width and height in caps
// and inserts parameter sets before keyframes by "config-interval":
// 0 - never, -1 - before every keyframe, N - at most every N seconds
type Parse struct {
	*base.Element
	src *base.Pad

	sps, pps   []byte
	caps       *graph.Caps
	lastConfig time.Duration
}

func NewParse(name string) *Parse {
	p := &Parse{
		Element:    base.NewElement(FactoryParse, name),
		src:        base.NewSrcPad("src"),
		lastConfig: graph.ClockTimeNone,
	}
	p.Init(p)

	p.Install("config-interval", 0)

	_ = p.AddPad(base.NewSinkPad("sink", p.chain))
	_ = p.AddPad(p.src)

	p.OnStateChange(func(from, to graph.State) error {
		if !to.Active() {
			p.sps, p.pps, p.caps = nil, nil, nil
			p.lastConfig = graph.ClockTimeNone
		}
		return nil
	})
	return p
}

func (p *Parse) chain(_ *base.Pad, buf *graph.Buffer) error {
	nalus := SplitNALU(buf.Data)
	if len(nalus) == 0 {
		return nil
	}

	var hasSPS, hasPPS bool
	for _, nalu := range nalus {
		switch NALUType(nalu) {
		case NALUTypeSPS:
			hasSPS = true
			if !bytes.Equal(nalu, p.sps) {
				p.sps = append([]byte(nil), nalu...)
				p.caps = nil
			}
		case NALUTypePPS:
			hasPPS = true
			p.pps = append([]byte(nil), nalu...)
		}
	}

	if p.caps == nil {
		p.caps = p.newCaps()
	}

	out := &graph.Buffer{Data: buf.Data, PTS: buf.PTS, Duration: buf.Duration, Caps: p.caps}
	out.Flags = buf.Flags &^ graph.FlagDeltaUnit

	if IsKeyframe(nalus) {
		if !(hasSPS && hasPPS) && p.needConfig(buf.PTS) {
			out.Data = append(JoinNALU(p.sps, p.pps), buf.Data...)
			p.lastConfig = buf.PTS
		} else if hasSPS {
			p.lastConfig = buf.PTS
		}
	} else {
		out.Flags |= graph.FlagDeltaUnit
	}

	return p.src.Push(out)
}

func (p *Parse) needConfig(pts time.Duration) bool {
	if p.sps == nil || p.pps == nil {
		return false
	}
	switch interval := p.Int("config-interval"); {
	case interval == 0:
		return false
	case interval < 0:
		return true
	default:
		if pts == graph.ClockTimeNone || p.lastConfig == graph.ClockTimeNone {
			return true
		}
		return pts-p.lastConfig >= time.Duration(interval)*time.Second
	}
}

func (p *Parse) newCaps() *graph.Caps {
	caps := NewCaps()
	if p.sps == nil {
		return caps
	}
	sps := DecodeSPS(p.sps)
	if sps == nil {
		return caps
	}
	caps.Set("width", int(sps.Width())).Set("height", int(sps.Height())).Set("profile", sps.Profile())
	if num, den := sps.FrameRate(); num > 0 {
		caps.Set("framerate-num", num).Set("framerate-den", den)
	}
	return caps
}

// Config - last seen parameter sets
func (p *Parse) Config() (sps, pps []byte) {
	return p.sps, p.pps
}
