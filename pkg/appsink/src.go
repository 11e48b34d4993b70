package appsink

import (
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactorySrc = "appsrc"

// Src - "appsrc", Push sends buffers from the caller goroutine.
// With "do-timestamp" buffers without PTS get the current running time.
type Src struct {
	*base.Element
	src *base.Pad
}

func NewSrc(name string) *Src {
	s := &Src{Element: base.NewElement(FactorySrc, name), src: base.NewSrcPad("src")}
	s.Init(s)

	s.Install("caps", (*graph.Caps)(nil))
	s.Install("is-live", true)
	s.Install("do-timestamp", true)

	_ = s.AddPad(s.src)
	return s
}

func (s *Src) Push(buf *graph.Buffer) error {
	if !s.State().Active() {
		return graph.ErrFlushing
	}
	if buf.Caps == nil {
		buf.Caps = s.Caps("caps")
	}
	if buf.PTS == graph.ClockTimeNone && s.Bool("do-timestamp") {
		buf.PTS = s.RunningTime()
	}
	return s.src.Push(buf)
}

// EndOfStream posts EOS to the pipeline bus
func (s *Src) EndOfStream() {
	s.PostEOS()
}
