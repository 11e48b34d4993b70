package base

import (
	"github.com/streaminsync/streaminsync/pkg/graph"
)

// Identity passes buffers from "sink" to "src" unchanged,
// "caps" property, when set, is attached to buffers without caps
type Identity struct {
	*Element
	src *Pad
}

func NewIdentity(factory, name string) *Identity {
	i := &Identity{Element: NewElement(factory, name), src: NewSrcPad("src")}
	i.Init(i)
	i.Install("caps", (*graph.Caps)(nil))
	i.Install("drop", false)

	_ = i.AddPad(NewSinkPad("sink", i.chain))
	_ = i.AddPad(i.src)
	return i
}

func (i *Identity) chain(_ *Pad, buf *graph.Buffer) error {
	if i.Bool("drop") {
		return nil
	}
	if buf.Caps == nil {
		buf.Caps = i.Caps("caps")
	}
	return i.src.Push(buf)
}
