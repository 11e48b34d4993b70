package base

import (
	"fmt"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

type ChainFunc func(pad *Pad, buf *graph.Buffer) error

type Pad struct {
	name   string
	dir    graph.PadDirection
	parent graph.Element
	chain  ChainFunc

	// Push holds read lock during the whole peer chain call,
	// so Unlink waits for the buffer in flight
	mu   sync.RWMutex
	peer *Pad
}

func NewSrcPad(name string) *Pad {
	return &Pad{name: name, dir: graph.PadSrc}
}

func NewSinkPad(name string, chain ChainFunc) *Pad {
	return &Pad{name: name, dir: graph.PadSink, chain: chain}
}

func (p *Pad) Name() string {
	return p.name
}

func (p *Pad) Direction() graph.PadDirection {
	return p.dir
}

func (p *Pad) Parent() graph.Element {
	return p.parent
}

func (p *Pad) String() string {
	if p.parent != nil {
		return p.parent.Name() + "." + p.name
	}
	return p.name
}

func (p *Pad) Link(sink graph.Pad) error {
	s, ok := sink.(*Pad)
	if !ok {
		return fmt.Errorf("%w: %s => %T", graph.ErrWrongHierarchy, p, sink)
	}
	if p.dir != graph.PadSrc || s.dir != graph.PadSink {
		return fmt.Errorf("%w: %s => %s", graph.ErrWrongDirection, p, s)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.peer != nil || s.peer != nil {
		return fmt.Errorf("%w: %s => %s", graph.ErrAlreadyLinked, p, s)
	}

	p.peer = s
	s.peer = p
	return nil
}

func (p *Pad) Unlink(sink graph.Pad) error {
	s, ok := sink.(*Pad)
	if !ok || p.dir != graph.PadSrc {
		return fmt.Errorf("%w: %s => %v", graph.ErrWrongHierarchy, p, sink)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.peer != s {
		return fmt.Errorf("%w: %s => %s", graph.ErrNotLinked, p, s)
	}

	p.peer = nil
	s.peer = nil
	return nil
}

// unlinkAny - unlink from any peer, in any direction
func (p *Pad) unlinkAny() {
	peer, ok := p.Peer().(*Pad)
	if !ok {
		return
	}
	if p.dir == graph.PadSrc {
		_ = p.Unlink(peer)
	} else {
		_ = peer.Unlink(p)
	}
}

func (p *Pad) Peer() graph.Pad {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

func (p *Pad) IsLinked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peer != nil
}

// Push sends buffer to the peer sink pad
func (p *Pad) Push(buf *graph.Buffer) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.peer == nil {
		return graph.ErrNotLinked
	}
	return p.peer.receive(buf)
}

// Receive delivers buffer to the sink pad the same way a linked peer does
func (p *Pad) Receive(buf *graph.Buffer) error {
	return p.receive(buf)
}

func (p *Pad) receive(buf *graph.Buffer) error {
	if p.parent != nil && !p.parent.State().Active() {
		return graph.ErrFlushing
	}
	if p.chain == nil {
		return nil
	}
	return p.chain(p, buf)
}
