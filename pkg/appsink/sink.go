// Package appsink - elements between the graph and application code:
// "appsink" hands samples out, "appsrc" takes buffers in
package appsink

import (
	"context"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const FactorySink = "appsink"

type SampleFunc func(sample *graph.Sample)

// Sink - "appsink". Samples are queued, "max-buffers" = 0 means unlimited.
// A full queue blocks the streaming goroutine, or drops the oldest sample
// with "drop" = true. A callback gets queued samples on its own goroutine,
// or on the streaming goroutine when a full queue would block.
type Sink struct {
	*base.Element

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*graph.Sample
	flushing   bool
	onSample   SampleFunc
	delivering bool

	Received int
	Dropped  int
}

func NewSink(name string) *Sink {
	s := &Sink{Element: base.NewElement(FactorySink, name), flushing: true}
	s.cond = sync.NewCond(&s.mu)
	s.Init(s)

	s.Install("max-buffers", 0)
	s.Install("drop", false)
	s.Install("caps", (*graph.Caps)(nil))
	// buffers are not delayed to their PTS, the host renders by timestamp
	s.Install("sync", false)

	_ = s.AddPad(base.NewSinkPad("sink", s.chain))

	s.OnStateChange(func(from, to graph.State) error {
		s.mu.Lock()
		if to.Active() {
			s.flushing = false
		} else {
			s.flushing = true
			s.queue = nil
		}
		s.mu.Unlock()
		s.cond.Broadcast()
		return nil
	})
	return s
}

// SetCallback - nil returns to pull mode
func (s *Sink) SetCallback(f SampleFunc) {
	s.mu.Lock()
	s.onSample = f
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Sink) chain(_ *base.Pad, buf *graph.Buffer) error {
	caps := buf.Caps
	if caps == nil {
		caps = s.Caps("caps")
	}
	sample := &graph.Sample{Buffer: buf, Caps: caps}

	maxBuffers := s.Int("max-buffers")
	drop := s.Bool("drop")

	s.mu.Lock()
	s.Received++

	f := s.onSample
	if f != nil && maxBuffers > 0 && !drop {
		// the host paces the pipeline
		s.mu.Unlock()
		f(sample)
		return nil
	}

	for maxBuffers > 0 && len(s.queue) >= maxBuffers && !s.flushing {
		if drop {
			s.queue = s.queue[1:]
			s.Dropped++
			continue
		}
		s.cond.Wait()
	}

	if s.flushing {
		s.mu.Unlock()
		return graph.ErrFlushing
	}

	s.queue = append(s.queue, sample)
	if f != nil && !s.delivering {
		s.delivering = true
		go s.deliver()
	}
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

// deliver hands queued samples to the callback until the sink stops
// or returns to pull mode
func (s *Sink) deliver() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		for len(s.queue) == 0 && !s.flushing && s.onSample != nil {
			s.cond.Wait()
		}

		f := s.onSample
		if s.flushing || f == nil {
			s.delivering = false
			return
		}

		sample := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.cond.Broadcast()

		f(sample)
		s.mu.Lock()
	}
}

// Pull waits for the next sample, returns nil when the sink stops
// or the context is done
func (s *Sink) Pull(ctx context.Context) *graph.Sample {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 {
		if s.flushing || ctx.Err() != nil {
			return nil
		}
		s.cond.Wait()
	}

	sample := s.queue[0]
	s.queue = s.queue[1:]
	s.cond.Broadcast()
	return sample
}

// Queued - samples waiting for Pull
func (s *Sink) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
