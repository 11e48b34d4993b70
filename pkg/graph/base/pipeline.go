package base

import (
	"sync"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

type Pipeline struct {
	*Bin

	bus *Bus

	mu       sync.RWMutex
	clock    graph.Clock
	baseTime time.Time
	latency  time.Duration
}

func NewPipeline(name string) *Pipeline {
	p := &Pipeline{
		Bin:   newBin("pipeline", name),
		bus:   NewBus(),
		clock: SystemClock{},
	}
	p.Init(p)
	p.OnStateChange(func(from, to graph.State) error {
		if to == graph.StatePlaying {
			p.mu.Lock()
			p.baseTime = p.clock.Now()
			p.mu.Unlock()
		}
		return p.childrenState(from, to)
	})
	return p
}

func (p *Pipeline) Bus() graph.Bus {
	return p.bus
}

func (p *Pipeline) Clock() graph.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clock
}

func (p *Pipeline) UseClock(clock graph.Clock) {
	p.mu.Lock()
	p.clock = clock
	p.mu.Unlock()
}

func (p *Pipeline) BaseTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.baseTime
}

func (p *Pipeline) RunningTime() time.Duration {
	if p.State() != graph.StatePlaying {
		return graph.ClockTimeNone
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clock.Now().Sub(p.baseTime)
}

func (p *Pipeline) Latency() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latency
}

func (p *Pipeline) SetLatency(latency time.Duration) {
	p.mu.Lock()
	p.latency = latency
	p.mu.Unlock()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
