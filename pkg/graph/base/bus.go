package base

import (
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

// messages kept while nobody is watching
const maxPending = 64

type Bus struct {
	mu      sync.Mutex
	watch   graph.BusFunc
	pending []*graph.Message
}

func NewBus() *Bus {
	return &Bus{}
}

// Post calls the watch on the caller goroutine,
// without watch message is queued until AddWatch
func (b *Bus) Post(msg *graph.Message) bool {
	b.mu.Lock()
	watch := b.watch
	if watch == nil {
		if len(b.pending) == maxPending {
			b.pending = b.pending[1:]
		}
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		return false
	}
	b.mu.Unlock()

	watch(msg)
	return true
}

func (b *Bus) AddWatch(f graph.BusFunc) error {
	b.mu.Lock()
	if b.watch != nil {
		b.mu.Unlock()
		return graph.ErrWatchExists
	}
	b.watch = f
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, msg := range pending {
		f(msg)
	}
	return nil
}

func (b *Bus) RemoveWatch() {
	b.mu.Lock()
	b.watch = nil
	b.mu.Unlock()
}
