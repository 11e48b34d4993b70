package base

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

type FactoryFunc func(name string) (graph.Element, error)

// Registry makes elements by factory name,
// empty element name is replaced with factory name and counter: "udpsrc0"
type Registry struct {
	mu        sync.Mutex
	factories map[string]FactoryFunc
	counters  map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]FactoryFunc{},
		counters:  map[string]int{},
	}
}

func (r *Registry) Register(factory string, f FactoryFunc) {
	r.mu.Lock()
	r.factories[factory] = f
	r.mu.Unlock()
}

func (r *Registry) Has(factory string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.factories[factory] != nil
}

func (r *Registry) Factories() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Make(factory, name string) (graph.Element, error) {
	r.mu.Lock()
	f := r.factories[factory]
	if f != nil && name == "" {
		name = factory + strconv.Itoa(r.counters[factory])
		r.counters[factory]++
	}
	r.mu.Unlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %s", graph.ErrNoSuchFactory, factory)
	}

	el, err := f(name)
	if err != nil {
		return nil, fmt.Errorf("make %s: %w", factory, err)
	}
	return el, nil
}
