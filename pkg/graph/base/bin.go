package base

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

type Bin struct {
	*Element

	childMu  sync.RWMutex
	children []graph.Element
}

func NewBin(name string) *Bin {
	b := newBin("bin", name)
	b.Init(b)
	return b
}

func newBin(factory, name string) *Bin {
	b := &Bin{Element: NewElement(factory, name)}
	b.OnStateChange(func(from, to graph.State) error {
		return b.childrenState(from, to)
	})
	return b
}

// Add inserts all elements or none of them
func (b *Bin) Add(elements ...graph.Element) error {
	b.childMu.Lock()
	defer b.childMu.Unlock()

	names := map[string]bool{}
	for _, el := range b.children {
		names[el.Name()] = true
	}
	for _, el := range elements {
		if names[el.Name()] {
			return fmt.Errorf("%w: %s in %s", graph.ErrNameExists, el.Name(), b.name)
		}
		if _, ok := el.(parented); !ok {
			return fmt.Errorf("%w: %s is %T", graph.ErrWrongHierarchy, el.Name(), el)
		}
		if el.Parent() != nil {
			return fmt.Errorf("%w: %s already has parent", graph.ErrWrongHierarchy, el.Name())
		}
		names[el.Name()] = true
	}

	self := b.self.(graph.Bin)
	for _, el := range elements {
		_ = el.(parented).setParent(self)
		b.children = append(b.children, el)
	}
	return nil
}

// Remove drops all elements or none of them, state is not touched
func (b *Bin) Remove(elements ...graph.Element) error {
	b.childMu.Lock()
	defer b.childMu.Unlock()

	for _, el := range elements {
		if indexElement(b.children, el) < 0 {
			return fmt.Errorf("%w: %s not in %s", graph.ErrWrongHierarchy, el.Name(), b.name)
		}
	}

	for _, el := range elements {
		i := indexElement(b.children, el)
		b.children = append(b.children[:i], b.children[i+1:]...)
		_ = el.(parented).setParent(nil)
	}
	return nil
}

func (b *Bin) ByName(name string) graph.Element {
	b.childMu.RLock()
	defer b.childMu.RUnlock()
	for _, el := range b.children {
		if el.Name() == name {
			return el
		}
	}
	return nil
}

func (b *Bin) Children() []graph.Element {
	b.childMu.RLock()
	defer b.childMu.RUnlock()
	return append([]graph.Element(nil), b.children...)
}

// childrenState goes up from first child to last and down in reverse,
// so sinks start flushing before the sources blocked on them stop
func (b *Bin) childrenState(from, to graph.State) error {
	children := b.Children()
	if to < from {
		slices.Reverse(children)
	}

	var errs []error
	for _, el := range children {
		if err := el.SetState(to); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", el.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type parented interface {
	setParent(parent graph.Bin) error
}

func indexElement(elements []graph.Element, el graph.Element) int {
	for i, e := range elements {
		if e == el {
			return i
		}
	}
	return -1
}
