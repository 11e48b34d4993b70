// Package base is a pure Go implementation of the graph interfaces.
// Concrete elements embed *Element and register their pads, properties
// and state hooks in the constructor.
package base

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

type ChangeStateFunc func(from, to graph.State) error

type Element struct {
	self    graph.Element
	name    string
	factory string

	mu     sync.RWMutex
	state  graph.State
	pads   []graph.Pad
	props  map[string]*property
	parent graph.Bin

	// serializes state changes, hooks run without mu
	stateMu sync.Mutex

	signalMu sync.Mutex
	signals  map[graph.SignalID]graph.PadAddedFunc
	signalID graph.SignalID

	onState   ChangeStateFunc
	onRequest func(name string) (graph.Pad, error)
	onRelease func(pad graph.Pad) error
}

type property struct {
	value any
	set   func(value any) error
}

func NewElement(factory, name string) *Element {
	e := &Element{
		name:    name,
		factory: factory,
		state:   graph.StateNull,
		props:   map[string]*property{},
	}
	e.self = e
	return e
}

// Init sets outer element, used in messages, pad parents and signals
func (e *Element) Init(self graph.Element) {
	e.self = self
}

func (e *Element) Self() graph.Element {
	return e.self
}

func (e *Element) Name() string {
	return e.name
}

func (e *Element) Factory() string {
	return e.factory
}

func (e *Element) String() string {
	return e.factory + ":" + e.name
}

// properties

func (e *Element) Install(name string, value any) {
	e.InstallFunc(name, value, nil)
}

// InstallFunc - set called after each successful value change
func (e *Element) InstallFunc(name string, value any, set func(value any) error) {
	e.mu.Lock()
	e.props[name] = &property{value: value, set: set}
	e.mu.Unlock()
}

func (e *Element) Set(name string, value any) error {
	e.mu.Lock()
	p := e.props[name]
	if p == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", graph.ErrUnknownProperty, e.name, name)
	}
	v, err := convert(p.value, value)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s=%v", err, e.name, name, value)
	}
	p.value = v
	set := p.set
	e.mu.Unlock()

	if set != nil {
		return set(v)
	}
	return nil
}

func (e *Element) Get(name string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p := e.props[name]; p != nil {
		return p.value, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", graph.ErrUnknownProperty, e.name, name)
}

func (e *Element) Int(name string) int {
	v, _ := e.Get(name)
	i, _ := graph.ToInt(v)
	return i
}

func (e *Element) Bool(name string) bool {
	v, _ := e.Get(name)
	b, _ := v.(bool)
	return b
}

func (e *Element) Str(name string) string {
	v, _ := e.Get(name)
	s, _ := v.(string)
	return s
}

func (e *Element) Bytes(name string) []byte {
	v, _ := e.Get(name)
	b, _ := v.([]byte)
	return b
}

func (e *Element) Duration(name string) time.Duration {
	v, _ := e.Get(name)
	d, _ := v.(time.Duration)
	return d
}

func (e *Element) Caps(name string) *graph.Caps {
	v, _ := e.Get(name)
	c, _ := v.(*graph.Caps)
	return c
}

func convert(def, value any) (any, error) {
	switch def.(type) {
	case nil:
		return value, nil
	case int:
		if i, ok := graph.ToInt(value); ok {
			return i, nil
		}
	case bool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case string:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case []byte:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case time.Duration:
		if d, ok := value.(time.Duration); ok {
			return d, nil
		}
	case *graph.Caps:
		switch v := value.(type) {
		case *graph.Caps:
			return v, nil
		case string:
			return graph.ParseCaps(v)
		}
	default:
		if fmt.Sprintf("%T", def) == fmt.Sprintf("%T", value) {
			return value, nil
		}
	}
	return nil, graph.ErrWrongProperty
}

// state

func (e *Element) State() graph.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// OnStateChange - hook runs before the state is stored when going up
// and after it when going down
func (e *Element) OnStateChange(f ChangeStateFunc) {
	e.onState = f
}

func (e *Element) SetState(state graph.State) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	old := e.State()
	if old == state {
		return nil
	}

	if state > old {
		if e.onState != nil {
			if err := e.onState(old, state); err != nil {
				return err
			}
		}
		e.storeState(state)
	} else {
		e.storeState(state)
		if e.onState != nil {
			if err := e.onState(old, state); err != nil {
				return err
			}
		}
	}

	e.Post(graph.NewStateChangedMessage(e.self, old, state))
	return nil
}

func (e *Element) storeState(state graph.State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// pads

func (e *Element) AddPad(pad *Pad) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pads {
		if p.Name() == pad.name {
			return fmt.Errorf("%w: %s.%s", graph.ErrNameExists, e.name, pad.name)
		}
	}
	pad.parent = e.self
	e.pads = append(e.pads, pad)
	return nil
}

// RemovePad unlinks the pad from its peer and forgets it
func (e *Element) RemovePad(pad graph.Pad) error {
	e.mu.Lock()
	i := indexPad(e.pads, pad)
	if i < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, e.name, pad.Name())
	}
	e.pads = append(e.pads[:i], e.pads[i+1:]...)
	e.mu.Unlock()

	if p, ok := pad.(*Pad); ok {
		p.unlinkAny()
	}
	return nil
}

func (e *Element) Pad(name string) graph.Pad {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.pads {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (e *Element) Pads() []graph.Pad {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]graph.Pad(nil), e.pads...)
}

func (e *Element) OnRequestPad(f func(name string) (graph.Pad, error)) {
	e.onRequest = f
}

func (e *Element) OnReleasePad(f func(pad graph.Pad) error) {
	e.onRelease = f
}

func (e *Element) RequestPad(name string) (graph.Pad, error) {
	if e.onRequest == nil {
		return nil, fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, e.name, name)
	}
	return e.onRequest(name)
}

func (e *Element) ReleaseRequestPad(pad graph.Pad) error {
	if e.onRelease == nil {
		return fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, e.name, pad.Name())
	}
	return e.onRelease(pad)
}

func indexPad(pads []graph.Pad, pad graph.Pad) int {
	for i, p := range pads {
		if p == pad {
			return i
		}
	}
	return -1
}

// signals

func (e *Element) ConnectPadAdded(f graph.PadAddedFunc) graph.SignalID {
	e.signalMu.Lock()
	defer e.signalMu.Unlock()
	if e.signals == nil {
		e.signals = map[graph.SignalID]graph.PadAddedFunc{}
	}
	e.signalID++
	e.signals[e.signalID] = f
	return e.signalID
}

func (e *Element) Disconnect(id graph.SignalID) bool {
	e.signalMu.Lock()
	defer e.signalMu.Unlock()
	if _, ok := e.signals[id]; !ok {
		return false
	}
	delete(e.signals, id)
	return true
}

// Handlers - number of connected pad-added handlers
func (e *Element) Handlers() int {
	e.signalMu.Lock()
	defer e.signalMu.Unlock()
	return len(e.signals)
}

// EmitPadAdded calls handlers in connection order, without element locks
func (e *Element) EmitPadAdded(pad graph.Pad) {
	e.signalMu.Lock()
	ids := make([]graph.SignalID, 0, len(e.signals))
	for id := range e.signals {
		ids = append(ids, id)
	}
	handlers := make([]graph.PadAddedFunc, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, e.signals[id])
	}
	e.signalMu.Unlock()

	for _, f := range handlers {
		f(e.self, pad)
	}
}

// hierarchy

func (e *Element) Parent() graph.Bin {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

func (e *Element) setParent(parent graph.Bin) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if parent != nil && e.parent != nil {
		return fmt.Errorf("%w: %s already has parent %s", graph.ErrWrongHierarchy, e.name, e.parent.Name())
	}
	e.parent = parent
	return nil
}

// TopLevel - pipeline this element belongs to, or nil
func (e *Element) TopLevel() graph.Pipeline {
	return graph.PipelineOf(e.self)
}

// RunningTime - current running time of the pipeline, or graph.ClockTimeNone
func (e *Element) RunningTime() time.Duration {
	if p := e.TopLevel(); p != nil {
		return p.RunningTime()
	}
	return graph.ClockTimeNone
}

// Post sends message to the bus of the top level pipeline
func (e *Element) Post(msg *graph.Message) {
	if p := e.TopLevel(); p != nil {
		p.Bus().Post(msg)
	}
}

func (e *Element) PostError(err error, debug string) {
	e.Post(graph.NewErrorMessage(e.self, err, debug))
}

func (e *Element) PostWarning(err error, debug string) {
	e.Post(graph.NewWarningMessage(e.self, err, debug))
}

func (e *Element) PostEOS() {
	e.Post(graph.NewEOSMessage(e.self))
}
