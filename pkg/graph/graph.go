// Package graph describes the media node library the receiver and sender are
// built on: elements with pads, bins that contain them, a pipeline with a
// bus and a clock, and a factory that makes elements by type name.
package graph

import (
	"time"
)

type Element interface {
	Name() string
	Factory() string

	// Set changes a named property, Get reads it
	Set(name string, value any) error
	Get(name string) (any, error)

	// Pad returns an existing pad by name (static, requested or dynamic)
	Pad(name string) Pad
	Pads() []Pad
	RequestPad(name string) (Pad, error)
	ReleaseRequestPad(pad Pad) error

	State() State
	SetState(state State) error

	// ConnectPadAdded subscribes to dynamic pad creation
	ConnectPadAdded(f PadAddedFunc) SignalID
	Disconnect(id SignalID) bool

	Parent() Bin
}

type Pad interface {
	Name() string
	Direction() PadDirection
	Parent() Element

	// Link connects this src pad with sink pad
	Link(sink Pad) error
	Unlink(sink Pad) error
	Peer() Pad
	IsLinked() bool
}

type Bin interface {
	Element

	Add(elements ...Element) error
	Remove(elements ...Element) error
	ByName(name string) Element
	Children() []Element
}

type Pipeline interface {
	Bin

	Bus() Bus
	Clock() Clock
	UseClock(clock Clock)
	BaseTime() time.Time
	// RunningTime is the clock time elapsed since the pipeline went to PLAYING
	RunningTime() time.Duration

	Latency() time.Duration
	SetLatency(latency time.Duration)
}

type Bus interface {
	Post(msg *Message) bool
	AddWatch(f BusFunc) error
	RemoveWatch()
}

type BusFunc func(msg *Message)

type Clock interface {
	Now() time.Time
}

type Factory interface {
	Make(factory, name string) (Element, error)
}

type PadAddedFunc func(element Element, pad Pad)

type SignalID uint64

type PadDirection byte

const (
	PadUnknown PadDirection = iota
	PadSrc
	PadSink
)

func (d PadDirection) String() string {
	switch d {
	case PadSrc:
		return "src"
	case PadSink:
		return "sink"
	}
	return "unknown"
}
