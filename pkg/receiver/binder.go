package receiver

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/graph"
)

type BindState byte

const (
	AwaitingPort BindState = iota
	Linked
	Relinking
	Detached
)

func (s BindState) String() string {
	switch s {
	case AwaitingPort:
		return "awaiting_port"
	case Linked:
		return "linked"
	case Relinking:
		return "relinking"
	}
	return "detached"
}

func (s BindState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// binding - link between the dynamic multiplexer pad of one session id
// and the head of its decode chain, changed only under the mutation lock
type binding struct {
	kind Kind
	id   uint32
	sink graph.Pad

	state BindState
	src   graph.Pad
	ssrc  uint32
	pt    uint8

	token      graph.SignalID
	subscribed bool

	log zerolog.Logger
}

func newBinding(kind Kind, id uint32, sink graph.Pad, log zerolog.Logger) *binding {
	return &binding{kind: kind, id: id, sink: sink, log: log}
}

func (b *binding) subscribe(mux *Mux, f NewStreamPortFunc) {
	b.token = mux.OnNewStreamPort(f)
	b.subscribed = true
}

// announce handles a new multiplexer pad, foreign ids are not an error
func (b *binding) announce(id, ssrc uint32, pt uint8, pad graph.Pad) {
	if id != b.id || b.state == Detached {
		b.log.Debug().Msgf("[receiver] skip %s for %s %d state=%s", pad.Name(), b.kind, b.id, b.state)
		return
	}

	if b.state == Linked {
		if b.src == pad {
			return
		}
		b.log.Warn().Msgf("[receiver] %s %d new stream ssrc=%d pt=%d, relink from %s", b.kind, b.id, ssrc, pt, b.src.Name())
		b.state = Relinking
		if b.src.Peer() == b.sink {
			_ = b.src.Unlink(b.sink)
		}
		b.src = nil
	}

	// one peer at most
	if peer := b.sink.Peer(); peer != nil {
		_ = peer.Unlink(b.sink)
	}

	if err := pad.Link(b.sink); err != nil {
		b.log.Error().Err(err).Msgf("[receiver] %s %d link %s", b.kind, b.id, pad.Name())
		b.state = AwaitingPort
		return
	}

	b.src, b.ssrc, b.pt = pad, ssrc, pt
	b.state = Linked

	b.log.Debug().Msgf("[receiver] %s %d linked %s", b.kind, b.id, pad.Name())
}

// unsubscribe - no announcement can land once teardown started
func (b *binding) unsubscribe(mux *Mux) {
	if b.subscribed {
		mux.Unsubscribe(b.token)
		b.subscribed = false
	}
}

// release returns the linked pad to the multiplexer. Unlinking waits
// for pushes in flight, so sinks must already be stopped.
func (b *binding) release(mux *Mux) error {
	if b.state == Detached {
		return nil
	}
	b.unsubscribe(mux)

	var err error
	if b.state == Linked && b.src != nil {
		// the multiplexer forgets replaced pads by itself
		if err = mux.Release(b.src); errors.Is(err, graph.ErrNoSuchPad) {
			err = nil
		}
	}

	b.src = nil
	b.state = Detached
	return err
}

// forget - detached without touching a graph that is already gone
func (b *binding) forget() {
	b.src = nil
	b.subscribed = false
	b.state = Detached
}

type BindingInfo struct {
	State       BindState `json:"state"`
	Pad         string    `json:"pad,omitempty"`
	SSRC        uint32    `json:"ssrc,omitempty"`
	PayloadType uint8     `json:"payload_type,omitempty"`
}

func (b *binding) info() BindingInfo {
	info := BindingInfo{State: b.state}
	if b.src != nil {
		info.Pad = b.src.Name()
		info.SSRC = b.ssrc
		info.PayloadType = b.pt
	}
	return info
}
