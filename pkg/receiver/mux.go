package receiver

import (
	"fmt"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/rtpbin"
)

// MuxName - name of the multiplexer element inside the receiver pipeline
const MuxName = "rtpbin"

// NewStreamPortFunc - called on a streaming goroutine for every new
// "recv_rtp_src_<id>_<ssrc>_<pt>" pad
type NewStreamPortFunc func(id, ssrc uint32, pt uint8, pad graph.Pad)

// Mux wraps the rtpbin element of a pipeline
type Mux struct {
	bin graph.Element
}

// FindMux - multiplexer of the pipeline or ErrNotReady
func FindMux(p graph.Bin) (*Mux, error) {
	if p == nil {
		return nil, ErrNotReady
	}
	el := p.ByName(MuxName)
	if el == nil {
		return nil, fmt.Errorf("%w: no %s in %s", ErrNotReady, MuxName, p.Name())
	}
	return &Mux{bin: el}, nil
}

// Configure sets the fixed knobs of synced multi-session receiving
func (m *Mux) Configure(latency time.Duration) error {
	return graph.SetProperties(m.bin, map[string]any{
		"ntp-time-source":        rtpbin.NTPTimeSourceClockTime,
		"ntp-sync":               true,
		"buffer-mode":            rtpbin.BufferModeSynced,
		"max-rtcp-rtp-time-diff": 1,
		"do-lost":                true,
		"do-retransmission":      true,
		"drop-on-latency":        true,
		"rtp-profile":            rtpbin.ProfileAVPF,
		"latency":                int(latency / time.Millisecond),
	})
}

func (m *Mux) Element() graph.Element {
	return m.bin
}

// Bound - session id already holds its RTP receive pad
func (m *Mux) Bound(id uint32) bool {
	return m.bin.Pad(rtpbin.PadName(rtpbin.RecvRTPSink, id)) != nil
}

// BindReceive links src to a new "recv_rtp_sink_<id>"
func (m *Mux) BindReceive(id uint32, kind Kind, src graph.Pad) (graph.Pad, error) {
	return m.bindSink(rtpbin.PadName(rtpbin.RecvRTPSink, id), kind, src)
}

// BindControl links src to a new "recv_rtcp_sink_<id>"
func (m *Mux) BindControl(id uint32, kind Kind, src graph.Pad) (graph.Pad, error) {
	return m.bindSink(rtpbin.PadName(rtpbin.RecvRTCPSink, id), kind, src)
}

// BindFeedback links a new "send_rtcp_src_<id>" to sink
func (m *Mux) BindFeedback(id uint32, kind Kind, sink graph.Pad) (graph.Pad, error) {
	name := rtpbin.PadName(rtpbin.SendRTCPSrc, id)
	if m.bin.Pad(name) != nil {
		return nil, fmt.Errorf("%w: %s %s already bound", ErrConfiguration, kind, name)
	}

	pad, err := m.bin.RequestPad(name)
	if err != nil {
		return nil, err
	}
	if err = pad.Link(sink); err != nil {
		_ = m.bin.ReleaseRequestPad(pad)
		return nil, err
	}
	return pad, nil
}

func (m *Mux) bindSink(name string, kind Kind, src graph.Pad) (graph.Pad, error) {
	if m.bin.Pad(name) != nil {
		return nil, fmt.Errorf("%w: %s %s already bound", ErrConfiguration, kind, name)
	}

	pad, err := m.bin.RequestPad(name)
	if err != nil {
		return nil, err
	}
	if err = src.Link(pad); err != nil {
		_ = m.bin.ReleaseRequestPad(pad)
		return nil, err
	}
	return pad, nil
}

// OnNewStreamPort - pads with names that don't parse are skipped
func (m *Mux) OnNewStreamPort(f NewStreamPortFunc) graph.SignalID {
	return m.bin.ConnectPadAdded(func(_ graph.Element, pad graph.Pad) {
		if id, ssrc, pt, ok := rtpbin.ParseRecvRTPSrc(pad.Name()); ok {
			f(id, ssrc, pt, pad)
		}
	})
}

func (m *Mux) Unsubscribe(token graph.SignalID) bool {
	return m.bin.Disconnect(token)
}

// Release unlinks the pad from its peer and returns it to the multiplexer
func (m *Mux) Release(pad graph.Pad) error {
	if peer := pad.Peer(); peer != nil {
		if pad.Direction() == graph.PadSrc {
			_ = pad.Unlink(peer)
		} else {
			_ = peer.Unlink(pad)
		}
	}
	return m.bin.ReleaseRequestPad(pad)
}

// Stats - rtpbin session statistics, false for other multiplexers
func (m *Mux) Stats(id uint32) (rtpbin.SessionStats, bool) {
	if b, ok := m.bin.(*rtpbin.RTPBin); ok {
		return b.Stats(id)
	}
	return rtpbin.SessionStats{}, false
}
