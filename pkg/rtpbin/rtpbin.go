// Package rtpbin is the RTP session multiplexer element "rtpbin".
//
// Each session id owns request pads for RTP and RTCP in both directions.
// Incoming SSRCs are discovered from traffic and announced as dynamic pads
// "recv_rtp_src_<id>_<ssrc>_<pt>" via the pad-added signal.
package rtpbin

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const Factory = "rtpbin"

// ntp-time-source values
const (
	NTPTimeSourceNTP = iota
	NTPTimeSourceUnix
	NTPTimeSourceRunningTime
	NTPTimeSourceClockTime
)

// buffer-mode values
const (
	BufferModeNone   = 0
	BufferModeSlave  = 1
	BufferModeBuffer = 2
	BufferModeSynced = 4
)

// rtp-profile values
const (
	ProfileAVP   = 1
	ProfileSAVP  = 2
	ProfileAVPF  = 3
	ProfileSAVPF = 4
)

var ErrReleased = errors.New("rtpbin: session released")

type RTPBin struct {
	*base.Element

	mu       sync.Mutex
	sessions map[uint32]*session

	ticker chan struct{}
	wg     sync.WaitGroup
}

func New(name string) *RTPBin {
	b := &RTPBin{Element: base.NewElement(Factory, name), sessions: map[uint32]*session{}}
	b.Init(b)

	b.Install("latency", 200) // ms
	b.Install("ntp-time-source", NTPTimeSourceNTP)
	b.Install("ntp-sync", false)
	b.Install("buffer-mode", BufferModeSlave)
	b.Install("max-rtcp-rtp-time-diff", 1000) // ms, -1 disables
	b.Install("do-lost", false)
	b.Install("do-retransmission", false)
	b.Install("drop-on-latency", false)
	b.Install("rtp-profile", ProfileAVP)
	b.Install("rtcp-interval", 1000) // ms
	b.Install("sdes-cname", "streaminsync")

	b.OnRequestPad(b.requestPad)
	b.OnReleasePad(b.releasePad)

	b.OnStateChange(func(from, to graph.State) error {
		if to == graph.StatePlaying && from < graph.StatePlaying {
			b.startRTCP()
		} else if from == graph.StatePlaying && to < graph.StatePlaying {
			b.stopRTCP()
		}
		if to == graph.StateNull {
			b.closeInterceptors()
		}
		return nil
	})
	return b
}

// Sessions - ids with at least one pad
func (b *RTPBin) Sessions() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]uint32, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (b *RTPBin) requestPad(name string) (graph.Pad, error) {
	kind, id := parsePadName(name)

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sessions[id]
	if s == nil {
		s = newSession(id)
	}

	var pad *base.Pad
	switch kind {
	case kindRecvRTPSink:
		if s.recvRTPSink != nil {
			return nil, fmt.Errorf("%w: %s", graph.ErrNameExists, name)
		}
		pad = base.NewSinkPad(name, func(_ *base.Pad, buf *graph.Buffer) error {
			return b.chainRTP(s, buf)
		})
		s.recvRTPSink = pad
	case kindRecvRTCPSink:
		if s.recvRTCPSink != nil {
			return nil, fmt.Errorf("%w: %s", graph.ErrNameExists, name)
		}
		pad = base.NewSinkPad(name, func(_ *base.Pad, buf *graph.Buffer) error {
			return b.chainRTCP(s, buf)
		})
		s.recvRTCPSink = pad
	case kindSendRTCPSrc:
		if s.sendRTCPSrc.Load() != nil {
			return nil, fmt.Errorf("%w: %s", graph.ErrNameExists, name)
		}
		pad = base.NewSrcPad(name)
		s.sendRTCPSrc.Store(pad)
	case kindSendRTPSink:
		if s.sendRTPSink != nil {
			return nil, fmt.Errorf("%w: %s", graph.ErrNameExists, name)
		}
		src := base.NewSrcPad(PadName(SendRTPSrc, id))
		if err := b.AddPad(src); err != nil {
			return nil, err
		}
		pad = base.NewSinkPad(name, func(_ *base.Pad, buf *graph.Buffer) error {
			return b.chainSendRTP(s, buf)
		})
		s.sendRTPSink = pad
		s.sendRTPSrc = src
	default:
		return nil, fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, b.Name(), name)
	}

	if err := b.AddPad(pad); err != nil {
		return nil, err
	}

	b.sessions[id] = s
	return pad, nil
}

func (b *RTPBin) releasePad(pad graph.Pad) error {
	kind, id := parsePadName(pad.Name())

	b.mu.Lock()
	s := b.sessions[id]
	if s == nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, b.Name(), pad.Name())
	}

	var remove []graph.Pad
	var closers []func()

	switch kind {
	case kindRecvRTPSink:
		if s.recvRTPSink != pad {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", graph.ErrNoSuchPad, pad.Name())
		}
		s.recvRTPSink = nil
		remove = append(remove, pad)
		// dynamic pads left by the user go with the sink
		for ssrc, src := range s.sources {
			remove = append(remove, src.pad)
			closers = append(closers, s.unbindSource(src))
			delete(s.sources, ssrc)
		}
	case kindRecvRTCPSink:
		s.recvRTCPSink = nil
		remove = append(remove, pad)
	case kindSendRTCPSrc:
		s.sendRTCPSrc.Store(nil)
		remove = append(remove, pad)
	case kindSendRTPSink, kindSendRTPSrc:
		if s.sendRTPSink != nil {
			remove = append(remove, s.sendRTPSink, s.sendRTPSrc)
		}
		s.sendRTPSink = nil
		s.sendRTPSrc = nil
		closers = append(closers, s.closeResponder())
	case kindRecvRTPSrc:
		src := s.sourceByPad(pad)
		if src == nil {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", graph.ErrNoSuchPad, pad.Name())
		}
		remove = append(remove, pad)
		closers = append(closers, s.unbindSource(src))
		delete(s.sources, src.ssrc)
	default:
		b.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", graph.ErrNoSuchPad, b.Name(), pad.Name())
	}

	if s.empty() {
		closers = append(closers, s.closeGenerator(), s.closeResponder())
		delete(b.sessions, id)
	}
	b.mu.Unlock()

	for _, f := range closers {
		if f != nil {
			f()
		}
	}

	var errs []error
	for _, p := range remove {
		if err := b.RemovePad(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *RTPBin) synced() bool {
	return b.Bool("ntp-sync") || b.Int("buffer-mode") == BufferModeSynced
}

func (b *RTPBin) maxRTCPRTPTimeDiff() time.Duration {
	if ms := b.Int("max-rtcp-rtp-time-diff"); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return -1
}

// now - time for NTP fields of sender reports
func (b *RTPBin) now() time.Time {
	if b.Int("ntp-time-source") == NTPTimeSourceClockTime {
		if p := b.TopLevel(); p != nil {
			return p.Clock().Now()
		}
	}
	return time.Now()
}

func (b *RTPBin) chainRTP(s *session, buf *graph.Buffer) error {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf.Data); err != nil {
		// not RTP, ignore
		return nil
	}

	arrival := buf.PTS
	if arrival == graph.ClockTimeNone {
		if arrival = b.RunningTime(); arrival == graph.ClockTimeNone {
			arrival = 0
		}
	}

	doLost := b.Bool("do-lost")
	doRetransmission := b.Bool("do-retransmission")
	dropOnLatency := b.Bool("drop-on-latency")
	latency := time.Duration(b.Int("latency")) * time.Millisecond
	synced := b.synced()

	var baseTime time.Time
	if p := b.TopLevel(); p != nil {
		baseTime = p.BaseTime()
	}

	b.mu.Lock()
	if b.sessions[s.id] != s || s.recvRTPSink == nil {
		b.mu.Unlock()
		return ErrReleased
	}

	var added, removed *base.Pad

	src := s.sources[pkt.SSRC]
	if src == nil || src.pt != pkt.PayloadType {
		old := src
		src = newSource(pkt.SSRC, pkt.PayloadType, buf.Caps)
		src.pad = base.NewSrcPad(RecvRTPSrcName(s.id, pkt.SSRC, pkt.PayloadType))
		if old != nil {
			// payload type changed, the NACK binding is kept for the same SSRC
			removed = old.pad
			src.info, src.reader, src.feed = old.info, old.reader, old.feed
		}
		s.sources[pkt.SSRC] = src
		added = src.pad
	}

	if !src.updateSeq(pkt.SequenceNumber) {
		b.mu.Unlock()
		return nil
	}

	ext := src.extendTS(pkt.Timestamp)
	if p, ok := s.pendingSR[pkt.SSRC]; ok {
		src.applySR(p.sr, p.arrival, b.maxRTCPRTPTimeDiff())
		delete(s.pendingSR, pkt.SSRC)
	}
	src.updateJitter(pkt.Timestamp, arrival)
	pts := src.pts(ext, arrival, baseTime, synced)

	out := &graph.Buffer{Data: buf.Data, PTS: pts, Duration: graph.ClockTimeNone, Caps: src.caps, RTP: pkt}
	if src.discont {
		src.discont = false
		if doLost {
			out.Flags |= graph.FlagDiscont
		}
	}
	if pkt.Marker {
		out.Flags |= graph.FlagMarker
	}

	var reader interceptor.RTPReader
	if doRetransmission {
		reader = s.bindSource(src)
	}
	feed := src.feed
	pad := src.pad
	b.mu.Unlock()

	if removed != nil {
		_ = b.RemovePad(removed)
	}
	if added != nil {
		if err := b.AddPad(added); err != nil {
			return err
		}
		b.EmitPadAdded(added)
	}

	if reader != nil {
		feed.data = buf.Data
		_, _, _ = reader.Read(make([]byte, len(buf.Data)), nil)
	}
	if dropOnLatency && latency > 0 {
		if now := b.RunningTime(); now != graph.ClockTimeNone && pts+latency < now {
			return nil
		}
	}

	if err := pad.Push(out); err != nil && !errors.Is(err, graph.ErrNotLinked) {
		return err
	}
	return nil
}

func (b *RTPBin) chainRTCP(s *session, buf *graph.Buffer) error {
	pkts, err := rtcp.Unmarshal(buf.Data)
	if err != nil {
		return nil
	}

	now := b.now()
	maxDiff := b.maxRTCPRTPTimeDiff()

	b.mu.Lock()
	if b.sessions[s.id] != s {
		b.mu.Unlock()
		return ErrReleased
	}

	var byes []uint32
	for _, pkt := range pkts {
		switch pkt := pkt.(type) {
		case *rtcp.SenderReport:
			if src := s.sources[pkt.SSRC]; src != nil {
				src.applySR(pkt, now, maxDiff)
			} else {
				s.pendingSR[pkt.SSRC] = pendingSR{sr: pkt, arrival: now}
			}
			s.receiveReports(pkt.Reports)
		case *rtcp.ReceiverReport:
			s.receiveReports(pkt.Reports)
		case *rtcp.Goodbye:
			byes = append(byes, pkt.Sources...)
		}
	}
	reader := s.responderReader
	feed := s.rtcpFeed
	b.mu.Unlock()

	// retransmission requests go to the nack responder
	if reader != nil {
		feed.data = buf.Data
		_, _, _ = reader.Read(make([]byte, len(buf.Data)), nil)
	}

	for _, ssrc := range byes {
		b.Post(graph.NewElementMessage(b, graph.NewCaps(
			"application/x-rtp-bye", "session", int(s.id), "ssrc", int(ssrc),
		)))
	}
	return nil
}

func (b *RTPBin) chainSendRTP(s *session, buf *graph.Buffer) error {
	pkt := buf.RTP
	if pkt == nil {
		pkt = &rtp.Packet{}
		if err := pkt.Unmarshal(buf.Data); err != nil {
			return err
		}
	}

	now := b.now()

	b.mu.Lock()
	if b.sessions[s.id] != s || s.sendRTPSrc == nil {
		b.mu.Unlock()
		return ErrReleased
	}
	pkt.SSRC = s.ssrc
	s.sent.update(pkt, now, buf.Caps)
	writer := s.bindResponder()
	b.mu.Unlock()

	_, err := writer.Write(&pkt.Header, pkt.Payload, nil)
	return err
}

func (b *RTPBin) startRTCP() {
	ms := b.Int("rtcp-interval")
	if ms <= 0 {
		return
	}

	b.ticker = make(chan struct{})
	b.wg.Add(1)

	go func(done chan struct{}) {
		defer b.wg.Done()

		ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				b.sendReports()
			}
		}
	}(b.ticker)
}

func (b *RTPBin) stopRTCP() {
	if b.ticker != nil {
		close(b.ticker)
		b.ticker = nil
		b.wg.Wait()
	}
}

func (b *RTPBin) sendReports() {
	now := b.now()
	cname := b.Str("sdes-cname")

	type report struct {
		pad  *base.Pad
		data []byte
	}
	var reports []report

	b.mu.Lock()
	for _, s := range b.sessions {
		pad := s.sendRTCPSrc.Load()
		if pad == nil || !pad.IsLinked() {
			continue
		}
		data, err := rtcp.Marshal(s.report(now, cname))
		if err != nil {
			continue
		}
		reports = append(reports, report{pad: pad, data: data})
	}
	b.mu.Unlock()

	for _, r := range reports {
		_ = r.pad.Push(graph.NewBuffer(r.data))
	}
}

func (b *RTPBin) closeInterceptors() {
	var closers []func()

	b.mu.Lock()
	for _, s := range b.sessions {
		for _, src := range s.sources {
			src.reader = nil
			src.info = nil
		}
		closers = append(closers, s.closeGenerator(), s.closeResponder())
	}
	b.mu.Unlock()

	for _, f := range closers {
		if f != nil {
			f()
		}
	}
}

func randomSSRC() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func newGenerator() (interceptor.Interceptor, error) {
	f, err := nack.NewGeneratorInterceptor(nack.GeneratorInterval(50 * time.Millisecond))
	if err != nil {
		return nil, err
	}
	return f.NewInterceptor("")
}

func newResponder() (interceptor.Interceptor, error) {
	f, err := nack.NewResponderInterceptor(nack.ResponderSize(1024))
	if err != nil {
		return nil, err
	}
	return f.NewInterceptor("")
}
