package rtpbin

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

// session - all state of one session id, guarded by RTPBin.mu
type session struct {
	id   uint32
	ssrc uint32

	recvRTPSink  *base.Pad
	recvRTCPSink *base.Pad
	sendRTPSink  *base.Pad
	sendRTPSrc   *base.Pad
	// read by interceptor goroutines without RTPBin.mu
	sendRTCPSrc atomic.Pointer[base.Pad]

	sources   map[uint32]*source
	pendingSR map[uint32]pendingSR

	sent   sendStats
	remote rtcp.ReceptionReport

	generator interceptor.Interceptor

	responder       interceptor.Interceptor
	responderWriter interceptor.RTPWriter
	responderReader interceptor.RTCPReader
	rtcpFeed        *packetFeed
}

type pendingSR struct {
	sr      *rtcp.SenderReport
	arrival time.Time
}

func newSession(id uint32) *session {
	return &session{
		id:        id,
		ssrc:      randomSSRC(),
		sources:   map[uint32]*source{},
		pendingSR: map[uint32]pendingSR{},
	}
}

func (s *session) empty() bool {
	return s.recvRTPSink == nil && s.recvRTCPSink == nil && s.sendRTPSink == nil &&
		s.sendRTCPSrc.Load() == nil && len(s.sources) == 0
}

func (s *session) sourceByPad(pad graph.Pad) *source {
	for _, src := range s.sources {
		if src.pad == pad {
			return src
		}
	}
	return nil
}

func (s *session) receiveReports(reports []rtcp.ReceptionReport) {
	for _, r := range reports {
		if r.SSRC == s.ssrc {
			s.remote = r
		}
	}
}

// report - sender report while sending, receiver report otherwise, plus CNAME
func (s *session) report(now time.Time, cname string) []rtcp.Packet {
	reports := make([]rtcp.ReceptionReport, 0, len(s.sources))
	for _, src := range s.sources {
		reports = append(reports, src.receptionReport(now))
	}

	var pkts []rtcp.Packet
	if s.sent.packets > 0 {
		pkts = append(pkts, &rtcp.SenderReport{
			SSRC:        s.ssrc,
			NTPTime:     toNTP(now),
			RTPTime:     s.sent.rtpTime(now),
			PacketCount: s.sent.packets,
			OctetCount:  s.sent.octets,
			Reports:     reports,
		})
	} else {
		pkts = append(pkts, &rtcp.ReceiverReport{SSRC: s.ssrc, Reports: reports})
	}
	return append(pkts, &rtcp.SourceDescription{
		Chunks: []rtcp.SourceDescriptionChunk{{
			Source: s.ssrc,
			Items:  []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: cname}},
		}},
	})
}

// bindSource returns NACK generator reader for the source
func (s *session) bindSource(src *source) interceptor.RTPReader {
	if src.reader != nil {
		return src.reader
	}

	if s.generator == nil {
		gen, err := newGenerator()
		if err != nil {
			return nil
		}
		gen.BindRTCPWriter(interceptor.RTCPWriterFunc(func(pkts []rtcp.Packet, _ interceptor.Attributes) (int, error) {
			pad := s.sendRTCPSrc.Load()
			if pad == nil {
				return 0, nil
			}
			data, err := rtcp.Marshal(pkts)
			if err != nil {
				return 0, err
			}
			return len(data), pad.Push(graph.NewBuffer(data))
		}))
		s.generator = gen
	}

	src.info = &interceptor.StreamInfo{
		SSRC:         src.ssrc,
		ClockRate:    src.clockRate,
		PayloadType:  src.pt,
		RTCPFeedback: []interceptor.RTCPFeedback{{Type: "nack"}},
	}
	src.feed = &packetFeed{}
	src.reader = s.generator.BindRemoteStream(src.info, src.feed)
	return src.reader
}

// unbindSource returns a function to run without RTPBin.mu
func (s *session) unbindSource(src *source) func() {
	gen, info := s.generator, src.info
	src.reader = nil
	src.info = nil
	if gen == nil || info == nil {
		return nil
	}
	return func() {
		gen.UnbindRemoteStream(info)
	}
}

func (s *session) closeGenerator() func() {
	gen := s.generator
	if gen == nil {
		return nil
	}
	s.generator = nil
	for _, src := range s.sources {
		src.reader = nil
		src.info = nil
	}
	return func() {
		_ = gen.Close()
	}
}

// bindResponder returns writer that keeps sent packets for retransmission
func (s *session) bindResponder() interceptor.RTPWriter {
	if s.responderWriter != nil {
		return s.responderWriter
	}

	pad := s.sendRTPSrc
	writer := interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
		pkt := &rtp.Packet{Header: *header, Payload: payload}
		data, err := pkt.Marshal()
		if err != nil {
			return 0, err
		}
		buf := graph.NewBuffer(data)
		buf.RTP = pkt
		if err = pad.Push(buf); err != nil && !errors.Is(err, graph.ErrNotLinked) {
			return 0, err
		}
		return len(data), nil
	})

	resp, err := newResponder()
	if err != nil {
		s.responderWriter = writer
		return writer
	}

	info := &interceptor.StreamInfo{
		SSRC:         s.ssrc,
		ClockRate:    s.sent.clockRate,
		RTCPFeedback: []interceptor.RTCPFeedback{{Type: "nack"}},
	}
	s.responder = resp
	s.responderWriter = resp.BindLocalStream(info, writer)
	s.rtcpFeed = &packetFeed{}
	s.responderReader = resp.BindRTCPReader(s.rtcpFeed)
	return s.responderWriter
}

func (s *session) closeResponder() func() {
	resp := s.responder
	s.responder = nil
	s.responderWriter = nil
	s.responderReader = nil
	s.rtcpFeed = nil
	if resp == nil {
		return nil
	}
	return func() {
		_ = resp.Close()
	}
}

type sendStats struct {
	packets   uint32
	octets    uint32
	lastTS    uint32
	lastTime  time.Time
	clockRate uint32
}

func (st *sendStats) update(pkt *rtp.Packet, now time.Time, caps *graph.Caps) {
	if st.clockRate == 0 {
		st.clockRate = 90000
		if rate, ok := caps.Int("clock-rate"); ok && rate > 0 {
			st.clockRate = uint32(rate)
		}
	}
	st.packets++
	st.octets += uint32(len(pkt.Payload))
	st.lastTS = pkt.Timestamp
	st.lastTime = now
}

// rtpTime - RTP timestamp extrapolated to now
func (st *sendStats) rtpTime(now time.Time) uint32 {
	return st.lastTS + uint32(durationRTP(now.Sub(st.lastTime), st.clockRate))
}
