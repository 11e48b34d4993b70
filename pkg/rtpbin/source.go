package rtpbin

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

// packets behind the highest sequence treated as a sender restart
const maxMisorder = 100

// source - remote stream with one SSRC inside a session
type source struct {
	ssrc      uint32
	pt        uint8
	clockRate uint32
	caps      *graph.Caps
	pad       *base.Pad

	// sequence numbers, RFC 3550 A.1
	init     bool
	baseSeq  uint32
	maxSeq   uint16
	cycles   uint32
	received uint32
	discont  bool

	expectedPrior uint32
	receivedPrior uint32

	// interarrival jitter in timestamp units, RFC 3550 A.8
	transit int64
	jitter  float64

	// extended timestamps
	lastTS   uint32
	tsCycles uint64
	haveTS   bool

	// arrival based mapping, before the first sender report
	haveBase bool
	baseExt  uint64
	baseTime time.Duration

	// sender report mapping
	haveSR     bool
	srNTP      time.Time
	srExt      int64
	lsr        uint32
	lsrArrival time.Time

	// NACK generator binding
	info   *interceptor.StreamInfo
	reader interceptor.RTPReader
	feed   *packetFeed
}

func newSource(ssrc uint32, pt uint8, caps *graph.Caps) *source {
	s := &source{ssrc: ssrc, pt: pt, clockRate: 90000}
	if caps != nil {
		if rate, ok := caps.Int("clock-rate"); ok && rate > 0 {
			s.clockRate = uint32(rate)
		}
		s.caps = caps.Copy().Set("ssrc", int(ssrc)).Set("payload", int(pt))
	} else {
		s.caps = graph.NewCaps("application/x-rtp", "clock-rate", int(s.clockRate), "ssrc", int(ssrc), "payload", int(pt))
	}
	return s
}

// updateSeq returns false for duplicate and late packets,
// a gap marks the source discont
func (s *source) updateSeq(seq uint16) bool {
	if !s.init {
		s.restart(seq)
		return true
	}

	delta := seq - s.maxSeq
	switch {
	case delta == 0:
		return false
	case delta < 0x8000:
		if seq < s.maxSeq {
			s.cycles += 1 << 16
		}
		if delta > 1 {
			s.discont = true
		}
		s.maxSeq = seq
		s.received++
		return true
	case -delta > maxMisorder:
		// sender restarted sequence numbers
		s.restart(seq)
		s.discont = true
		return true
	}
	return false
}

func (s *source) restart(seq uint16) {
	s.init = true
	s.baseSeq = uint32(seq)
	s.maxSeq = seq
	s.cycles = 0
	s.received = 1
	s.expectedPrior = 0
	s.receivedPrior = 0
}

func (s *source) extendedMax() uint32 {
	return s.cycles + uint32(s.maxSeq)
}

// extendTS unwraps 32 bit RTP timestamp
func (s *source) extendTS(ts uint32) uint64 {
	if !s.haveTS {
		s.haveTS = true
		s.lastTS = ts
		return uint64(ts)
	}
	diff := int32(ts - s.lastTS)
	if diff > 0 && ts < s.lastTS {
		s.tsCycles += 1 << 32
	}
	if diff > 0 {
		s.lastTS = ts
		return s.tsCycles + uint64(ts)
	}
	// older timestamp, may belong to previous cycle
	if ts > s.lastTS && s.tsCycles > 0 {
		return s.tsCycles - 1<<32 + uint64(ts)
	}
	return s.tsCycles + uint64(ts)
}

func (s *source) updateJitter(ts uint32, arrival time.Duration) {
	transit := durationRTP(arrival, s.clockRate) - int64(ts)
	if s.transit != 0 {
		d := transit - s.transit
		if d < 0 {
			d = -d
		}
		s.jitter += (float64(d) - s.jitter) / 16
	}
	s.transit = transit
}

// pts maps RTP timestamp to pipeline running time
func (s *source) pts(ext uint64, arrival time.Duration, baseTime time.Time, synced bool) time.Duration {
	if synced && s.haveSR && !baseTime.IsZero() {
		sender := s.srNTP.Add(rtpDuration(int64(ext)-s.srExt, s.clockRate))
		if pts := sender.Sub(baseTime); pts > 0 {
			return pts
		}
		return 0
	}

	if !s.haveBase {
		s.haveBase = true
		s.baseExt = ext
		s.baseTime = arrival
	}
	return s.baseTime + rtpDuration(int64(ext)-int64(s.baseExt), s.clockRate)
}

// applySR returns false when the report is ignored
func (s *source) applySR(sr *rtcp.SenderReport, now time.Time, maxDiff time.Duration) bool {
	var srExt int64
	if s.haveTS {
		ahead := int32(sr.RTPTime - s.lastTS)
		if maxDiff >= 0 && rtpDuration(int64(ahead), s.clockRate) > maxDiff {
			return false
		}
		srExt = int64(s.tsCycles+uint64(s.lastTS)) + int64(ahead)
	} else {
		srExt = int64(sr.RTPTime)
	}

	s.haveSR = true
	s.srNTP = fromNTP(sr.NTPTime)
	s.srExt = srExt
	s.lsr = ntpMiddle(sr.NTPTime)
	s.lsrArrival = now
	return true
}

func (s *source) receptionReport(now time.Time) rtcp.ReceptionReport {
	extMax := s.extendedMax()
	expected := extMax - s.baseSeq + 1

	var lost uint32
	if expected > s.received {
		lost = expected - s.received
	}

	expectedInterval := expected - s.expectedPrior
	receivedInterval := s.received - s.receivedPrior
	s.expectedPrior = expected
	s.receivedPrior = s.received

	var fraction uint8
	if expectedInterval > 0 && expectedInterval > receivedInterval {
		fraction = uint8(min((expectedInterval-receivedInterval)<<8/expectedInterval, 255))
	}

	rr := rtcp.ReceptionReport{
		SSRC:               s.ssrc,
		FractionLost:       fraction,
		TotalLost:          lost & 0xFFFFFF,
		LastSequenceNumber: extMax,
		Jitter:             uint32(s.jitter),
	}
	if s.haveSR {
		rr.LastSenderReport = s.lsr
		// 1/65536 seconds
		rr.Delay = uint32(now.Sub(s.lsrArrival) * 65536 / time.Second)
	}
	return rr
}

// packetFeed hands one packet to an interceptor RTPReader
type packetFeed struct {
	data []byte
}

func (f *packetFeed) Read(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
	n := copy(b, f.data)
	return n, a, nil
}
