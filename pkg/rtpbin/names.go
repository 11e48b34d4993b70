package rtpbin

import (
	"fmt"
	"strconv"
	"strings"
)

// Pad name templates, the receiver links dynamic pads by parsing RecvRTPSrc
const (
	RecvRTPSink  = "recv_rtp_sink_%d"
	RecvRTCPSink = "recv_rtcp_sink_%d"
	SendRTCPSrc  = "send_rtcp_src_%d"
	SendRTPSink  = "send_rtp_sink_%d"
	SendRTPSrc   = "send_rtp_src_%d"
	RecvRTPSrc   = "recv_rtp_src_%d_%d_%d"
)

const recvRTPSrcPrefix = "recv_rtp_src_"

func PadName(template string, id uint32) string {
	return fmt.Sprintf(template, id)
}

func RecvRTPSrcName(id, ssrc uint32, pt uint8) string {
	return fmt.Sprintf(RecvRTPSrc, id, ssrc, pt)
}

// ParseRecvRTPSrc - "recv_rtp_src_0_3735928559_96" => 0, 3735928559, 96
func ParseRecvRTPSrc(name string) (id, ssrc uint32, pt uint8, ok bool) {
	if !strings.HasPrefix(name, recvRTPSrcPrefix) {
		return
	}

	ss := strings.Split(name[len(recvRTPSrcPrefix):], "_")
	if len(ss) != 3 {
		return
	}

	i, err := strconv.ParseUint(ss[0], 10, 32)
	if err != nil {
		return
	}
	s, err := strconv.ParseUint(ss[1], 10, 32)
	if err != nil {
		return
	}
	p, err := strconv.ParseUint(ss[2], 10, 7)
	if err != nil {
		return
	}

	return uint32(i), uint32(s), uint8(p), true
}

type padKind byte

const (
	kindUnknown padKind = iota
	kindRecvRTPSink
	kindRecvRTCPSink
	kindSendRTCPSrc
	kindSendRTPSink
	kindSendRTPSrc
	kindRecvRTPSrc
)

var templates = []struct {
	prefix string
	kind   padKind
}{
	{"recv_rtp_sink_", kindRecvRTPSink},
	{"recv_rtcp_sink_", kindRecvRTCPSink},
	{"send_rtcp_src_", kindSendRTCPSrc},
	{"send_rtp_sink_", kindSendRTPSink},
	{"send_rtp_src_", kindSendRTPSrc},
}

func parsePadName(name string) (padKind, uint32) {
	if id, _, _, ok := ParseRecvRTPSrc(name); ok {
		return kindRecvRTPSrc, id
	}
	for _, t := range templates {
		if !strings.HasPrefix(name, t.prefix) {
			continue
		}
		id, err := strconv.ParseUint(name[len(t.prefix):], 10, 32)
		if err != nil {
			return kindUnknown, 0
		}
		return t.kind, uint32(id)
	}
	return kindUnknown, 0
}
