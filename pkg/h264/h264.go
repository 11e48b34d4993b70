// Package h264 - elements for H.264 access units in Annex-B format:
// rtph264depay, h264parse, h264dec and rtph264pay
package h264

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

const (
	NALUTypePFrame = 1 // Coded slice of a non-IDR picture
	NALUTypeIFrame = 5 // Coded slice of an IDR picture
	NALUTypeSEI    = 6 // Supplemental enhancement information (SEI)
	NALUTypeSPS    = 7 // Sequence parameter set
	NALUTypePPS    = 8 // Picture parameter set
	NALUTypeAUD    = 9 // Access unit delimiter
)

const (
	naluTypeBitmask = 0x1F
	fuaNALUType     = 28 // RFC 6184 fragmentation unit A
)

const (
	ClockRate   = 90000
	PayloadType = 96
)

const StartCode = "\x00\x00\x00\x01"

const MediaType = "video/x-h264"

// NewCaps - caps of access unit buffers between H.264 elements
func NewCaps() *graph.Caps {
	return graph.NewCaps(MediaType, "stream-format", "byte-stream", "alignment", "au")
}

// NewRTPCaps - caps for udpsrc of the video stream
func NewRTPCaps(pt int) *graph.Caps {
	return graph.NewCaps(
		"application/x-rtp", "media", "video", "clock-rate", ClockRate,
		"encoding-name", "H264", "payload", pt,
	)
}

func NALUType(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1F
}

// SplitNALU - Annex-B access unit to NAL units without start codes
func SplitNALU(au []byte) [][]byte {
	var nalus [][]byte
	start := -1
	for i := 0; i+2 < len(au); {
		if au[i] == 0 && au[i+1] == 0 && au[i+2] == 1 {
			if start >= 0 {
				nalus = appendNALU(nalus, au[start:i])
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 {
		nalus = appendNALU(nalus, au[start:])
	}
	return nalus
}

func appendNALU(nalus [][]byte, nalu []byte) [][]byte {
	// zero before 00 00 01 is the first byte of a 4 byte start code
	for len(nalu) > 0 && nalu[len(nalu)-1] == 0 {
		nalu = nalu[:len(nalu)-1]
	}
	if len(nalu) > 0 {
		nalus = append(nalus, nalu)
	}
	return nalus
}

// JoinNALU - NAL units to Annex-B with 4 byte start codes
func JoinNALU(nalus ...[]byte) []byte {
	var n int
	for _, nalu := range nalus {
		if len(nalu) > 0 {
			n += len(StartCode) + len(nalu)
		}
	}

	b := make([]byte, 0, n)
	for _, nalu := range nalus {
		if len(nalu) > 0 {
			b = append(b, StartCode...)
			b = append(b, nalu...)
		}
	}
	return b
}

// IsKeyframe - check if any NALU in one AU is Keyframe
func IsKeyframe(nalus [][]byte) bool {
	for _, nalu := range nalus {
		switch NALUType(nalu) {
		case NALUTypePFrame:
			return false
		case NALUTypeIFrame:
			return true
		}
	}
	return false
}

// GetParameterSet - SPS and PPS from fmtp line
func GetParameterSet(fmtp string) (sps, pps []byte) {
	i := strings.Index(fmtp, "sprop-parameter-sets=")
	if i < 0 {
		return
	}
	s := fmtp[i+len("sprop-parameter-sets="):]
	if i = strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}

	s1, s2, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return
	}

	sps, _ = base64.StdEncoding.DecodeString(s1)
	pps, _ = base64.StdEncoding.DecodeString(s2)
	return
}

// GetFmtpLine - fmtp for SDP, parameter sets are optional
func GetFmtpLine(sps, pps []byte) string {
	s := "packetization-mode=1"
	if len(sps) >= 4 {
		s += ";profile-level-id=" + hex.EncodeToString(sps[1:4])
		if len(pps) > 0 {
			s += ";sprop-parameter-sets=" + base64.StdEncoding.EncodeToString(sps) +
				"," + base64.StdEncoding.EncodeToString(pps)
		}
	} else {
		// constrained baseline 3.1
		s += ";profile-level-id=42e01f"
	}
	return s
}
