// Package opus - elements for Opus audio: rtpopusdepay, opusdec and rtpopuspay
package opus

import (
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

const (
	ClockRate   = 48000
	PayloadType = 96
)

const MediaType = "audio/x-opus"

func NewCaps(channels int) *graph.Caps {
	return graph.NewCaps(MediaType, "rate", ClockRate, "channels", channels)
}

// NewRTPCaps - caps for udpsrc of the audio stream
func NewRTPCaps(pt int) *graph.Caps {
	return graph.NewCaps(
		"application/x-rtp", "media", "audio", "clock-rate", ClockRate,
		"encoding-name", "OPUS", "payload", pt,
	)
}

// Header - TOC byte of an Opus packet, RFC 6716 section 3.1
type Header struct {
	Mode       string // silk, hybrid or celt
	SampleRate uint16
	FrameSize  time.Duration
	Channels   byte
	Frames     byte
}

func UnmarshalHeader(b []byte) *Header {
	if len(b) == 0 {
		return nil
	}

	h := &Header{Channels: 1}
	h.Mode, h.SampleRate, h.FrameSize = decodeConfig(b[0] >> 3)
	if b[0]&0b100 != 0 {
		h.Channels = 2
	}

	switch b[0] & 0b11 {
	case 0:
		h.Frames = 1
	case 1, 2:
		h.Frames = 2
	default:
		// arbitrary number of frames, the count is in the next byte
		if len(b) > 1 {
			h.Frames = b[1] & 0b11_1111
		}
	}
	return h
}

var (
	silkRates   = [...]uint16{8000, 12000, 16000}
	hybridRates = [...]uint16{24000, 48000}
	celtRates   = [...]uint16{8000, 16000, 24000, 48000}

	silkFrames   = [...]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond}
	hybridFrames = [...]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	celtFrames   = [...]time.Duration{2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
)

// decodeConfig - config is 5 bits: 0..11 SILK, 12..15 hybrid, 16..31 CELT
func decodeConfig(config byte) (mode string, rate uint16, frame time.Duration) {
	switch {
	case config < 12:
		return "silk", silkRates[config>>2], silkFrames[config&3]
	case config < 16:
		return "hybrid", hybridRates[(config-12)>>1], hybridFrames[config&1]
	default:
		return "celt", celtRates[(config-16)>>2&3], celtFrames[config&3]
	}
}

// Duration - audio length of the whole packet
func (h *Header) Duration() time.Duration {
	return h.FrameSize * time.Duration(h.Frames)
}

// Samples - per channel, at 48 kHz output rate
func (h *Header) Samples() int {
	return int(h.Duration() * ClockRate / time.Second)
}
