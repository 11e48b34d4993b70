package graph

import (
	"time"

	"github.com/pion/rtp"
)

const ClockTimeNone time.Duration = -1

type BufferFlags uint16

const (
	FlagDiscont BufferFlags = 1 << iota
	FlagDeltaUnit
	FlagHeader
	FlagMarker
)

type Buffer struct {
	Data     []byte
	PTS      time.Duration
	Duration time.Duration
	Flags    BufferFlags
	Caps     *Caps

	// RTP - parsed packet for buffers inside RTP elements
	RTP *rtp.Packet
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data, PTS: ClockTimeNone, Duration: ClockTimeNone}
}

func (b *Buffer) Has(flag BufferFlags) bool {
	return b.Flags&flag != 0
}

// IsKeyframe - buffer without delta unit flag
func (b *Buffer) IsKeyframe() bool {
	return b.Flags&FlagDeltaUnit == 0
}

// Sample - buffer with caps, as delivered to application sinks
type Sample struct {
	Buffer *Buffer
	Caps   *Caps
}
