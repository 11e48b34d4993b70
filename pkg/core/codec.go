package core

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

type Codec struct {
	Name        string // H264, OPUS
	ClockRate   uint32 // 90000, 48000
	Channels    uint16 // 0, 1, 2
	FmtpLine    string
	PayloadType uint8
}

// String - rtpmap style: `96 OPUS/48000/2`
func (c *Codec) String() string {
	s := strconv.Itoa(int(c.PayloadType)) + " " + c.Name
	if c.ClockRate != 0 {
		s += "/" + strconv.FormatUint(uint64(c.ClockRate), 10)
	}
	if c.Channels > 0 {
		s += "/" + strconv.Itoa(int(c.Channels))
	}
	return s
}

// Match - zero clock rate or channels in want match any value
func (c *Codec) Match(want *Codec) bool {
	if c.Name != want.Name {
		return false
	}
	if want.ClockRate != 0 && c.ClockRate != want.ClockRate {
		return false
	}
	return want.Channels == 0 || c.Channels == want.Channels
}

// UnmarshalCodec reads rtpmap and fmtp of one payload type, a format
// without rtpmap keeps its number as name
func UnmarshalCodec(md *sdp.MediaDescription, format string) *Codec {
	pt, _ := strconv.ParseUint(format, 10, 8)
	c := &Codec{Name: format, PayloadType: uint8(pt)}

	prefix := format + " "
	var rtpmap, fmtp bool
	for _, attr := range md.Attributes {
		if !strings.HasPrefix(attr.Value, prefix) {
			continue
		}
		switch {
		case attr.Key == "rtpmap" && !rtpmap:
			parseRtpmap(c, attr.Value[len(prefix):])
			rtpmap = true
		case attr.Key == "fmtp" && !fmtp:
			c.FmtpLine = attr.Value[len(prefix):]
			fmtp = true
		}
	}
	return c
}

// parseRtpmap - `H264/90000`, `opus/48000/2`, some cameras add a trailing space
func parseRtpmap(c *Codec, s string) {
	fields := strings.Split(strings.TrimSpace(s), "/")
	c.Name = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		rate, _ := strconv.ParseUint(fields[1], 10, 32)
		c.ClockRate = uint32(rate)
	}
	if len(fields) > 2 {
		channels, _ := strconv.ParseUint(fields[2], 10, 16)
		c.Channels = uint16(channels)
	}
}
