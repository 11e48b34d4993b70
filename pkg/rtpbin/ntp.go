package rtpbin

import (
	"time"
)

// seconds between 1900-01-01 and 1970-01-01
const ntpEpochOffset = 2208988800

// toNTP converts time to 64 bit NTP timestamp (32.32 fixed point)
func toNTP(t time.Time) uint64 {
	nsec := uint64(t.UnixNano()) + ntpEpochOffset*uint64(time.Second)
	sec := nsec / uint64(time.Second)
	frac := (nsec % uint64(time.Second)) << 32 / uint64(time.Second)
	return sec<<32 | frac
}

func fromNTP(ntp uint64) time.Time {
	sec := int64(ntp>>32) - ntpEpochOffset
	nsec := int64((ntp & 0xFFFFFFFF) * uint64(time.Second) >> 32)
	return time.Unix(sec, nsec)
}

// middle 32 bits, used in LSR field of reception reports
func ntpMiddle(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}

// rtpDuration converts RTP timestamp difference to duration
func rtpDuration(delta int64, clockRate uint32) time.Duration {
	if clockRate == 0 {
		return 0
	}
	return time.Duration(delta * int64(time.Second) / int64(clockRate))
}

func durationRTP(d time.Duration, clockRate uint32) int64 {
	return int64(d) * int64(clockRate) / int64(time.Second)
}
