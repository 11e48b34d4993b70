package receiver

import (
	"fmt"
	"net"

	"github.com/streaminsync/streaminsync/pkg/srtp"
)

const DefaultPortBase = 5000

// Port indexes in Config.Ports
const (
	PortVideoRTP = iota
	PortVideoRTCP
	PortVideoRTCPOut
	PortAudioRTP
	PortAudioRTCP
	PortAudioRTCPOut
)

type Kind byte

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Config of one session: two RTP sessions on six UDP ports
type Config struct {
	VideoID uint32 `json:"video_id" yaml:"video_id"`
	AudioID uint32 `json:"audio_id" yaml:"audio_id"`
	// Dest - sender host, receives our RTCP
	Dest  string `json:"dest" yaml:"dest"`
	Ports [6]int `json:"ports" yaml:"ports"`
	// Key - base64 SRTP master key with salt, empty for plain RTP
	Key string `json:"srtp_key,omitempty" yaml:"srtp_key"`
}

// PortsFrom - six consecutive ports starting from base
func PortsFrom(base int) (ports [6]int) {
	for i := range ports {
		ports[i] = base + i
	}
	return
}

// IDsFrom - session ids of one source: video = source * 2, audio = video + 1
func IDsFrom(sourceID uint32) (videoID, audioID uint32) {
	videoID = sourceID * 2
	return videoID, videoID + 1
}

func (c *Config) ID(kind Kind) uint32 {
	if kind == KindVideo {
		return c.VideoID
	}
	return c.AudioID
}

// RTPPort, RTCPPort, RTCPOutPort - ports of one media kind
func (c *Config) RTPPort(kind Kind) int {
	return c.Ports[int(kind)*3]
}

func (c *Config) RTCPPort(kind Kind) int {
	return c.Ports[int(kind)*3+1]
}

func (c *Config) RTCPOutPort(kind Kind) int {
	return c.Ports[int(kind)*3+2]
}

func (c *Config) Validate() error {
	if c.VideoID == c.AudioID {
		return fmt.Errorf("%w: video_id and audio_id are both %d", ErrConfiguration, c.VideoID)
	}
	if net.ParseIP(c.Dest) == nil {
		return fmt.Errorf("%w: wrong dest %q", ErrConfiguration, c.Dest)
	}

	seen := map[int]bool{}
	for i, port := range c.Ports {
		if port <= 0 || port > 0xFFFF {
			return fmt.Errorf("%w: wrong port[%d]=%d", ErrConfiguration, i, port)
		}
		// RTCP out ports are remote, they can repeat local ones
		if i == PortVideoRTCPOut || i == PortAudioRTCPOut {
			continue
		}
		if seen[port] {
			return fmt.Errorf("%w: duplicate port %d", ErrConfiguration, port)
		}
		seen[port] = true
	}

	if c.Key != "" {
		if _, _, err := srtp.ParseKey(c.Key); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	return nil
}
