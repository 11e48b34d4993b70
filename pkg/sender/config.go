package sender

import (
	"errors"
	"fmt"

	"github.com/streaminsync/streaminsync/pkg/receiver"
)

var ErrConfiguration = errors.New("sender: wrong configuration")

// Config - where to send one audio/video pair, ports are the receiver
// session ports: remote RTP, remote RTCP and local RTCP for each kind
type Config struct {
	ReceiverIP string `json:"receiver_ip" yaml:"receiver_ip"`
	Ports      [6]int `json:"ports" yaml:"ports"`
	VideoID    uint32 `json:"video_id" yaml:"video_id"`
	AudioID    uint32 `json:"audio_id" yaml:"audio_id"`

	// kbit/s, announced in SDP
	Bitrate   int `json:"bitrate" yaml:"bitrate"`
	Width     int `json:"width" yaml:"width"`
	Height    int `json:"height" yaml:"height"`
	Framerate int `json:"framerate" yaml:"framerate"`
	MTU       int `json:"mtu" yaml:"mtu"`

	Key string `json:"srtp_key,omitempty" yaml:"srtp_key"`
}

func DefaultConfig() Config {
	video, audio := receiver.IDsFrom(0)
	return Config{
		ReceiverIP: "127.0.0.1",
		Ports:      receiver.PortsFrom(receiver.DefaultPortBase),
		VideoID:    video,
		AudioID:    audio,
		Bitrate:    3000,
		Width:      1920,
		Height:     1080,
		Framerate:  30,
		MTU:        1400,
	}
}

// Session - the same session as the receiver sees it
func (c *Config) Session() receiver.Config {
	return receiver.Config{
		VideoID: c.VideoID,
		AudioID: c.AudioID,
		Dest:    c.ReceiverIP,
		Ports:   c.Ports,
		Key:     c.Key,
	}
}

func (c *Config) Validate() error {
	session := c.Session()
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if c.MTU <= 12+2 {
		return fmt.Errorf("%w: wrong mtu %d", ErrConfiguration, c.MTU)
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("%w: wrong framerate %d", ErrConfiguration, c.Framerate)
	}
	return nil
}
