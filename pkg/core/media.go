package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Media take best from:
// - pion/sdp.MediaDescription
// - port layout of one RTP session: RTP port, RTCP port and SRTP key
type Media struct {
	Kind      string   `json:"kind,omitempty"`      // video or audio
	Direction string   `json:"direction,omitempty"` // sendonly, recvonly
	Codecs    []*Codec `json:"codecs,omitempty"`

	ID string `json:"id,omitempty"` // RTP session id

	Port     int    `json:"port,omitempty"`
	RTCPPort int    `json:"rtcp_port,omitempty"` // 0 means Port + 1
	Key      string `json:"-"`                   // base64 SRTP master key with salt

	Bitrate int `json:"bitrate,omitempty"` // kbit/s, "b=AS"
}

func (m *Media) String() string {
	s := fmt.Sprintf("%s, %s", m.Kind, m.Direction)
	for _, codec := range m.Codecs {
		name := codec.String()

		if strings.Contains(s, name) {
			continue
		}

		s += ", " + name
	}
	if m.Port != 0 {
		s += ", port=" + strconv.Itoa(m.Port)
	}
	return s
}

func (m *Media) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Media) MatchCodec(remote *Codec) *Codec {
	for _, codec := range m.Codecs {
		if codec.Match(remote) {
			return codec
		}
	}
	return nil
}

// GetRTCPPort - explicit RTCP port or the next one after RTP
func (m *Media) GetRTCPPort() int {
	if m.RTCPPort != 0 {
		return m.RTCPPort
	}
	if m.Port != 0 {
		return m.Port + 1
	}
	return 0
}

// MarshalSDP - address is the host that owns the ports
func MarshalSDP(name, address string, medias []*Media) ([]byte, error) {
	if address == "" {
		address = "0.0.0.0"
	}

	sd := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username: "-", SessionID: 1, SessionVersion: 1,
			NetworkType: "IN", AddressType: "IP4", UnicastAddress: address,
		},
		SessionName: sdp.SessionName(name),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN", AddressType: "IP4", Address: &sdp.Address{
				Address: address,
			},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{}},
		},
	}

	for _, media := range medias {
		if media.Codecs == nil {
			continue
		}

		codec := media.Codecs[0]

		proto := ProtoAVPF
		if media.Key != "" {
			proto = ProtoSAVPF
		}

		md := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:  media.Kind,
				Port:   sdp.RangedPort{Value: media.Port},
				Protos: []string{"RTP", proto},
			},
		}
		md.WithCodec(codec.PayloadType, codec.Name, codec.ClockRate, codec.Channels, codec.FmtpLine)

		if media.Bitrate > 0 {
			md.Bandwidth = []sdp.Bandwidth{{Type: "AS", Bandwidth: uint64(media.Bitrate)}}
		}
		if port := media.GetRTCPPort(); port != 0 {
			md.WithValueAttribute("rtcp", strconv.Itoa(port))
		}
		if media.Key != "" {
			md.WithValueAttribute("crypto", "1 "+CryptoSuite+" inline:"+media.Key)
		}
		if media.ID != "" {
			md.WithValueAttribute("mid", media.ID)
		}
		if media.Direction != "" {
			md.WithPropertyAttribute(media.Direction)
		}

		sd.MediaDescriptions = append(sd.MediaDescriptions, md)
	}

	return sd.Marshal()
}

// UnmarshalSDP returns connection address and medias with ports
func UnmarshalSDP(data []byte) (address string, medias []*Media, err error) {
	sd := &sdp.SessionDescription{}
	if err = sd.Unmarshal(data); err != nil {
		return
	}

	if ci := sd.ConnectionInformation; ci != nil && ci.Address != nil {
		address = ci.Address.Address
	}

	for _, md := range sd.MediaDescriptions {
		if address == "" && md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			address = md.ConnectionInformation.Address.Address
		}
		medias = append(medias, UnmarshalMedia(md))
	}

	if len(medias) == 0 {
		err = errors.New("sdp: no medias")
	}
	return
}

func UnmarshalMedia(md *sdp.MediaDescription) *Media {
	m := &Media{
		Kind: md.MediaName.Media,
		Port: md.MediaName.Port.Value,
	}

	for _, bw := range md.Bandwidth {
		if bw.Type == "AS" {
			m.Bitrate = int(bw.Bandwidth)
		}
	}

	for _, attr := range md.Attributes {
		switch attr.Key {
		case DirectionSendonly, DirectionRecvonly, DirectionSendRecv:
			m.Direction = attr.Key
		case "control", "mid":
			m.ID = attr.Value
		case "rtcp":
			// a=rtcp:5001 IN IP4 10.0.0.1
			port, _, _ := strings.Cut(attr.Value, " ")
			m.RTCPPort, _ = strconv.Atoi(port)
		case "crypto":
			if key := cryptoKey(attr.Value); key != "" {
				m.Key = key
			}
		}
	}

	for _, format := range md.MediaName.Formats {
		m.Codecs = append(m.Codecs, UnmarshalCodec(md, format))
	}

	return m
}

// cryptoKey - `1 AES_CM_128_HMAC_SHA1_80 inline:<key>|2^20|1:1`
func cryptoKey(value string) string {
	fields := strings.Fields(value)
	if len(fields) < 3 || fields[1] != CryptoSuite {
		return ""
	}
	key, ok := strings.CutPrefix(fields[2], "inline:")
	if !ok {
		return ""
	}
	key, _, _ = strings.Cut(key, "|")
	return key
}

// FindMedia - first media of kind
func FindMedia(medias []*Media, kind string) *Media {
	for _, media := range medias {
		if media.Kind == kind {
			return media
		}
	}
	return nil
}
