package core

import (
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/require"
)

func TestSDP(t *testing.T) {
	medias := []*Media{
		{
			Kind: KindVideo, Direction: DirectionRecvonly, ID: "0", Port: 5000, Bitrate: 3000,
			Codecs: []*Codec{{Name: CodecH264, ClockRate: 90000, PayloadType: 96, FmtpLine: "packetization-mode=1"}},
		},
		{
			Kind: KindAudio, Direction: DirectionRecvonly, ID: "1", Port: 5003, RTCPPort: 6004,
			Key:    "WVNfX19zZW1jdGwgKCkgewkyMjA7fQp9CnVubGVz",
			Codecs: []*Codec{{Name: CodecOpus, ClockRate: 48000, Channels: 2, PayloadType: 96}},
		},
	}

	data, err := MarshalSDP("streaminsync", "10.0.0.5", medias)
	require.Nil(t, err)

	sd := &sdp.SessionDescription{}
	require.Nil(t, sd.Unmarshal(data))
	require.Equal(t, []string{"RTP", "AVPF"}, sd.MediaDescriptions[0].MediaName.Protos)
	require.Equal(t, []string{"RTP", "SAVPF"}, sd.MediaDescriptions[1].MediaName.Protos)

	address, medias2, err := UnmarshalSDP(data)
	require.Nil(t, err)
	require.Equal(t, "10.0.0.5", address)
	require.Len(t, medias2, 2)

	video := FindMedia(medias2, KindVideo)
	require.Equal(t, "0", video.ID)
	require.Equal(t, 5000, video.Port)
	require.Equal(t, 5001, video.GetRTCPPort())
	require.Equal(t, DirectionRecvonly, video.Direction)
	require.Equal(t, 3000, video.Bitrate)
	require.Equal(t, &Codec{Name: CodecH264, ClockRate: 90000, PayloadType: 96, FmtpLine: "packetization-mode=1"}, video.Codecs[0])

	audio := FindMedia(medias2, KindAudio)
	require.Equal(t, "1", audio.ID)
	require.Equal(t, 6004, audio.GetRTCPPort())
	require.Equal(t, medias[1].Key, audio.Key)
	require.Equal(t, uint16(2), audio.Codecs[0].Channels)
}

func TestUnmarshalSDP(t *testing.T) {
	s := `v=0
o=- 0 0 IN IP4 192.168.1.10
s=sender
c=IN IP4 192.168.1.10
t=0 0
m=video 6000 RTP/AVP 96
a=rtpmap:96 H264/90000 
a=fmtp:96 packetization-mode=1
a=rtcp:6001 IN IP4 192.168.1.10
m=audio 6003 RTP/AVP 0 97
a=rtpmap:97 opus/48000/2
`
	address, medias, err := UnmarshalSDP([]byte(s))
	require.Nil(t, err)
	require.Equal(t, "192.168.1.10", address)
	require.Equal(t, 6001, medias[0].RTCPPort)
	require.Equal(t, uint32(90000), medias[0].Codecs[0].ClockRate)
	require.Equal(t, "packetization-mode=1", medias[0].Codecs[0].FmtpLine)

	// static payload type without rtpmap
	require.Equal(t, "0", medias[1].Codecs[0].Name)
	require.Equal(t, uint8(0), medias[1].Codecs[0].PayloadType)

	codec := medias[1].MatchCodec(&Codec{Name: CodecOpus, ClockRate: 48000})
	require.NotNil(t, codec)
	require.Equal(t, uint8(97), codec.PayloadType)
	require.Nil(t, medias[0].MatchCodec(&Codec{Name: CodecOpus}))

	_, _, err = UnmarshalSDP([]byte("v=0\r\no=- 0 0 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"))
	require.NotNil(t, err)
}

func TestCodec(t *testing.T) {
	codec := &Codec{Name: CodecOpus, ClockRate: 48000, Channels: 2, PayloadType: 96}
	require.Equal(t, "96 OPUS/48000/2", codec.String())
	require.True(t, codec.Match(&Codec{Name: CodecOpus}))
	require.True(t, codec.Match(&Codec{Name: CodecOpus, ClockRate: 48000, Channels: 2}))
	require.False(t, codec.Match(&Codec{Name: CodecOpus, ClockRate: 16000}))
	require.False(t, codec.Match(&Codec{Name: CodecH264}))
}

func TestCryptoKey(t *testing.T) {
	require.Equal(t, "key", cryptoKey("1 AES_CM_128_HMAC_SHA1_80 inline:key|2^20|1:32"))
	require.Equal(t, "key", cryptoKey("1 AES_CM_128_HMAC_SHA1_80 inline:key"))
	require.Equal(t, "", cryptoKey("1 AES_256_CM_HMAC_SHA1_80 inline:key"))
	require.Equal(t, "", cryptoKey("1 AES_CM_128_HMAC_SHA1_80"))
}
