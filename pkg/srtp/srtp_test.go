package srtp

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	key, salt, err := ParseKey(GenerateKey())
	require.Nil(t, err)
	require.Len(t, key, 16)
	require.Len(t, salt, 14)

	_, _, err = ParseKey("AAAA")
	require.ErrorIs(t, err, ErrWrongKey)
	_, _, err = ParseKey("not base64!")
	require.ErrorIs(t, err, ErrWrongKey)
}

type collector struct {
	*base.Element
	buffers []*graph.Buffer
}

func newCollector(name string) *collector {
	c := &collector{Element: base.NewElement("collector", name)}
	c.Init(c)
	_ = c.AddPad(base.NewSinkPad("sink", func(_ *base.Pad, buf *graph.Buffer) error {
		c.buffers = append(c.buffers, buf)
		return nil
	}))
	return c
}

func TestRoundTrip(t *testing.T) {
	key := GenerateKey()

	enc := NewEnc("enc")
	require.Nil(t, enc.Set("key", key))
	dec := NewDec("dec")
	require.Nil(t, dec.Set("key", key))
	rtpSink := newCollector("rtp")
	rtcpSink := newCollector("rtcp")
	encrypted := newCollector("encrypted")

	pipe := base.NewPipeline("pipe")
	require.Nil(t, pipe.Add(enc, dec, rtpSink, rtcpSink, encrypted))
	require.Nil(t, graph.LinkPads(enc, "rtp_src", encrypted, "sink"))
	require.Nil(t, graph.LinkPads(enc, "rtcp_src", dec, "rtcp_sink"))
	require.Nil(t, graph.LinkPads(dec, "rtp_src", rtpSink, "sink"))
	require.Nil(t, graph.LinkPads(dec, "rtcp_src", rtcpSink, "sink"))
	require.Nil(t, pipe.SetState(graph.StatePlaying))
	defer pipe.SetState(graph.StateNull)

	packet := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: 1, Timestamp: 1000, SSRC: 0x1234},
		Payload: []byte{1, 2, 3, 4},
	}
	plain, err := packet.Marshal()
	require.Nil(t, err)

	rtpIn := enc.Pad("rtp_sink").(*base.Pad)
	require.Nil(t, rtpIn.Receive(graph.NewBuffer(plain)))
	require.Len(t, encrypted.buffers, 1)
	require.NotEqual(t, plain, encrypted.buffers[0].Data)

	require.Nil(t, dec.Pad("rtp_sink").(*base.Pad).Receive(encrypted.buffers[0]))
	require.Len(t, rtpSink.buffers, 1)
	require.Equal(t, plain, rtpSink.buffers[0].Data)
	require.Equal(t, packet.Payload, rtpSink.buffers[0].RTP.Payload)

	// replay is dropped
	require.Nil(t, dec.Pad("rtp_sink").(*base.Pad).Receive(encrypted.buffers[0]))
	require.Len(t, rtpSink.buffers, 1)

	report, err := rtcp.Marshal([]rtcp.Packet{&rtcp.ReceiverReport{SSRC: 0x1234}})
	require.Nil(t, err)
	require.Nil(t, enc.Pad("rtcp_sink").(*base.Pad).Receive(graph.NewBuffer(report)))
	require.Len(t, rtcpSink.buffers, 1)
	require.Equal(t, report, rtcpSink.buffers[0].Data)
}

func TestWrongKey(t *testing.T) {
	dec := NewDec("dec")
	require.Error(t, dec.SetState(graph.StateReady))

	require.Nil(t, dec.Set("key", GenerateKey()))
	require.Nil(t, dec.SetState(graph.StatePlaying))
	defer dec.SetState(graph.StateNull)

	enc := NewEnc("enc")
	require.Nil(t, enc.Set("key", GenerateKey()))
	require.Nil(t, enc.SetState(graph.StatePlaying))
	defer enc.SetState(graph.StateNull)

	sink := newCollector("sink")
	require.Nil(t, sink.SetState(graph.StatePlaying))
	require.Nil(t, graph.LinkPads(enc, "rtp_src", dec, "rtp_sink"))
	require.Nil(t, graph.LinkPads(dec, "rtp_src", sink, "sink"))

	packet := &rtp.Packet{Header: rtp.Header{Version: 2, SSRC: 1}, Payload: []byte{1}}
	plain, err := packet.Marshal()
	require.Nil(t, err)
	require.Nil(t, enc.Pad("rtp_sink").(*base.Pad).Receive(graph.NewBuffer(plain)))
	require.Len(t, sink.buffers, 0)
}
