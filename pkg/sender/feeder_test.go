package sender

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/stretchr/testify/require"
)

// celt - Opus TOC of 20 ms fullband CELT frames
var (
	celt   = []byte{0xF8, 0xFF, 0xFE}
	celt10 = []byte{0xF0, 0xFF, 0xFE} // 10 ms
)

func writeOgg(t *testing.T, packets ...[]byte) []byte {
	var b bytes.Buffer
	w, err := oggwriter.NewWith(&b, 48000, 2)
	require.Nil(t, err)
	for i, packet := range packets {
		pkt := &rtp.Packet{Header: rtp.Header{Timestamp: uint32(i) * 960}, Payload: packet}
		require.Nil(t, w.WriteRTP(pkt))
	}
	return b.Bytes()
}

func TestOpenFeeder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.h264")
	stream := h264.JoinNALU(sps, pps, idr, pframe, pframe, sps, pps, idr)
	require.Nil(t, os.WriteFile(path, stream, 0644))

	f, err := OpenFeeder(path, 25)
	require.Nil(t, err)
	require.Equal(t, receiver.KindVideo, f.Kind())
	require.Len(t, f.units, 4)
	require.Equal(t, h264.JoinNALU(sps, pps, idr), f.units[0])
	require.Equal(t, int64(40e6), f.interval.Nanoseconds())

	_, err = OpenFeeder(path, 0)
	require.NotNil(t, err)

	_, err = NewFeeder(nil, 25)
	require.NotNil(t, err)

	_, err = OpenFeeder(filepath.Join(t.TempDir(), "nosuch"), 25)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecFeeder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.h264")
	require.Nil(t, os.WriteFile(path, h264.JoinNALU(sps, pps, idr, pframe), 0644))

	f, err := ExecFeeder(context.Background(), "cat "+path, 30)
	require.Nil(t, err)
	require.Len(t, f.units, 2)

	_, err = ExecFeeder(context.Background(), "", 30)
	require.NotNil(t, err)
}

func TestReadOpusPackets(t *testing.T) {
	packets, err := ReadOpusPackets(bytes.NewReader(writeOgg(t, celt, celt10, celt)))
	require.Nil(t, err)
	require.Equal(t, [][]byte{celt, celt10, celt}, packets)

	_, err = ReadOpusPackets(bytes.NewReader(h264.JoinNALU(sps, pps)))
	require.NotNil(t, err)
}

func TestAudioFeeder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.ogg")
	require.Nil(t, os.WriteFile(path, writeOgg(t, celt, celt10), 0644))

	f, err := OpenAudioFeeder(path)
	require.Nil(t, err)
	require.Equal(t, receiver.KindAudio, f.Kind())
	require.Len(t, f.units, 2)
	require.Equal(t, 20*time.Millisecond, f.duration(f.units[0]))
	require.Equal(t, 10*time.Millisecond, f.duration(f.units[1]))
	require.Equal(t, audioInterval, f.duration(nil))

	f, err = ExecAudioFeeder(context.Background(), "cat "+path)
	require.Nil(t, err)
	require.Len(t, f.units, 2)

	// header pages only
	path = filepath.Join(t.TempDir(), "empty.ogg")
	require.Nil(t, os.WriteFile(path, writeOgg(t), 0644))
	_, err = OpenAudioFeeder(path)
	require.NotNil(t, err)

	_, err = NewAudioFeeder(nil)
	require.NotNil(t, err)
}
