package receiver

import (
	"testing"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/pcm"
	"github.com/stretchr/testify/require"
)

func TestSpeakers(t *testing.T) {
	require.Equal(t, SpeakersMono, SpeakersFor(1))
	require.Equal(t, SpeakersStereo, SpeakersFor(2))
	require.Equal(t, Speakers2Point1, SpeakersFor(3))
	require.Equal(t, Speakers5Point1, SpeakersFor(6))
	require.Equal(t, Speakers7Point1, SpeakersFor(8))
	require.Equal(t, SpeakersUnknown, SpeakersFor(7))
	require.Equal(t, SpeakersUnknown, SpeakersFor(0))
	require.Equal(t, "5.1", Speakers5Point1.String())
}

func TestAudioCallback(t *testing.T) {
	caps := pcm.Format{Name: pcm.FormatS16LE, Rate: 48000, Channels: 2}.Caps()

	var frames []*AudioFrame
	f := audioCallback(false, func(frame *AudioFrame) {
		frames = append(frames, frame)
	})

	for i := 0; i < 3; i++ {
		buf := graph.NewBuffer(make([]byte, 960*2*2))
		buf.PTS = time.Hour
		f(&graph.Sample{Buffer: buf, Caps: caps})
	}

	require.Len(t, frames, 3)
	require.Equal(t, 960, frames[0].Frames)
	require.Equal(t, SpeakersStereo, frames[0].Speakers)
	require.Equal(t, uint64(0), frames[0].Timestamp)
	require.Equal(t, uint64(20*time.Millisecond), frames[1].Timestamp)
	require.Equal(t, uint64(40*time.Millisecond), frames[2].Timestamp)

	// running time of the buffer
	f = audioCallback(true, func(frame *AudioFrame) {
		frames = append(frames, frame)
	})
	f(&graph.Sample{Buffer: &graph.Buffer{Data: make([]byte, 4), PTS: time.Second}, Caps: caps})
	require.Equal(t, uint64(time.Second), frames[3].Timestamp)
}

func TestVideoCallback(t *testing.T) {
	caps := graph.NewCaps("video/x-h264", "width", 1280, "height", 720, "format", "H264")

	var frames []*VideoFrame
	f := videoCallback(false, func(frame *VideoFrame) {
		frames = append(frames, frame)
	})

	f(&graph.Sample{Buffer: graph.NewBuffer(idr), Caps: caps})
	f(&graph.Sample{Buffer: &graph.Buffer{Data: idr, Flags: graph.FlagDeltaUnit}, Caps: caps})

	require.Len(t, frames, 2)
	require.Equal(t, 1280, frames[0].Width)
	require.Equal(t, 720, frames[0].Height)
	require.True(t, frames[0].Keyframe)
	require.False(t, frames[1].Keyframe)
	require.Equal(t, uint64(1), frames[1].Timestamp)

	// unknown time is zero
	f = videoCallback(true, func(frame *VideoFrame) {
		frames = append(frames, frame)
	})
	f(&graph.Sample{Buffer: graph.NewBuffer(idr)})
	require.Equal(t, uint64(0), frames[2].Timestamp)
}

func TestAttachBlocking(t *testing.T) {
	r := newReceiver(t, newRegistry())

	s, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	release := make(chan struct{})
	frames := make(chan *VideoFrame, 10)
	require.Nil(t, r.Attach(s, OutputConfig{BlockVideo: true}, func(frame *VideoFrame) {
		<-release
		frames <- frame
	}, nil))

	v, err := s.Sink(KindVideo).Get("max-buffers")
	require.Nil(t, err)
	require.Equal(t, 1, v)

	src := sessionSrc(t, r, "video_rtp_src_0")
	require.Nil(t, src.push(rtpPacket(t, 111, 1, 0, true, idr)))
	flush(r)

	pkt := rtpPacket(t, 111, 2, 3000, true, idr)
	done := make(chan error)
	go func() {
		done <- src.push(pkt)
	}()

	select {
	case <-done:
		t.Fatal("push must wait for the host")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.Nil(t, <-done)
	<-frames

	// without blocking the host may lag behind
	hold := make(chan struct{})
	require.Nil(t, r.Attach(s, OutputConfig{}, func(frame *VideoFrame) {
		<-hold
		frames <- frame
	}, nil))

	v, err = s.Sink(KindVideo).Get("max-buffers")
	require.Nil(t, err)
	require.Equal(t, 0, v)

	require.Nil(t, src.push(rtpPacket(t, 111, 3, 6000, true, idr)))
	require.Nil(t, src.push(rtpPacket(t, 111, 4, 9000, true, idr)))
	require.Len(t, frames, 0)

	close(hold)
	require.Equal(t, uint64(0), (<-frames).Timestamp)
	require.Equal(t, uint64(1), (<-frames).Timestamp)

	require.Nil(t, r.RemoveSession(s))
	require.ErrorIs(t, r.Attach(s, OutputConfig{}, func(*VideoFrame) {}, nil), ErrNotReady)
}
