package receiver

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/appsink"
	"github.com/streaminsync/streaminsync/pkg/engine"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/stretchr/testify/require"
)

// swapLoop - mutation lock over a pipeline the test replaces by hand
type swapLoop struct {
	mu sync.Mutex
	p  graph.Pipeline
}

func (l *swapLoop) Mutate(f func(p graph.Pipeline) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.p == nil {
		return engine.ErrNotReady
	}
	return f(l.p)
}

func (l *swapLoop) Post(f func()) {
	go f()
}

func (l *swapLoop) swap(p graph.Pipeline) {
	l.mu.Lock()
	l.p = p
	l.mu.Unlock()
}

func TestAddRemove(t *testing.T) {
	r := newReceiver(t, newRegistry())

	children, pads, handlers := counts(t, r)
	require.Equal(t, 1, children)
	require.Equal(t, 0, pads)
	require.Equal(t, 0, handlers)

	s, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, s, r.Session(s.ID))

	c, p, h := counts(t, r)
	require.Equal(t, 1+16, c)
	require.Equal(t, 6, p) // rtp, rtcp and feedback pads of two ids
	require.Equal(t, 2, h)

	pipeline := r.Engine().Pipeline()
	require.NotNil(t, pipeline.ByName("video_sink_0"))
	require.NotNil(t, pipeline.ByName("audio_sink_1"))
	require.Equal(t, graph.StatePlaying, pipeline.ByName("video_rtp_src_0").State())
	require.Equal(t, graph.StatePlaying, s.Sink(KindAudio).State())

	require.Nil(t, r.RemoveSession(s))
	require.Empty(t, r.Sessions())
	require.Nil(t, s.Sink(KindVideo))

	c, p, h = counts(t, r)
	require.Equal(t, children, c)
	require.Equal(t, pads, p)
	require.Equal(t, handlers, h)

	// removed twice
	require.ErrorIs(t, r.RemoveSession(s), ErrConfiguration)

	// same ids again
	s, err = r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)
	require.Len(t, r.Sessions(), 1)
}

func TestManySessions(t *testing.T) {
	r := newReceiver(t, newRegistry())

	var sessions []*Session
	for i := uint32(0); i < 4; i++ {
		video, audio := IDsFrom(i)
		s, err := r.AddSession(testConfig(video, audio, 5000+int(i)*6))
		require.Nil(t, err)
		sessions = append(sessions, s)
	}

	c, p, _ := counts(t, r)
	require.Equal(t, 1+4*16, c)
	require.Equal(t, 4*6, p)

	// the one in the middle
	require.Nil(t, r.RemoveSession(sessions[1]))
	require.Nil(t, r.Engine().Pipeline().ByName("video_sink_2"))
	require.NotNil(t, r.Engine().Pipeline().ByName("video_sink_4"))

	c, p, _ = counts(t, r)
	require.Equal(t, 1+3*16, c)
	require.Equal(t, 3*6, p)
}

func TestDuplicateID(t *testing.T) {
	r := newReceiver(t, newRegistry())

	_, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	c, p, h := counts(t, r)

	_, err = r.AddSession(testConfig(1, 2, 6000))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = r.AddSession(testConfig(3, 3, 6000))
	require.ErrorIs(t, err, ErrConfiguration)

	cfg := testConfig(3, 4, 6000)
	cfg.Dest = "localhost"
	_, err = r.AddSession(cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	cfg = testConfig(3, 4, 6000)
	cfg.Ports[PortAudioRTP] = cfg.Ports[PortVideoRTP]
	_, err = r.AddSession(cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	cfg = testConfig(3, 4, 6000)
	cfg.Key = "wrong"
	_, err = r.AddSession(cfg)
	require.ErrorIs(t, err, ErrConfiguration)

	c2, p2, h2 := counts(t, r)
	require.Equal(t, c, c2)
	require.Equal(t, p, p2)
	require.Equal(t, h, h2)
	require.Len(t, r.Sessions(), 1)
}

func TestNotReady(t *testing.T) {
	r := NewReceiver(DefaultOptions(), newRegistry(), zerolog.Nop())

	_, err := r.AddSession(testConfig(0, 1, 5000))
	require.ErrorIs(t, err, ErrNotReady)

	_, err = r.Info()
	require.ErrorIs(t, err, ErrNotReady)
}

func TestConstructionFailed(t *testing.T) {
	r := newReceiver(t, newRegistry())

	children, pads, handlers := counts(t, r)

	// video is built and linked before audio fails
	chain := DefaultChain()
	chain.AudioResample = "nosuch"
	r.SetChain(chain)

	_, err := r.AddSession(testConfig(0, 1, 5000))
	require.ErrorIs(t, err, ErrConstructionFailed)
	require.ErrorIs(t, err, graph.ErrNoSuchFactory)

	c, p, h := counts(t, r)
	require.Equal(t, children, c)
	require.Equal(t, pads, p)
	require.Equal(t, handlers, h)
	require.Empty(t, r.Sessions())

	// nothing left behind blocks the ids
	r.SetChain(DefaultChain())
	_, err = r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)
}

func TestRestore(t *testing.T) {
	r := newReceiver(t, newRegistry())

	s, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	require.Nil(t, r.Attach(s, OutputConfig{}, func(*VideoFrame) {}, nil))

	old := r.Engine().Pipeline()

	r.Engine().Restart()
	require.Eventually(t, func() bool {
		return r.Engine().Info().Restarts == 1
	}, 5*time.Second, 10*time.Millisecond)
	flush(r)

	p := r.Engine().Pipeline()
	require.NotSame(t, old, p)
	require.Equal(t, graph.StateNull, old.State())

	// same handle, new nodes
	require.Equal(t, []*Session{s}, r.Sessions())
	require.NotNil(t, p.ByName("video_sink_0"))
	require.Equal(t, p, s.pipeline)

	c, pads, _ := counts(t, r)
	require.Equal(t, 1+16, c)
	require.Equal(t, 6, pads)

	require.Nil(t, r.RemoveSession(s))
	require.Empty(t, r.Sessions())
}

func TestInfo(t *testing.T) {
	r := newReceiver(t, newRegistry())

	s, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	infos, err := r.Info()
	require.Nil(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, s, infos[0].Session)
	require.Equal(t, AwaitingPort, infos[0].Video.State)
	require.Equal(t, AwaitingPort, infos[0].Audio.State)
	require.Empty(t, infos[0].Video.Pad)
}

func TestConcurrentAdd(t *testing.T) {
	r := newReceiver(t, newRegistry())

	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := uint32(0); i < n; i++ {
		wg.Add(1)
		go func(i uint32) {
			defer wg.Done()
			video, audio := IDsFrom(i)
			_, err := r.AddSession(testConfig(video, audio, 5000+int(i)*6))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Nil(t, err)
	}

	sessions := r.Sessions()
	require.Len(t, sessions, n)

	c, p, h := counts(t, r)
	require.Equal(t, 1+n*16, c)
	require.Equal(t, n*6, p)
	require.Equal(t, n*2, h)

	ids := map[uint32]bool{}
	for _, s := range sessions {
		ids[s.Config.VideoID] = true
		ids[s.Config.AudioID] = true
		require.NotNil(t, r.Engine().Pipeline().ByName(SinkName(KindVideo, s.Config.VideoID)))
	}
	require.Len(t, ids, 2*n)

	errs = make(chan error, n)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			errs <- r.RemoveSession(s)
		}(s)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Nil(t, err)
	}

	c, p, h = counts(t, r)
	require.Equal(t, 1, c)
	require.Equal(t, 0, p)
	require.Equal(t, 0, h)
}

func TestRemoveUnderTraffic(t *testing.T) {
	r := newReceiver(t, newRegistry())

	s, err := r.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	// pull mode nobody pulls, the second sample waits for room
	sink, ok := s.Sink(KindVideo).(*appsink.Sink)
	require.True(t, ok)
	require.Nil(t, sink.Set("max-buffers", 1))
	require.Nil(t, sink.Set("drop", false))

	src := sessionSrc(t, r, "video_rtp_src_0")
	require.Nil(t, src.push(rtpPacket(t, 111, 1, 0, true, idr)))
	flush(r)

	packets := make([][]byte, 100)
	for i := range packets {
		seq := uint16(i + 2)
		packets[i] = rtpPacket(t, 111, seq, uint32(seq)*3000, true, idr)
	}

	stop := make(chan struct{})
	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for _, pkt := range packets {
			select {
			case <-stop:
				return
			default:
			}
			_ = src.push(pkt)
		}
	}()

	require.Eventually(t, func() bool {
		return sink.Queued() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	removed := make(chan error)
	go func() {
		removed <- r.RemoveSession(s)
	}()

	select {
	case err = <-removed:
		require.Nil(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "remove waits for a full sink")
	}

	close(stop)
	<-pushed

	c, p, h := counts(t, r)
	require.Equal(t, 1, c)
	require.Equal(t, 0, p)
	require.Equal(t, 0, h)
}

func TestRestoreKeepsNewSessions(t *testing.T) {
	factory := newRegistry()

	old, err := NewPipeline(factory, 0)
	require.Nil(t, err)

	loop := &swapLoop{p: old}
	m := NewManager(loop, factory, zerolog.Nop())

	s1, err := m.AddSession(testConfig(0, 1, 5000))
	require.Nil(t, err)

	// pipeline replaced, an add lands before the restore
	p, err := NewPipeline(factory, 0)
	require.Nil(t, err)
	loop.swap(p)

	s2, err := m.AddSession(testConfig(2, 3, 5006))
	require.Nil(t, err)
	require.Same(t, p, s2.pipeline)

	require.Nil(t, m.Restore())
	require.ElementsMatch(t, []*Session{s1, s2}, m.Sessions())
	require.Same(t, p, s1.pipeline)
	require.Same(t, p, s2.pipeline)

	mux, err := FindMux(p)
	require.Nil(t, err)
	require.Len(t, p.Children(), 1+2*16)
	require.Len(t, mux.Element().Pads(), 2*6)
	require.Equal(t, 4, mux.Element().(interface{ Handlers() int }).Handlers())

	// a second restore has nothing to move
	require.Nil(t, m.Restore())
	require.Len(t, p.Children(), 1+2*16)

	require.Nil(t, m.RemoveSession(s1))
	require.Nil(t, m.RemoveSession(s2))
	require.Len(t, p.Children(), 1)
	require.Len(t, mux.Element().Pads(), 0)
	require.Equal(t, 0, mux.Element().(interface{ Handlers() int }).Handlers())
}
