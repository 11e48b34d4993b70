package appsink

import (
	"context"
	"testing"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) (*Src, *Sink) {
	src := NewSrc("src")
	sink := NewSink("sink")

	pipe := base.NewPipeline("pipe")
	require.Nil(t, pipe.Add(src, sink))
	require.Nil(t, graph.LinkMany(src, sink))
	require.Nil(t, pipe.SetState(graph.StatePlaying))
	t.Cleanup(func() {
		_ = pipe.SetState(graph.StateNull)
	})
	return src, sink
}

func TestCallback(t *testing.T) {
	src, sink := newPipeline(t)
	require.Nil(t, src.Set("caps", "video/x-h264, width=(int)640"))

	samples := make(chan *graph.Sample, 1)
	sink.SetCallback(func(sample *graph.Sample) {
		samples <- sample
	})

	require.Nil(t, src.Push(graph.NewBuffer([]byte{1})))
	sample := <-samples

	width, _ := sample.Caps.Int("width")
	require.Equal(t, 640, width)
	// do-timestamp
	require.NotEqual(t, graph.ClockTimeNone, sample.Buffer.PTS)
}

func TestCallbackQueued(t *testing.T) {
	src, sink := newPipeline(t)

	release := make(chan struct{})
	samples := make(chan byte, 3)
	sink.SetCallback(func(sample *graph.Sample) {
		<-release
		samples <- sample.Buffer.Data[0]
	})

	// a slow host doesn't hold the streaming goroutine
	for i := byte(0); i < 3; i++ {
		require.Nil(t, src.Push(graph.NewBuffer([]byte{i})))
	}
	require.Len(t, samples, 0)

	close(release)
	for i := byte(0); i < 3; i++ {
		require.Equal(t, i, <-samples)
	}
}

func TestCallbackBlock(t *testing.T) {
	src, sink := newPipeline(t)
	require.Nil(t, sink.Set("max-buffers", 1))

	release := make(chan struct{})
	sink.SetCallback(func(*graph.Sample) {
		<-release
	})

	done := make(chan error)
	go func() {
		done <- src.Push(graph.NewBuffer([]byte{1}))
	}()

	select {
	case <-done:
		t.Fatal("push must wait for the callback")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.Nil(t, <-done)
	require.Equal(t, 0, sink.Queued())
}

func TestCallbackStop(t *testing.T) {
	src, sink := newPipeline(t)

	samples := make(chan *graph.Sample, 1)
	sink.SetCallback(func(sample *graph.Sample) {
		samples <- sample
	})
	require.Nil(t, src.Push(graph.NewBuffer([]byte{1})))
	<-samples

	// back to pull mode, the delivery goroutine leaves the queue alone
	sink.SetCallback(nil)
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return !sink.delivering
	}, time.Second, time.Millisecond)

	require.Nil(t, src.Push(graph.NewBuffer([]byte{2})))
	require.Equal(t, []byte{2}, sink.Pull(context.Background()).Buffer.Data)
}

func TestPull(t *testing.T) {
	src, sink := newPipeline(t)
	require.Nil(t, sink.Set("max-buffers", 2))
	require.Nil(t, sink.Set("drop", true))

	for i := byte(0); i < 3; i++ {
		require.Nil(t, src.Push(graph.NewBuffer([]byte{i})))
	}
	require.Equal(t, 2, sink.Queued())
	require.Equal(t, 1, sink.Dropped)

	ctx := context.Background()
	require.Equal(t, []byte{1}, sink.Pull(ctx).Buffer.Data)
	require.Equal(t, []byte{2}, sink.Pull(ctx).Buffer.Data)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Nil(t, sink.Pull(ctx))
}

func TestBlock(t *testing.T) {
	src, sink := newPipeline(t)
	require.Nil(t, sink.Set("max-buffers", 1))

	require.Nil(t, src.Push(graph.NewBuffer([]byte{1})))

	done := make(chan error)
	go func() {
		done <- src.Push(graph.NewBuffer([]byte{2}))
	}()

	select {
	case <-done:
		t.Fatal("push must wait for pull")
	case <-time.After(20 * time.Millisecond):
	}

	require.Equal(t, []byte{1}, sink.Pull(context.Background()).Buffer.Data)
	require.Nil(t, <-done)
	require.Equal(t, []byte{2}, sink.Pull(context.Background()).Buffer.Data)
}

func TestFlushing(t *testing.T) {
	src := NewSrc("src")
	require.ErrorIs(t, src.Push(graph.NewBuffer(nil)), graph.ErrFlushing)

	sink := NewSink("sink")
	require.Nil(t, sink.Pull(context.Background()))
}
