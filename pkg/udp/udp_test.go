package udp

import (
	"testing"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/stretchr/testify/require"
)

func TestLoopback(t *testing.T) {
	pipe := base.NewPipeline("pipe")

	src := NewSrc("src")
	require.Nil(t, src.Set("address", "127.0.0.1"))
	require.Nil(t, src.Set("caps", "application/x-rtp, media=video"))

	received := make(chan *graph.Buffer, 1)
	sink := base.NewIdentity("identity", "out")
	require.Nil(t, pipe.Add(src, sink))
	require.Nil(t, graph.LinkMany(src, sink))

	catcher := base.NewElement("catcher", "catcher")
	require.Nil(t, catcher.AddPad(base.NewSinkPad("sink", func(_ *base.Pad, buf *graph.Buffer) error {
		received <- buf
		return nil
	})))
	require.Nil(t, pipe.Add(catcher))
	require.Nil(t, graph.LinkMany(sink, catcher))

	require.Nil(t, pipe.SetState(graph.StatePlaying))
	defer pipe.SetState(graph.StateNull)

	port := src.Port()
	require.NotZero(t, port)

	tx := NewSink("tx")
	require.Nil(t, tx.Set("port", port))
	require.Nil(t, tx.SetState(graph.StatePlaying))
	defer tx.SetState(graph.StateNull)

	feed := base.NewSrcPad("feed")
	require.Nil(t, feed.Link(tx.Pad("sink")))
	require.Nil(t, feed.Push(graph.NewBuffer([]byte("hello"))))

	select {
	case buf := <-received:
		require.Equal(t, []byte("hello"), buf.Data)
		require.Equal(t, "application/x-rtp", buf.Caps.Name)
	case <-time.After(time.Second):
		require.FailNow(t, "timeout")
	}
	require.Equal(t, 1, tx.Sent)
}

func TestGetFreePort(t *testing.T) {
	port, err := GetFreePort()
	require.Nil(t, err)
	require.NotZero(t, port)
}
