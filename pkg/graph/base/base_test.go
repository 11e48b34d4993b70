package base

import (
	"testing"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/stretchr/testify/require"
)

type collector struct {
	*Element
	buffers []*graph.Buffer
}

func newCollector(name string) *collector {
	c := &collector{Element: NewElement("collector", name)}
	c.Init(c)
	_ = c.AddPad(NewSinkPad("sink", func(_ *Pad, buf *graph.Buffer) error {
		c.buffers = append(c.buffers, buf)
		return nil
	}))
	return c
}

func TestPadLink(t *testing.T) {
	src := NewIdentity("identity", "src")
	sink := newCollector("sink")

	require.Nil(t, graph.LinkMany(src, sink))
	require.ErrorIs(t, graph.LinkMany(src, sink), graph.ErrAlreadyLinked)
	require.ErrorIs(t, sink.Pad("sink").Link(src.Pad("src")), graph.ErrWrongDirection)

	require.Equal(t, sink.Pad("sink"), src.Pad("src").Peer())
	require.True(t, sink.Pad("sink").IsLinked())

	// not active elements drop buffers
	err := src.Pad("src").(*Pad).Push(graph.NewBuffer([]byte{1}))
	require.ErrorIs(t, err, graph.ErrFlushing)

	require.Nil(t, sink.SetState(graph.StatePlaying))
	require.Nil(t, src.Pad("src").(*Pad).Push(graph.NewBuffer([]byte{1})))
	require.Len(t, sink.buffers, 1)

	require.Nil(t, src.Pad("src").Unlink(sink.Pad("sink")))
	require.ErrorIs(t, src.Pad("src").Unlink(sink.Pad("sink")), graph.ErrNotLinked)
	require.ErrorIs(t, src.Pad("src").(*Pad).Push(graph.NewBuffer(nil)), graph.ErrNotLinked)
}

func TestBinAddRemove(t *testing.T) {
	pipe := NewPipeline("pipe")

	a := NewIdentity("identity", "a")
	b := NewIdentity("identity", "b")
	require.Nil(t, pipe.Add(a, b))
	require.Equal(t, a, pipe.ByName("a"))
	require.Equal(t, graph.Bin(pipe), a.Parent())

	// all or nothing
	c := NewIdentity("identity", "c")
	a2 := NewIdentity("identity", "a")
	require.ErrorIs(t, pipe.Add(c, a2), graph.ErrNameExists)
	require.Nil(t, pipe.ByName("c"))
	require.Nil(t, c.Parent())

	require.ErrorIs(t, pipe.Remove(a, c), graph.ErrWrongHierarchy)
	require.Len(t, pipe.Children(), 2)

	require.Nil(t, pipe.Remove(a, b))
	require.Len(t, pipe.Children(), 0)
	require.Nil(t, a.Parent())
}

func TestPipelineState(t *testing.T) {
	pipe := NewPipeline("pipe")
	a := NewIdentity("identity", "a")
	require.Nil(t, pipe.Add(a))

	var msgs []*graph.Message
	require.Nil(t, pipe.Bus().AddWatch(func(msg *graph.Message) {
		msgs = append(msgs, msg)
	}))
	require.ErrorIs(t, pipe.Bus().AddWatch(func(*graph.Message) {}), graph.ErrWatchExists)

	require.Equal(t, graph.ClockTimeNone, pipe.RunningTime())
	require.Nil(t, pipe.SetState(graph.StatePlaying))
	require.Equal(t, graph.StatePlaying, a.State())
	require.GreaterOrEqual(t, pipe.RunningTime(), time.Duration(0))

	// child message first, then pipeline
	require.Len(t, msgs, 2)
	require.Equal(t, graph.MessageStateChanged, msgs[0].Type)
	require.Equal(t, graph.Element(a), msgs[0].Source)
	require.Equal(t, graph.Element(pipe), msgs[1].Source)
	require.Equal(t, graph.StatePlaying, msgs[1].NewState)

	require.Nil(t, pipe.SetState(graph.StateNull))
	require.Equal(t, graph.StateNull, a.State())
}

func TestBusPending(t *testing.T) {
	bus := NewBus()
	for i := 0; i < maxPending+10; i++ {
		require.False(t, bus.Post(graph.NewEOSMessage(nil)))
	}

	var n int
	require.Nil(t, bus.AddWatch(func(*graph.Message) { n++ }))
	require.Equal(t, maxPending, n)

	require.True(t, bus.Post(graph.NewEOSMessage(nil)))
	require.Equal(t, maxPending+1, n)

	bus.RemoveWatch()
	require.False(t, bus.Post(graph.NewEOSMessage(nil)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("identity", func(name string) (graph.Element, error) {
		return NewIdentity("identity", name), nil
	})

	el, err := r.Make("identity", "")
	require.Nil(t, err)
	require.Equal(t, "identity0", el.Name())

	el, err = r.Make("identity", "")
	require.Nil(t, err)
	require.Equal(t, "identity1", el.Name())

	el, err = r.Make("identity", "named")
	require.Nil(t, err)
	require.Equal(t, "named", el.Name())

	_, err = r.Make("unknown", "")
	require.ErrorIs(t, err, graph.ErrNoSuchFactory)
	require.Equal(t, []string{"identity"}, r.Factories())
}

func TestProperties(t *testing.T) {
	el := NewIdentity("identity", "a")
	el.Install("port", 5000)
	el.Install("host", "127.0.0.1")

	require.Nil(t, el.Set("port", uint16(5002)))
	require.Equal(t, 5002, el.Int("port"))

	require.ErrorIs(t, el.Set("port", "5002"), graph.ErrWrongProperty)
	require.ErrorIs(t, el.Set("unknown", 1), graph.ErrUnknownProperty)

	require.Nil(t, el.Set("caps", "application/x-rtp, media=video, clock-rate=90000"))
	clockRate, ok := el.Caps("caps").Int("clock-rate")
	require.True(t, ok)
	require.Equal(t, 90000, clockRate)
}

func TestPadAdded(t *testing.T) {
	el := NewElement("test", "test")

	var names []string
	id1 := el.ConnectPadAdded(func(_ graph.Element, pad graph.Pad) {
		names = append(names, "1:"+pad.Name())
	})
	el.ConnectPadAdded(func(_ graph.Element, pad graph.Pad) {
		names = append(names, "2:"+pad.Name())
	})

	pad := NewSrcPad("src_0")
	require.Nil(t, el.AddPad(pad))
	el.EmitPadAdded(pad)
	require.Equal(t, []string{"1:src_0", "2:src_0"}, names)

	require.True(t, el.Disconnect(id1))
	require.False(t, el.Disconnect(id1))
	require.Equal(t, 1, el.Handlers())

	require.Nil(t, el.RemovePad(pad))
	require.Nil(t, el.Pad("src_0"))
	require.ErrorIs(t, el.RemovePad(pad), graph.ErrNoSuchPad)
}
