package elements

import (
	"testing"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New()

	for _, factory := range r.Factories() {
		el, err := r.Make(factory, "")
		require.Nil(t, err, factory)
		require.Equal(t, factory, el.Factory())
		require.Equal(t, graph.StateNull, el.State())
	}

	for _, factory := range []string{
		"udpsrc", "udpsink", "rtpbin", "rtph264depay", "h264parse", "h264dec", "rtph264pay",
		"rtpopusdepay", "opusdec", "rtpopuspay", "audioconvert", "audioresample",
		"srtpdec", "srtpenc", "appsink", "appsrc", "videoconvert",
	} {
		require.True(t, r.Has(factory), factory)
	}

	_, err := r.Make("x264enc", "")
	require.ErrorIs(t, err, graph.ErrNoSuchFactory)
}
