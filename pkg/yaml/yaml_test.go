package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# sessions`)

	b, err := Patch(b, "latency", 200, "receiver")
	require.Nil(t, err)
	require.Equal(t, `# sessions
receiver:
  latency: 200
`, string(b))

	b, err = Patch(b, "ports", []int{5000, 5001}, "receiver")
	require.Nil(t, err)
	require.Equal(t, `# sessions
receiver:
  latency: 200
  ports:
    - 5000
    - 5001
`, string(b))

	b, err = Patch(b, "latency", 500, "receiver")
	require.Nil(t, err)
	require.Equal(t, `# sessions
receiver:
  latency: 500
  ports:
    - 5000
    - 5001
`, string(b))

	b, err = Patch(b, "ports", 6000, "receiver")
	require.Nil(t, err)
	require.Equal(t, `# sessions
receiver:
  latency: 500
  ports: 6000
`, string(b))

	b, err = Patch(b, "latency", nil, "receiver")
	require.Nil(t, err)
	require.Equal(t, `# sessions
receiver:
  ports: 6000
`, string(b))
}

func TestPatchNested(t *testing.T) {
	b := []byte(`sender:
  video:
    width: 1920
log:
  level: info
`)

	b, err := Patch(b, "height", 1080, "sender", "video")
	require.Nil(t, err)
	require.Equal(t, `sender:
  video:
    width: 1920
    height: 1080
log:
  level: info
`, string(b))

	_, err = Patch(b, "height", 1080, "sender", "audio")
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestPatchNoNewline(t *testing.T) {
	b, err := Patch([]byte("log:\n  level: info"), "sender", "debug", "log")
	require.Nil(t, err)
	require.Equal(t, "log:\n  level: info\n  sender: debug\n", string(b))

	b, err = Patch([]byte("log:\n  level: info"), "level", "trace", "log")
	require.Nil(t, err)
	require.Equal(t, "log:\n  level: trace\n", string(b))
}

func TestPatchRoot(t *testing.T) {
	b, err := Patch(nil, "clock", map[string]string{"host": "pool.ntp.org"})
	require.Nil(t, err)
	require.Equal(t, "clock:\n  host: pool.ntp.org\n", string(b))

	// nothing to remove
	b, err = Patch(b, "user", nil, "api")
	require.Nil(t, err)
	require.Equal(t, "clock:\n  host: pool.ntp.org\n", string(b))
}
