package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	prevConfigs, prevPath := configs, ConfigPath
	t.Cleanup(func() {
		configs, ConfigPath = prevConfigs, prevPath
	})
	configs, ConfigPath = nil, ""
}

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{receiver: {latency: 500}}", string(parseConfString("receiver.latency=500")))
	require.Equal(t, "{log: {level: trace}}", string(parseConfString("log.level=trace")))
	require.Nil(t, parseConfString("level=trace"))
	require.Nil(t, parseConfString("streaminsync.yaml"))
}

func TestLoadConfig(t *testing.T) {
	resetConfig(t)
	t.Setenv("TEST_RECEIVER_LATENCY", "700")

	path := filepath.Join(t.TempDir(), "streaminsync.yaml")
	require.Nil(t, os.WriteFile(path, []byte(`
receiver:
  latency: ${TEST_RECEIVER_LATENCY}
  restart_timeout: ${TEST_UNSET:3000}
`), 0644))

	initConfig(flagConfig{path, `{"sender": {"bitrate": 1500}}`, "receiver.restart_timeout=100"})
	require.Equal(t, path, ConfigPath)
	require.Len(t, configs, 3)

	var cfg struct {
		Receiver struct {
			Latency        int `yaml:"latency"`
			RestartTimeout int `yaml:"restart_timeout"`
		} `yaml:"receiver"`
		Sender struct {
			Bitrate int `yaml:"bitrate"`
			Width   int `yaml:"width"`
		} `yaml:"sender"`
	}
	cfg.Sender.Width = 1920

	LoadConfig(&cfg)
	require.Equal(t, 700, cfg.Receiver.Latency)
	require.Equal(t, 100, cfg.Receiver.RestartTimeout)
	require.Equal(t, 1500, cfg.Sender.Bitrate)
	require.Equal(t, 1920, cfg.Sender.Width)
}

func TestPatchConfig(t *testing.T) {
	resetConfig(t)
	require.ErrorIs(t, PatchConfig("latency", 100, "receiver"), ErrConfigDisabled)

	ConfigPath = filepath.Join(t.TempDir(), "streaminsync.yaml")
	require.Nil(t, os.WriteFile(ConfigPath, []byte("# receiver\n"), 0644))

	require.Nil(t, PatchConfig("latency", 100, "receiver"))

	b, err := os.ReadFile(ConfigPath)
	require.Nil(t, err)
	require.Equal(t, "# receiver\nreceiver:\n  latency: 100\n", string(b))
}
