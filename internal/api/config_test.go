package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/pkg/yaml"
	"github.com/stretchr/testify/require"
)

func TestMergeYAML(t *testing.T) {
	base := `receiver:
  latency: 10000
  sessions:
    - video_id: 0
      audio_id: 1
log:
  level: info
`
	patch := `receiver:
  latency: 500
log:
  receiver: debug
`

	path := filepath.Join(t.TempDir(), "streaminsync.yaml")
	require.Nil(t, os.WriteFile(path, []byte(base), 0644))

	out, err := mergeYAML(path, []byte(patch))
	require.Nil(t, err)

	var cfg struct {
		Receiver struct {
			Latency  int              `yaml:"latency"`
			Sessions []map[string]int `yaml:"sessions"`
		} `yaml:"receiver"`
		Log map[string]string `yaml:"log"`
	}
	require.Nil(t, yaml.Unmarshal(out, &cfg))
	require.Equal(t, 500, cfg.Receiver.Latency)
	require.Len(t, cfg.Receiver.Sessions, 1)
	require.Equal(t, "info", cfg.Log["level"])
	require.Equal(t, "debug", cfg.Log["receiver"])
}

func TestMergeYAMLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streaminsync.yaml")
	require.Nil(t, os.WriteFile(path, nil, 0644))

	out, err := mergeYAML(path, []byte("sender:\n  bitrate: 1500\n"))
	require.Nil(t, err)
	require.Equal(t, "sender:\n  bitrate: 1500\n", string(out))
}

func TestMergeYAMLMissing(t *testing.T) {
	out, err := mergeYAML(filepath.Join(t.TempDir(), "nope.yaml"), []byte("log:\n  level: debug\n"))
	require.Nil(t, err)
	require.Equal(t, "log:\n  level: debug\n", string(out))
}

func TestConfigHandler(t *testing.T) {
	prev := app.ConfigPath
	t.Cleanup(func() {
		app.ConfigPath = prev
	})

	app.ConfigPath = ""
	w := httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("GET", "/api/config", nil))
	require.Equal(t, http.StatusGone, w.Code)

	app.ConfigPath = filepath.Join(t.TempDir(), "streaminsync.yaml")

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("POST", "/api/config", bytes.NewBufferString("receiver: [")))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("POST", "/api/config", bytes.NewBufferString("receiver:\n  latency: 200\n")))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("GET", "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, MimeYAML, w.Header().Get("Content-Type"))
	require.Equal(t, "receiver:\n  latency: 200\n", w.Body.String())

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("PATCH", "/api/config", bytes.NewBufferString("receiver:\n  restart_on_eos: false\n")))
	require.Equal(t, http.StatusOK, w.Code)

	data, err := os.ReadFile(app.ConfigPath)
	require.Nil(t, err)
	require.Equal(t, "receiver:\n  latency: 200\n  restart_on_eos: false\n", string(data))

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("DELETE", "/api/config", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
