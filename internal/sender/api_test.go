package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/streaminsync/streaminsync/pkg/sender"
	"github.com/streaminsync/streaminsync/pkg/udp"
	"github.com/stretchr/testify/require"
)

func startSender(t *testing.T) {
	cfg := sender.DefaultConfig()
	for i := range cfg.Ports {
		port, err := udp.GetFreePort()
		require.Nil(t, err)
		cfg.Ports[i] = port
	}

	opts := sender.DefaultOptions()
	opts.RestartTimeout = 10 * time.Millisecond

	snd = newSender(cfg, opts)
	require.Nil(t, snd.Start())
	t.Cleanup(snd.Stop)
}

func TestSenderAPI(t *testing.T) {
	startSender(t)

	w := httptest.NewRecorder()
	apiSender(w, httptest.NewRequest("GET", "/api/sender", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Engine struct {
			Name     string `json:"name"`
			Restarts int    `json:"restarts"`
		} `json:"engine"`
		Config sender.Config `json:"config"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, "sender", info.Engine.Name)
	require.Equal(t, snd.Config().Ports, info.Config.Ports)

	w = httptest.NewRecorder()
	apiSenderSDP(w, httptest.NewRequest("GET", "/api/sender/sdp?address=127.0.0.1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cfg, err := receiver.ConfigFromSDP(w.Body.Bytes())
	require.Nil(t, err)
	require.Equal(t, snd.Config().Ports[0], cfg.Ports[0])
	require.Equal(t, "127.0.0.1", cfg.Dest)
}

func TestSenderRestart(t *testing.T) {
	startSender(t)

	w := httptest.NewRecorder()
	apiSenderRestart(w, httptest.NewRequest("GET", "/api/sender/restart", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	apiSenderRestart(w, httptest.NewRequest("POST", "/api/sender/restart", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return snd.Engine().Info().Restarts == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOpenFeeder(t *testing.T) {
	ctx := context.Background()

	feeder, err := openFeeder(ctx, "", "", 30)
	require.Nil(t, err)
	require.Nil(t, feeder)

	path := filepath.Join(t.TempDir(), "video.h264")
	idr := []byte{0x65, 0x88, 0xAB, 0xAB}
	require.Nil(t, os.WriteFile(path, h264.JoinNALU(idr), 0644))

	feeder, err = openFeeder(ctx, path, "nosuch-command", 30)
	require.Nil(t, err)
	require.NotNil(t, feeder)
	require.Equal(t, receiver.KindVideo, feeder.Kind())

	_, err = openFeeder(ctx, "", "nosuch-command", 30)
	require.NotNil(t, err)

	feeder, err = openAudioFeeder(ctx, "", "")
	require.Nil(t, err)
	require.Nil(t, feeder)

	_, err = openAudioFeeder(ctx, path, "")
	require.NotNil(t, err) // not ogg
}

func TestStopSources(t *testing.T) {
	startSender(t)
	ctx := start()

	// exec source still running
	opened := make(chan error, 1)
	go func() {
		_, err := openFeeder(ctx, "", "sleep 10", 30)
		opened <- err
	}()

	sps := []byte{0x67, 0x64, 0x00, 0x33, 0xAC, 0x15, 0x14, 0xA0, 0x28, 0x00, 0xF1, 0x90}
	pps := []byte{0x68, 0xEE, 0x3C, 0x80}
	idr := []byte{0x65, 0x88, 0xAB, 0xAB}
	feeder, err := sender.NewFeeder([][]byte{h264.JoinNALU(sps, pps, idr)}, 100)
	require.Nil(t, err)
	finished := make(chan struct{})
	go func() {
		run(ctx, feeder)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return feeder.Sent() > 0
	}, 5*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	apiSender(w, httptest.NewRequest("GET", "/api/sender", nil))
	var info map[string]any
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Contains(t, info, "video_sent")
	require.Contains(t, info, "video_stats")

	Stop()

	select {
	case err = <-opened:
		require.NotNil(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "exec source outlived Stop")
	}

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "feeder outlived Stop")
	}
	require.Nil(t, snd.Engine().Pipeline())
}
