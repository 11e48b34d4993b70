package receiver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/streaminsync/streaminsync/pkg/udp"
	"github.com/stretchr/testify/require"
)

func startReceiver(t *testing.T) {
	opts := receiver.DefaultOptions()
	opts.Latency = 0

	rcv = newReceiver(opts)
	require.Nil(t, rcv.Start())
	t.Cleanup(rcv.Stop)
}

func freeBase(t *testing.T) (ports [6]int) {
	for i := range ports {
		port, err := udp.GetFreePort()
		require.Nil(t, err)
		ports[i] = port
	}
	return
}

func request(t *testing.T, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.RemoteAddr = "127.0.0.1:40000"
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	switch r.URL.Path {
	case "/api/sessions":
		apiSessions(w, r)
	case "/api/sessions/sdp":
		apiSessionSDP(w, r)
	case "/api/receiver":
		apiReceiver(w, r)
	default:
		require.FailNow(t, "unknown path", r.URL.Path)
	}
	return w
}

func TestSessionConfig(t *testing.T) {
	var conf SessionConfig
	require.Nil(t, json.Unmarshal([]byte(`{"source_id": 3, "port_base": 6000, "dest": "10.0.0.7"}`), &conf))

	cfg := conf.Session()
	require.Equal(t, uint32(6), cfg.VideoID)
	require.Equal(t, uint32(7), cfg.AudioID)
	require.Equal(t, receiver.PortsFrom(6000), cfg.Ports)
	require.Equal(t, "10.0.0.7", cfg.Dest)
}

func TestSessionsAPI(t *testing.T) {
	startReceiver(t)

	w := request(t, "GET", "/api/sessions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]\n", w.Body.String())

	ports := freeBase(t)
	body := fmt.Sprintf(`{"video_id": 10, "audio_id": 11, "ports": [%d,%d,%d,%d,%d,%d]}`,
		ports[0], ports[1], ports[2], ports[3], ports[4], ports[5])

	w = request(t, "POST", "/api/sessions", "application/json", []byte(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var s receiver.Session
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.NotEmpty(t, s.ID)
	require.Equal(t, "127.0.0.1", s.Config.Dest)
	require.NotNil(t, stats.get(s.ID))

	// same ids again
	w = request(t, "POST", "/api/sessions", "application/json", []byte(body))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, "POST", "/api/sessions", "application/json", []byte("{"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, "GET", "/api/sessions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []struct {
		ID    string `json:"id"`
		Video struct {
			State string `json:"state"`
		} `json:"video"`
		Frames *struct{} `json:"frames"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, s.ID, items[0].ID)
	require.NotNil(t, items[0].Frames)

	w = request(t, "GET", "/api/sessions/sdp?id="+s.ID+"&address=10.0.0.1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cfg, err := receiver.ConfigFromSDP(w.Body.Bytes())
	require.Nil(t, err)
	require.Equal(t, "10.0.0.1", cfg.Dest)
	require.Equal(t, uint32(10), cfg.VideoID)
	require.Equal(t, ports[0], cfg.Ports[0])

	w = request(t, "DELETE", "/api/sessions?id="+s.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, stats.get(s.ID))

	w = request(t, "DELETE", "/api/sessions?id="+s.ID, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, "GET", "/api/sessions/sdp?id="+s.ID, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionFromSDP(t *testing.T) {
	startReceiver(t)

	ports := freeBase(t)
	cfg := receiver.Config{VideoID: 4, AudioID: 5, Dest: "127.0.0.1", Ports: ports}
	cfg.Ports[2] = cfg.Ports[1] + 1
	cfg.Ports[5] = cfg.Ports[4] + 1

	s := &receiver.Session{Config: cfg}
	sdp, err := rcv.SDP(s, "127.0.0.1")
	require.Nil(t, err)

	w := request(t, "POST", "/api/sessions", "application/sdp", sdp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sessions := rcv.Sessions()
	require.Len(t, sessions, 1)
	require.Equal(t, "127.0.0.1", sessions[0].Config.Dest)
	require.Equal(t, uint32(4), sessions[0].Config.VideoID)

	require.Nil(t, removeSession(sessions[0]))
}

func TestReceiverAPI(t *testing.T) {
	startReceiver(t)

	w := request(t, "GET", "/api/receiver", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Engine struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"engine"`
		Sessions int `json:"sessions"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, "receiver", info.Engine.Name)
	require.Equal(t, "PLAYING", info.Engine.State)
	require.Equal(t, 0, info.Sessions)
}

func TestNotReady(t *testing.T) {
	rcv = newReceiver(receiver.DefaultOptions())

	w := request(t, "GET", "/api/sessions", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
