package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T) *websocket.Conn {
	initWS("")

	server := httptest.NewServer(http.HandlerFunc(apiWS))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHandleFunc(t *testing.T) {
	HandleFunc("echo", func(tr *Transport, msg *Message) error {
		tr.Write(&Message{Type: "echo", Value: msg.String()})
		return nil
	})

	conn := dial(t)

	require.Nil(t, conn.WriteJSON(&Message{Type: "echo", Value: "hello"}))

	var msg Message
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "echo", msg.Type)
	require.Equal(t, "hello", msg.Value)

	require.Nil(t, conn.WriteJSON(&Message{Type: "nosuch"}))
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "error", msg.Type)
}

func TestEvents(t *testing.T) {
	HandleFunc("events", eventsHandler)

	conn := dial(t)
	require.Nil(t, conn.WriteJSON(&Message{Type: "events"}))

	var msg struct {
		Type  string `json:"type"`
		Value Event  `json:"value"`
	}
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "events", msg.Type)
	require.Equal(t, "subscribed", msg.Value.Type)

	Broadcast(&Event{Source: "receiver", Type: "session-added", Session: "abc"})

	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "receiver", msg.Value.Source)
	require.Equal(t, "session-added", msg.Value.Type)
	require.Equal(t, "abc", msg.Value.Session)

	_ = conn.Close()
	require.Eventually(t, func() bool {
		subscribersMu.Lock()
		defer subscribersMu.Unlock()
		return len(subscribers) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSameHost(t *testing.T) {
	r := httptest.NewRequest("GET", "http://10.0.0.2:1985/api/ws", nil)
	require.True(t, sameHost(r))

	r.Header.Set("Origin", "http://10.0.0.2:1985")
	require.True(t, sameHost(r))

	r.Header.Set("Origin", "http://10.0.0.2:8080")
	require.True(t, sameHost(r))

	r.Header.Set("Origin", "http://evil.example")
	require.False(t, sameHost(r))
}

func TestTransportClose(t *testing.T) {
	tr := &Transport{}
	var calls int
	tr.OnClose(func() { calls++ })
	tr.Close()
	tr.Close()
	require.Equal(t, 1, calls)

	tr.OnClose(func() { calls++ })
	require.Equal(t, 2, calls)
}
