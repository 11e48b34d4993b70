package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader *websocket.Upgrader

// initWS - origin "" allows the same host on any port, "*" allows everyone
func initWS(origin string) {
	upgrader = &websocket.Upgrader{
		ReadBufferSize:  4096, // one SDP fits
		WriteBufferSize: 16 * 1024,
	}

	switch origin {
	case "":
		upgrader.CheckOrigin = sameHost
	case "*":
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
}

func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	log.Trace().Msgf("[api] ws origin=%s host=%s", u.Host, r.Host)
	return u.Hostname() == hostname(r.Host)
}

func hostname(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

func apiWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Caller().Msgf("host=%s origin=%s", r.Host, r.Header.Get("Origin"))
		return
	}

	tr := &Transport{Request: r}
	tr.OnWrite(func(msg any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if data, ok := msg.([]byte); ok {
			return conn.WriteMessage(websocket.BinaryMessage, data)
		}
		return conn.WriteJSON(msg)
	})

	readLoop(conn, tr)

	_ = conn.Close()
	tr.Close()
}

func readLoop(conn *websocket.Conn, tr *Transport) {
	for {
		var raw struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
				log.Trace().Err(err).Caller().Send()
			}
			return
		}

		log.Trace().Str("type", raw.Type).Msg("[api] ws msg")

		dispatch(tr, &Message{Type: raw.Type, Raw: raw.Value})
	}
}
