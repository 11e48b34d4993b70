// Package ws - JSON messages over one websocket per client,
// handlers are registered by message type
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/app"
)

func Init() {
	var cfg struct {
		Mod struct {
			Origin string `yaml:"origin"`
		} `yaml:"api"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("api")

	initWS(cfg.Mod.Origin)

	HandleFunc("events", eventsHandler)

	api.HandleFunc("api/ws", apiWS)
}

var log = zerolog.Nop()

// Message - {"type":"...","value":...} both ways
type Message struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
	Raw   []byte `json:"-"`
}

// String - value as a JSON string, empty for other types
func (m *Message) String() (value string) {
	_ = json.Unmarshal(m.Raw, &value)
	return
}

func (m *Message) Unmarshal(v any) error {
	return json.Unmarshal(m.Raw, v)
}

type WSHandler func(tr *Transport, msg *Message) error

var (
	handlers   = map[string]WSHandler{}
	handlersMu sync.RWMutex
)

func HandleFunc(msgType string, handler WSHandler) {
	handlersMu.Lock()
	handlers[msgType] = handler
	handlersMu.Unlock()
}

func lookup(msgType string) WSHandler {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	return handlers[msgType]
}

// dispatch runs the handler in its own goroutine, so a slow one
// doesn't hold the read loop
func dispatch(tr *Transport, msg *Message) {
	h := lookup(msg.Type)
	if h == nil {
		tr.Write(&Message{Type: "error", Value: "unknown type: " + msg.Type})
		return
	}
	go func() {
		if err := h(tr, msg); err != nil {
			tr.Write(&Message{Type: "error", Value: msg.Type + ": " + err.Error()})
		}
	}()
}
