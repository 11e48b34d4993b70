package ws

import (
	"net/http"
	"sync"
)

// Transport - one websocket client, writes are serialized
type Transport struct {
	Request *http.Request

	mu      sync.Mutex
	closed  bool
	onClose []func()

	writeMu sync.Mutex
	onWrite func(msg any) error
}

func (t *Transport) OnWrite(f func(msg any) error) {
	t.writeMu.Lock()
	t.onWrite = f
	t.writeMu.Unlock()
}

func (t *Transport) Write(msg any) {
	t.writeMu.Lock()
	if t.onWrite != nil {
		if err := t.onWrite(msg); err != nil {
			log.Trace().Err(err).Msg("[api] ws write")
		}
	}
	t.writeMu.Unlock()
}

// OnClose runs f right away when the transport is already closed
func (t *Transport) OnClose(f func()) {
	t.mu.Lock()
	if !t.closed {
		t.onClose = append(t.onClose, f)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	f()
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	callbacks := t.onClose
	t.onClose = nil
	t.mu.Unlock()

	for _, f := range callbacks {
		f()
	}
}
