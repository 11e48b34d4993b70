package ws

import "sync"

// Event - engine or session change, sent to subscribers as {"type":"events","value":{...}}
type Event struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Message string `json:"message,omitempty"`
}

const eventsQueue = 64

var (
	subscribers   = map[*Transport]chan *Message{}
	subscribersMu sync.Mutex
)

// eventsHandler subscribes the transport until it closes
func eventsHandler(tr *Transport, _ *Message) error {
	subscribersMu.Lock()
	if _, ok := subscribers[tr]; ok {
		subscribersMu.Unlock()
		return nil
	}
	queue := make(chan *Message, eventsQueue)
	subscribers[tr] = queue
	subscribersMu.Unlock()

	tr.OnClose(func() {
		subscribersMu.Lock()
		if _, ok := subscribers[tr]; ok {
			delete(subscribers, tr)
			close(queue)
		}
		subscribersMu.Unlock()
	})

	queue <- &Message{Type: "events", Value: &Event{Source: "api", Type: "subscribed"}}

	go func() {
		for msg := range queue {
			tr.Write(msg)
		}
	}()

	return nil
}

// Broadcast never blocks, a slow subscriber loses events
func Broadcast(event *Event) {
	msg := &Message{Type: "events", Value: event}

	subscribersMu.Lock()
	for tr, queue := range subscribers {
		select {
		case queue <- msg:
		default:
			log.Debug().Msgf("[api] ws drop event for %s", tr.Request.RemoteAddr)
		}
	}
	subscribersMu.Unlock()
}
