package graph

import (
	"fmt"
)

type MessageType byte

const (
	MessageUnknown MessageType = iota
	MessageError
	MessageWarning
	MessageEOS
	MessageStateChanged
	MessageElement
)

func (t MessageType) String() string {
	switch t {
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageEOS:
		return "eos"
	case MessageStateChanged:
		return "state-changed"
	case MessageElement:
		return "element"
	}
	return "unknown"
}

type Message struct {
	Type   MessageType
	Source Element

	// MessageError, MessageWarning
	Err   error
	Debug string

	// MessageStateChanged
	OldState State
	NewState State

	// MessageElement
	Structure *Caps
}

func NewErrorMessage(src Element, err error, debug string) *Message {
	return &Message{Type: MessageError, Source: src, Err: err, Debug: debug}
}

func NewWarningMessage(src Element, err error, debug string) *Message {
	return &Message{Type: MessageWarning, Source: src, Err: err, Debug: debug}
}

func NewEOSMessage(src Element) *Message {
	return &Message{Type: MessageEOS, Source: src}
}

func NewStateChangedMessage(src Element, oldState, newState State) *Message {
	return &Message{Type: MessageStateChanged, Source: src, OldState: oldState, NewState: newState}
}

func NewElementMessage(src Element, structure *Caps) *Message {
	return &Message{Type: MessageElement, Source: src, Structure: structure}
}

func (m *Message) SourceName() string {
	if m.Source == nil {
		return ""
	}
	return m.Source.Name()
}

func (m *Message) String() string {
	switch m.Type {
	case MessageError, MessageWarning:
		return fmt.Sprintf("%s from %s: %v", m.Type, m.SourceName(), m.Err)
	case MessageStateChanged:
		return fmt.Sprintf("%s from %s: %s => %s", m.Type, m.SourceName(), m.OldState, m.NewState)
	}
	return m.Type.String() + " from " + m.SourceName()
}
