package receiver

import (
	"errors"
)

var (
	// ErrNotReady - no pipeline or no multiplexer in it
	ErrNotReady = errors.New("receiver: not ready")
	// ErrConfiguration - invalid config or duplicate session id, nothing changed
	ErrConfiguration = errors.New("receiver: configuration error")
	// ErrConstructionFailed - some node or link failed, everything made so far is released
	ErrConstructionFailed = errors.New("receiver: construction failed")
)
