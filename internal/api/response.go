package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	MimeJSON = "application/json"
	MimeText = "text/plain"
	MimeSDP  = "application/sdp"
	MimeYAML = "application/yaml"
)

// ResponseJSON sets Content-Type first, so net/http won't sniff the body
func ResponseJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", MimeJSON)
	_ = json.NewEncoder(w).Encode(v)
}

func ResponsePrettyJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", MimeJSON)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func Response(w http.ResponseWriter, body any, contentType string) {
	w.Header().Set("Content-Type", contentType)

	switch v := body.(type) {
	case []byte:
		_, _ = w.Write(v)
	case string:
		_, _ = w.Write([]byte(v))
	default:
		_, _ = fmt.Fprint(w, body)
	}
}

// StatusError - error with the HTTP status for the Error helper
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func WithStatus(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

// Error writes err with its status, 500 when the error has no status
func Error(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError

	var se *StatusError
	if errors.As(err, &se) {
		code = se.Code
	}

	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Caller(1).Send()
	} else {
		log.Debug().Err(err).Caller(1).Send()
	}

	http.Error(w, err.Error(), code)
}
