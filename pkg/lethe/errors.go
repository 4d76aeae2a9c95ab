package lethe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxErrorBody caps how much of a non-2xx response body is kept.
const maxErrorBody = 64 << 10

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	// Message is the service's {"error": "..."} text, if the body had one.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	if body := strings.TrimSpace(string(e.Body)); body != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func newStatusError(code int, body []byte) *StatusError {
	e := &StatusError{StatusCode: code, Body: body}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Error
	}
	return e
}

// DecodeError is returned when a 2xx response body is not the JSON shape the
// endpoint promises: not an object, or a known field of the wrong type.
// Missing fields are not an error; they get their documented defaults.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
