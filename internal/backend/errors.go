package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

// Error is a non-2xx response from the backing store.
type Error struct {
	Status int
	Type   string
	Reason string
	Header http.Header
}

func (e *Error) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("backend returned %d (%s): %s", e.Status, e.Type, e.Reason)
}

// StatusCode returns the response status.
func (e *Error) StatusCode() int {
	return e.Status
}

// ResponseHeaders returns the headers that should be relayed to the client.
func (e *Error) ResponseHeaders() http.Header {
	values := e.Header.Values("WWW-Authenticate")
	if len(values) == 0 {
		return nil
	}
	h := make(http.Header)
	for _, v := range values {
		h.Add("WWW-Authenticate", v)
	}
	return h
}

// IsStatus reports whether err is a backend Error with the given status.
func IsStatus(err error, status int) bool {
	var be *Error
	return errors.As(err, &be) && be.Status == status
}

// errorBody matches both the structured and the plain error shapes.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func parseError(resp *http.Response) error {
	e := &Error{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Reason: http.StatusText(resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return e
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		return e
	}

	var cause errorCause
	if err := json.Unmarshal(body.Error, &cause); err == nil {
		e.Type = cause.Type
		if cause.Reason != "" {
			e.Reason = cause.Reason
		}
		return e
	}

	var reason string
	if err := json.Unmarshal(body.Error, &reason); err == nil && reason != "" {
		e.Reason = reason
	}
	return e
}
