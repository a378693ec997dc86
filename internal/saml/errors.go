package saml

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error originated by the provider itself.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Status), e.Message)
}

// StatusCode returns the HTTP status the error maps to.
func (e *Error) StatusCode() int {
	return e.Status
}

func badRequest(msg string) error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// internalError marks conditions that indicate a bug rather than bad input.
func internalError(msg string) error {
	return &Error{Status: http.StatusInternalServerError, Message: msg}
}

type statusCoder interface {
	StatusCode() int
}

type responseHeaderer interface {
	ResponseHeaders() http.Header
}

// StatusCode maps err to an HTTP status. Errors that do not expose a status
// map to 500.
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code < 600 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// IsBadRequest reports whether err maps to 400.
func IsBadRequest(err error) bool {
	return err != nil && StatusCode(err) == http.StatusBadRequest
}

// responseHeaders extracts headers (such as WWW-Authenticate) an upstream
// error wants relayed to the client.
func responseHeaders(err error) http.Header {
	var rh responseHeaderer
	if errors.As(err, &rh) {
		if h := rh.ResponseHeaders(); len(h) > 0 {
			return h.Clone()
		}
	}
	return nil
}
