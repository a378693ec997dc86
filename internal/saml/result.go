package saml

import "net/http"

// AuthenticationResult is one of NotHandled, Succeeded, Redirected or Failed.
type AuthenticationResult interface {
	authenticationResult()
}

// NotHandled means the provider could not authenticate the request and
// another provider may try.
type NotHandled struct{}

// Succeeded carries the authenticated user. AuthHeaders must be added to the
// request before it is forwarded; a non-nil State must be persisted.
type Succeeded struct {
	User                *User
	AuthHeaders         http.Header
	AuthResponseHeaders http.Header
	State               *State
}

// Redirected sends the client to URL. A non-nil State must be persisted.
type Redirected struct {
	URL   string
	State *State
}

// Failed is terminal for the current provider. Err is the original error.
type Failed struct {
	Err                 error
	AuthResponseHeaders http.Header
}

func (NotHandled) authenticationResult() {}
func (Succeeded) authenticationResult()  {}
func (Redirected) authenticationResult() {}
func (Failed) authenticationResult()     {}

// DeauthenticationResult is one of LogoutNotHandled, LogoutRedirected or LogoutFailed.
type DeauthenticationResult interface {
	deauthenticationResult()
}

type LogoutNotHandled struct{}

type LogoutRedirected struct {
	URL string
}

type LogoutFailed struct {
	Err error
}

func (LogoutNotHandled) deauthenticationResult() {}
func (LogoutRedirected) deauthenticationResult() {}
func (LogoutFailed) deauthenticationResult()     {}

func notHandled() AuthenticationResult {
	return NotHandled{}
}

func failed(err error) AuthenticationResult {
	return Failed{Err: err, AuthResponseHeaders: responseHeaders(err)}
}

func isNotHandled(res AuthenticationResult) bool {
	_, ok := res.(NotHandled)
	return ok
}

// Kind names a result for logging.
func Kind(res AuthenticationResult) string {
	switch res.(type) {
	case NotHandled:
		return "not_handled"
	case Succeeded:
		return "succeeded"
	case Redirected:
		return "redirected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
