package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkUnavailable wraps transport failures (DNS, refused, reset).
	ErrNetworkUnavailable = errors.New("remote: network unavailable")

	// ErrParseFailure means the server answered but the body was unusable.
	ErrParseFailure = errors.New("remote: unparseable response")

	// ErrAuthFailure means the server rejected the credentials and a token
	// refresh did not help.
	ErrAuthFailure = errors.New("remote: authentication failed")
)

// APIError is a non-2xx response carrying the server's error envelope:
//
//	{"error": {"errorCode": "...", "developerMessage": "..."}}
type APIError struct {
	StatusCode       int
	ErrorKey         string
	DeveloperMessage string
}

func (e *APIError) Error() string {
	switch {
	case e.ErrorKey != "" && e.DeveloperMessage != "":
		return fmt.Sprintf("remote: status %d: %s: %s", e.StatusCode, e.ErrorKey, e.DeveloperMessage)
	case e.ErrorKey != "":
		return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.ErrorKey)
	case e.DeveloperMessage != "":
		return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.DeveloperMessage)
	}
	return fmt.Sprintf("remote: status %d", e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
