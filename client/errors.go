package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LeventeLantos/zenvia-go/model"
)

// Transport failure kinds. A *TransportError matches exactly one of them with
// errors.Is. A stalled TLS handshake is an ErrConnectionTimeout, as is the
// wait for a pooled slot. ErrResponseTimeout means the connection was up but
// the server went silent for longer than ResponseTimeout.
var (
	ErrConnectionFailed  = errors.New("connection failed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrResponseTimeout   = errors.New("response timeout")
	ErrIO                = errors.New("i/o failure")
)

var ErrClientClosed = errors.New("client is closed")

// TransportError is a failure below the HTTP protocol level.
type TransportError struct {
	Kind   error
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zenvia: %s %s: %v: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// UnsupportedContentError is returned by SendMessage before any request is
// made when a content item cannot be delivered on the target channel.
type UnsupportedContentError struct {
	Index       int
	ContentType model.ContentType
	Channel     model.Channel
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("zenvia: content %q at index %d is not supported by channel %q (accepts %s)",
		e.ContentType, e.Index, e.Channel, joinContentTypes(e.Channel.SupportedContents()))
}

// UnsuccessfulRequestError is a non-2xx response. Body is nil when the
// response body could not be decoded as an ErrorResponse; Err then holds the
// decode failure and RawBody the bytes received.
type UnsuccessfulRequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       *model.ErrorResponse
	RawBody    string
	Err        error
}

func (e *UnsuccessfulRequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "zenvia: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	switch {
	case e.Body != nil:
		if e.Body.Code != "" {
			fmt.Fprintf(&b, ": %s", e.Body.Code)
		}
		if e.Body.Message != "" {
			fmt.Fprintf(&b, ": %s", e.Body.Message)
		}
		for _, d := range e.Body.Details {
			fmt.Fprintf(&b, "; %s: %s", d.Path, d.Message)
		}
	case e.RawBody != "":
		fmt.Fprintf(&b, ": body=%q", e.RawBody)
	}
	return b.String()
}

func (e *UnsuccessfulRequestError) Unwrap() error { return e.Err }

// UnexpectedResponseError is a 2xx response whose body could not be decoded
// into the expected type.
type UnexpectedResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("zenvia: %s %s: unexpected response body (HTTP %d): %v body=%q", e.Method, e.URL, e.StatusCode, e.Err, e.Body)
}

func (e *UnexpectedResponseError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of an unsuccessful request.
func StatusCode(err error) (int, bool) {
	var re *UnsuccessfulRequestError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}

// IsConflict reports whether err is a 409 Conflict response.
func IsConflict(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == 409
}

// IsNotFound reports whether err is a 404 Not Found response.
func IsNotFound(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == 404
}

func joinContentTypes(types []model.ContentType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
