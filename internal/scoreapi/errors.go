// errors.go - Failure taxonomy for upstream backend calls
package scoreapi

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a backend call failed. Timeouts are kept distinct from
// generic network failures so callers can surface a "may still be processing"
// advisory for long-running analyze jobs instead of a hard failure.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindTimeout  Kind = "timeout"
	KindRejected Kind = "rejected"
	KindDecode   Kind = "decode"
)

// Error is the typed failure returned by all Client calls.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status, 0 if the request never completed
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a backend call that exceeded its deadline.
func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindTimeout
}

// IsRejected reports whether the backend returned a structured rejection
// (validation failure, insufficient quota, etc.).
func IsRejected(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindRejected
}

// Message returns the backend-provided message if err carries one, else the
// given fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// classifyTransport maps a transport-level error to a typed Error.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "backend unreachable", Err: err}
}
