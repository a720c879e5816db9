// SPDX-License-Identifier: MIT

package sentry

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrBadStatus        = errors.New("sentry: unexpected HTTP status")
	ErrUnavailable      = errors.New("sentry: host unreachable or transport failure")
	ErrTimeout          = errors.New("sentry: request timed out")
	ErrBadResponse      = errors.New("sentry: malformed response body")
	ErrUnexpectedFormat = errors.New("sentry: unexpected data format")
)

// Error wraps a sentinel with the operation and upstream detail.
type Error struct {
	Sentinel error
	Op       string
	Status   int
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// upstreamFault reports whether err says the service itself is unhealthy.
// A 4xx answer other than 429 points at the request, not at Sentry.
func upstreamFault(err error) bool {
	var e *Error
	if errors.As(err, &e) && errors.Is(e.Sentinel, ErrBadStatus) {
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return true
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrUnexpectedFormat):
		return "unexpected_format"
	default:
		return "error"
	}
}
