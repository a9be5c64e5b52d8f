// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across the retrieval
// pipeline: the error taxonomy for provider calls and a generic retry
// policy with exponential backoff.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ErrNotFound marks a legitimate empty result from a provider. It is a
// normal, non-exceptional outcome: callers move on to the next
// candidate rather than logging a failure.
var ErrNotFound = errors.New("not found")

// maxErrorBody bounds how much of a response body is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError reports a non-success HTTP status. For 4xx responses the
// body is attached for diagnostics; these are permanent and not retried
// within the same provider call.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// NewStatusError drains up to maxErrorBody bytes of resp.Body into the
// error for client errors. The caller still owns closing the body.
func NewStatusError(resp *http.Response) *StatusError {
	e := &StatusError{StatusCode: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.String()
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.Body = string(body)
	}
	return e
}

// IsTransient reports whether err looks like a retryable network-level
// failure: timeouts, connection resets, DNS trouble, and HTTP 429/5xx.
// Client errors (4xx other than 429) and decode errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// A server dropping the connection before answering surfaces as a
	// bare EOF from the transport.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var de *net.DNSError
	return errors.As(err, &de)
}
