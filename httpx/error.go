package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error represents a failed HTTP request: either a non-2xx response or a failure before
// a usable response existed (DNS, connection reset, body decode).
type Error struct {
	Method string
	URL    string

	// StatusCode is the HTTP status code. It is 0 when the request failed before receiving a response.
	StatusCode int

	// Header holds the response headers (nil without a response). Retry hints are read from here.
	Header http.Header

	// RequestBody is the body that was sent, kept for diagnostics.
	RequestBody []byte

	// Body is the parsed response body. Non-JSON error bodies are wrapped as {"error": "<text>"}.
	Body json.RawMessage

	// RawBody is a truncated copy of the response body.
	RawBody []byte

	// Details is a short human description extracted from the response (its "error" field,
	// or the status text).
	Details string

	// Cause is the underlying error (transport error, context cancellation, JSON decode error, etc).
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if strings.TrimSpace(e.Method) != "" {
		b.WriteString(strings.ToUpper(strings.TrimSpace(e.Method)))
		b.WriteString(" ")
	}
	if strings.TrimSpace(e.URL) != "" {
		b.WriteString(strings.TrimSpace(e.URL))
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
		if t := strings.TrimSpace(http.StatusText(e.StatusCode)); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
	} else {
		b.WriteString("request failed")
	}
	if d := strings.TrimSpace(e.Details); d != "" && d != http.StatusText(e.StatusCode) {
		b.WriteString(": ")
		b.WriteString(d)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// RetryAfter parses the Retry-After response header.
// Only the integer-seconds form is honored; HTTP dates are ignored.
func (e *Error) RetryAfter() (time.Duration, bool) {
	if e == nil || e.Header == nil {
		return 0, false
	}
	return parseRetryAfter(e.Header)
}

// TimeoutError is returned when the hard per-request timeout fires before a response is read.
// Limit is the timeout that fired.
type TimeoutError struct {
	Method  string
	URL     string
	Body    []byte
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: request timed out after %s (timeout %s)",
		strings.ToUpper(e.Method), e.URL, e.Elapsed.Round(time.Millisecond), e.Limit)
}

// Timeout lets TimeoutError satisfy the net.Error style check.
func (e *TimeoutError) Timeout() bool { return true }

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// AsTimeoutError extracts *TimeoutError.
func AsTimeoutError(err error) (*TimeoutError, bool) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}

func parseRetryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
