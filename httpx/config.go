package httpx

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request when neither the Config nor the Request set one.
const DefaultTimeout = 10 * time.Second

// Config configures a Client. Use DefaultConfig() as a baseline.
type Config struct {
	// Timeout is the default hard limit for one request. Request.Timeout overrides it.
	// If the request context already has an earlier deadline, that one wins.
	Timeout time.Duration

	// Transport is the underlying RoundTripper. If nil, a tuned default is used.
	Transport http.RoundTripper

	// DefaultHeaders are copied into every request (request headers win).
	DefaultHeaders http.Header

	// UserAgent is set when the request does not already have a User-Agent header.
	UserAgent string

	// RequestID tags every request with an id header so provider support can trace it.
	RequestID RequestIDConfig

	// RateLimiter, when set, is waited on before every request.
	RateLimiter RateLimiter

	// MaxErrorBodyBytes limits how many bytes of a non-2xx body are kept on Error.RawBody.
	// If zero, DefaultMaxErrorBodyBytes is used.
	MaxErrorBodyBytes int64
}

const DefaultMaxErrorBodyBytes int64 = 64 << 10 // 64KiB

// DefaultConfig returns a conservative baseline suitable for explorer APIs.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		Transport:         DefaultTransport(),
		DefaultHeaders:    make(http.Header),
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
	}
}
