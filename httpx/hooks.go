package httpx

import (
	"context"
	"net/http"
	"time"
)

// RateLimiter can be used to throttle outgoing requests.
// It should block until a token is available or ctx is canceled.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// BeforeHook runs right before the request is sent. It may return a replacement request
// (e.g. with an added query parameter or signed header); returning nil keeps req.
type BeforeHook func(req *http.Request) (*http.Request, error)

// AfterHook runs after the round trip, before the body is parsed. resp is nil on transport errors.
type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration)

type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to an http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func chain(rt http.RoundTripper, mws []Middleware) http.RoundTripper {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		rt = mws[i](rt)
	}
	return rt
}
