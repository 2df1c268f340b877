package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client

	timeout        time.Duration
	defaultHeaders http.Header
	userAgent      string
	requestID      RequestIDConfig
	maxErrBody     int64

	rateLimiter RateLimiter
	before      []BeforeHook
	after       []AfterHook
}

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) *Client {
	rt := cfg.Transport
	if rt == nil {
		rt = DefaultTransport()
	}
	maxErrBody := cfg.MaxErrorBodyBytes
	if maxErrBody == 0 {
		maxErrBody = DefaultMaxErrorBodyBytes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Clone headers to avoid caller mutation.
	hdr := make(http.Header)
	for k, vv := range cfg.DefaultHeaders {
		for _, v := range vv {
			hdr.Add(k, v)
		}
	}

	return &Client{
		// No http.Client timeout: the per-request context deadline is the only clock.
		httpClient:     &http.Client{Transport: rt},
		timeout:        timeout,
		defaultHeaders: hdr,
		userAgent:      cfg.UserAgent,
		requestID:      cfg.RequestID,
		maxErrBody:     maxErrBody,
		rateLimiter:    cfg.RateLimiter,
	}
}

// WithMiddleware wraps the underlying RoundTripper with middleware.
// Call this during initialization (before the client is used concurrently).
func (c *Client) WithMiddleware(mws ...Middleware) *Client {
	if len(mws) == 0 {
		return c
	}
	rt := c.httpClient.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.httpClient.Transport = chain(rt, mws)
	return c
}

// WithHooks adds hooks (executed for every request).
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

// Timeout reports the default per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Execute sends r once and returns the parsed JSON body.
//
// Non-2xx responses and every transport, read or parse failure are returned as *Error;
// expiry of the per-request timeout aborts the call and returns *TimeoutError.
func (c *Client) Execute(ctx context.Context, r Request) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := r.method()
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	body, contentType, err := r.encodeBody()
	if err != nil {
		return nil, &Error{Method: method, URL: r.URL, Details: "encode request body", Cause: err}
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()

	req, err := c.newHTTPRequest(tctx, r, body, contentType)
	if err != nil {
		return nil, &Error{Method: method, URL: r.URL, RequestBody: body, Cause: err}
	}

	fail := func(err error) error {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{
				Method:  method,
				URL:     req.URL.String(),
				Body:    body,
				Limit:   timeout,
				Elapsed: time.Since(start),
			}
		}
		return &Error{Method: method, URL: req.URL.String(), RequestBody: body, Cause: err}
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(tctx); err != nil {
			return nil, fail(err)
		}
	}
	for _, h := range c.before {
		if h == nil {
			continue
		}
		next, err := h(req)
		if err != nil {
			return nil, &Error{Method: method, URL: req.URL.String(), RequestBody: body, Details: "before hook", Cause: err}
		}
		if next != nil {
			req = next
		}
	}

	t0 := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(t0)
	for _, h := range c.after {
		if h != nil {
			h(req, resp, err, dur)
		}
	}
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	data, perr := parseBody(resp.Header.Get("Content-Type"), raw, ok)
	if !ok {
		return nil, &Error{
			Method:      method,
			URL:         req.URL.String(),
			StatusCode:  resp.StatusCode,
			Header:      resp.Header.Clone(),
			RequestBody: body,
			Body:        data,
			RawBody:     truncate(raw, c.maxErrBody),
			Details:     details(data, resp.StatusCode),
			Cause:       errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if perr != nil {
		return nil, &Error{
			Method:      method,
			URL:         req.URL.String(),
			StatusCode:  resp.StatusCode,
			Header:      resp.Header.Clone(),
			RequestBody: body,
			RawBody:     truncate(raw, c.maxErrBody),
			Details:     "invalid JSON response",
			Cause:       perr,
		}
	}
	return data, nil
}

func truncate(b []byte, n int64) []byte {
	if n > 0 && int64(len(b)) > n {
		b = b[:n]
	}
	return append([]byte(nil), b...)
}
