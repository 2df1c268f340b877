package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one outbound call. URL must be absolute.
type Request struct {
	// Method defaults to POST when Body is set and GET otherwise.
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	// Body is sent as-is when it is []byte or string (text/plain), and JSON-encoded otherwise.
	Body any

	// Timeout overrides the client default for this request.
	Timeout time.Duration
}

// Get is shorthand for a GET request with optional query parameters.
func Get(rawURL string, query url.Values) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Query: query}
}

// PostJSON is shorthand for a POST request with a JSON body.
func PostJSON(rawURL string, body any) Request {
	return Request{Method: http.MethodPost, URL: rawURL, Body: body}
}

func (r Request) method() string {
	if m := strings.ToUpper(strings.TrimSpace(r.Method)); m != "" {
		return m
	}
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

func (r Request) encodeBody() ([]byte, string, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return append([]byte(nil), b...), "text/plain", nil
	case string:
		return []byte(b), "text/plain", nil
	case json.RawMessage:
		return append([]byte(nil), b...), "application/json", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return raw, "application/json", nil
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, r Request, body []byte, contentType string) (*http.Request, error) {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, &url.Error{Op: "parse", URL: r.URL, Err: errors.New("url must be absolute")}
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vv := range r.Query {
			for _, v := range vv {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method(), u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		b := body
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	}

	// Default headers first, then request headers override.
	for k, vv := range c.defaultHeaders {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	for k, vv := range r.Header {
		req.Header.Del(k)
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if h := c.requestID.Header; h != "" && req.Header.Get(h) == "" {
		if id := c.requestID.id(); id != "" {
			req.Header.Set(h, id)
		}
	}
	return req, nil
}
