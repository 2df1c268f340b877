package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/lifinance/bigmi-sub000/httpx"
)

// Env is what a transport hands an adapter for one call.
type Env struct {
	HTTP    *httpx.Client
	BaseURL string
	APIKey  string

	// Endpoint, when set, receives the URL (without query) of each request sent.
	Endpoint *string
}

// URL joins path segments onto BaseURL, escaping each segment.
func (e Env) URL(segments ...string) string {
	u := strings.TrimRight(e.BaseURL, "/")
	for _, s := range segments {
		u += "/" + url.PathEscape(strings.Trim(s, "/"))
	}
	return u
}

func (e Env) client() *httpx.Client {
	if e.HTTP != nil {
		return e.HTTP
	}
	return defaultClient
}

var defaultClient = httpx.New()

func (e Env) record(rawURL string) {
	if e.Endpoint != nil {
		*e.Endpoint = rawURL
	}
}

// Execute sends r with the env's HTTP client.
func (e Env) Execute(ctx context.Context, r httpx.Request) (json.RawMessage, error) {
	e.record(r.URL)
	return e.client().Execute(ctx, r)
}

// GetJSON performs a GET and decodes the response into T.
func GetJSON[T any](ctx context.Context, env Env, rawURL string, query url.Values) (T, error) {
	env.record(rawURL)
	return httpx.ExecuteJSON[T](ctx, env.client(), httpx.Get(rawURL, query))
}

// SendJSON performs r and decodes the response into T.
func SendJSON[T any](ctx context.Context, env Env, r httpx.Request) (T, error) {
	env.record(r.URL)
	return httpx.ExecuteJSON[T](ctx, env.client(), r)
}

// IsStatus reports whether err is an HTTP error with one of the given statuses.
func IsStatus(err error, codes ...int) bool {
	he, ok := httpx.AsError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if he.StatusCode == c {
			return true
		}
	}
	return false
}

// IsNotFound reports a 404, or a 400 whose body says "not found".
func IsNotFound(err error) bool {
	he, ok := httpx.AsError(err)
	if !ok {
		return false
	}
	if he.StatusCode == http.StatusNotFound {
		return true
	}
	return he.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(he.Details), "not found")
}
