package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecute_QueryAndDefaultHeaders(t *testing.T) {
	var gotQuery, gotUA, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithUserAgent("bigmi-test"), WithDefaultHeader("X-Api-Key", "k"))
	raw, err := c.Execute(context.Background(), Get(srv.URL+"/v1?x=1", url.Values{"y": {"2"}}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", raw)
	}
	if !strings.Contains(gotQuery, "x=1") || !strings.Contains(gotQuery, "y=2") {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
	if gotUA != "bigmi-test" || gotKey != "k" {
		t.Fatalf("unexpected headers: ua=%q key=%q", gotUA, gotKey)
	}
}

func TestExecute_PostJSONBody(t *testing.T) {
	var gotCT string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":1}`))
	}))
	t.Cleanup(srv.Close)

	c := New()
	if _, err := c.Execute(context.Background(), PostJSON(srv.URL, map[string]any{"method": "getblockcount"})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotCT != "application/json" {
		t.Fatalf("unexpected content type: %q", gotCT)
	}
	if got["method"] != "getblockcount" {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestExecute_TextBodyBecomesJSONString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("f00dbabe\n"))
	}))
	t.Cleanup(srv.Close)

	got, err := ExecuteJSON[string](context.Background(), New(), Request{Method: http.MethodPost, URL: srv.URL, Body: "0200"})
	if err != nil {
		t.Fatalf("ExecuteJSON: %v", err)
	}
	if got != "f00dbabe" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestExecute_NumericTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("840000"))
	}))
	t.Cleanup(srv.Close)

	got, err := ExecuteJSON[int64](context.Background(), New(), Get(srv.URL, nil))
	if err != nil {
		t.Fatalf("ExecuteJSON: %v", err)
	}
	if got != 840000 {
		t.Fatalf("unexpected value: %d", got)
	}
}

func TestExecute_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	t.Cleanup(srv.Close)

	_, err := New().Execute(context.Background(), Get(srv.URL, nil))
	he, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if he.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", he.StatusCode)
	}
	if string(he.Body) != `{"error":"slow down"}` {
		t.Fatalf("unexpected body: %s", he.Body)
	}
	if he.Details != "slow down" {
		t.Fatalf("unexpected details: %q", he.Details)
	}
	d, ok := he.RetryAfter()
	if !ok || d != 2*time.Second {
		t.Fatalf("unexpected retry-after: %v %v", d, ok)
	}
	if !IsHTTPStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("IsHTTPStatus false")
	}
}

func TestExecute_ErrorBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	t.Cleanup(srv.Close)

	c := New(WithMaxErrorBodyBytes(10))
	_, err := c.Execute(context.Background(), Get(srv.URL, nil))
	he, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(he.RawBody) != 10 {
		t.Fatalf("expected truncated body of 10 bytes, got %d", len(he.RawBody))
	}
}

func TestExecute_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"broken"`))
	}))
	t.Cleanup(srv.Close)

	_, err := New().Execute(context.Background(), Get(srv.URL, nil))
	he, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if he.StatusCode != http.StatusOK || he.Cause == nil {
		t.Fatalf("unexpected error: %+v", he)
	}
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	_, err := c.Execute(context.Background(), Request{URL: srv.URL, Body: map[string]int{"a": 1}})
	te, ok := AsTimeoutError(err)
	if !ok {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if te.Limit != 50*time.Millisecond || !strings.Contains(string(te.Body), `"a":1`) {
		t.Fatalf("unexpected timeout error: %+v", te)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout did not abort the request")
	}
}

func TestExecute_CallerCancelIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := New().Execute(ctx, Get(srv.URL, nil))
	if _, ok := AsTimeoutError(err); ok {
		t.Fatalf("caller cancellation reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecute_HooksAndMiddleware(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	var mwCalls, afterCalls int32
	c := New().
		WithMiddleware(func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				atomic.AddInt32(&mwCalls, 1)
				return next.RoundTrip(r)
			})
		}).
		WithHooks(
			[]BeforeHook{func(req *http.Request) (*http.Request, error) {
				q := req.URL.Query()
				q.Set("token", "secret")
				req.URL.RawQuery = q.Encode()
				return req, nil
			}},
			[]AfterHook{func(req *http.Request, resp *http.Response, err error, dur time.Duration) {
				atomic.AddInt32(&afterCalls, 1)
			}},
		)

	if _, err := c.Execute(context.Background(), Get(srv.URL, nil)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotToken != "secret" {
		t.Fatalf("before hook not applied: %q", gotToken)
	}
	if atomic.LoadInt32(&mwCalls) != 1 || atomic.LoadInt32(&afterCalls) != 1 {
		t.Fatalf("unexpected calls: mw=%d after=%d", mwCalls, afterCalls)
	}
}

func TestExecute_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New().Execute(context.Background(), Get(addr, nil))
	he, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if he.StatusCode != 0 || he.Cause == nil {
		t.Fatalf("unexpected error: %+v", he)
	}
}

func TestExecute_RequestID(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	var n int32
	c := New(WithRequestID("X-Request-ID", func() string {
		return "req-" + string(rune('0'+atomic.AddInt32(&n, 1)))
	}))
	for i := 0; i < 2; i++ {
		if _, err := c.Execute(context.Background(), Get(srv.URL, nil)); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	r := Get(srv.URL, nil)
	r.Header = http.Header{"X-Request-ID": {"fixed"}}
	if _, err := c.Execute(context.Background(), r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ids) != 3 || ids[0] != "req-1" || ids[1] != "req-2" || ids[2] != "fixed" {
		t.Fatalf("unexpected request ids: %v", ids)
	}

	if id := DefaultRequestID(); len(id) != 32 {
		t.Fatalf("unexpected default id %q", id)
	}
}

type stubLimiter struct {
	waits int32
	err   error
}

func (l *stubLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&l.waits, 1)
	return l.err
}

func TestExecute_RateLimiter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	rl := &stubLimiter{}
	c := New(WithRateLimiter(rl))
	for i := 0; i < 2; i++ {
		if _, err := c.Execute(context.Background(), Get(srv.URL, nil)); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if rl.waits != 2 || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("waits=%d hits=%d", rl.waits, atomic.LoadInt32(&hits))
	}

	rl.err = errors.New("quota exhausted")
	_, err := c.Execute(context.Background(), Get(srv.URL, nil))
	he, ok := AsError(err)
	if !ok || !errors.Is(he, rl.err) {
		t.Fatalf("expected *Error wrapping the limiter error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("request sent despite limiter error")
	}
}
