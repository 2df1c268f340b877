package bigmi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	"github.com/lifinance/bigmi-sub000/internal/dedupe"
)

// Client binds account and chain metadata to a Transport. All calls go through Request.
type Client struct {
	UID       string
	Key       string
	Name      string
	Type      string
	Account   *Account
	Chain     *chaincfg.Params
	Transport Transport

	request    Requester
	registry   *dedupe.Registry
	extensions map[string]any
}

type clientOptions struct {
	key     string
	name    string
	account *Account
	chain   *chaincfg.Params
	logger  *zerolog.Logger
	sleep   SleepFunc
	onRetry func(RetryEvent)
}

type ClientOption func(*clientOptions)

func WithAccount(a Account) ClientOption {
	return func(o *clientOptions) { o.account = &a }
}

// WithChain sets the network; the default is mainnet.
func WithChain(p *chaincfg.Params) ClientOption {
	return func(o *clientOptions) { o.chain = p }
}

func WithKey(key string) ClientOption {
	return func(o *clientOptions) { o.key = key }
}

func WithName(name string) ClientOption {
	return func(o *clientOptions) { o.name = name }
}

func WithLogger(l *zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithSleep replaces the retry backoff timer.
func WithSleep(fn SleepFunc) ClientOption {
	return func(o *clientOptions) { o.sleep = fn }
}

// WithRetryObserver is called before every retry.
func WithRetryObserver(fn func(RetryEvent)) ClientOption {
	return func(o *clientOptions) { o.onRetry = fn }
}

// NewClient creates a client over t. Each client owns its dedupe registry.
func NewClient(t Transport, opts ...ClientOption) (*Client, error) {
	if t == nil {
		return nil, errors.New("bigmi: transport is required")
	}
	o := clientOptions{key: "base", name: "Base Client", chain: &chaincfg.MainNetParams}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	uid, err := newUID()
	if err != nil {
		return nil, err
	}

	tc := t.Config()
	reg := dedupe.New()
	c := &Client{
		UID:        uid,
		Key:        o.key,
		Name:       o.name,
		Type:       "base",
		Account:    o.account,
		Chain:      o.chain,
		Transport:  t,
		registry:   reg,
		extensions: map[string]any{},
	}
	c.request = BuildRequest(t.Request, PipelineConfig{
		UID:        uid,
		Registry:   reg,
		Methods:    tc.Methods,
		RetryCount: tc.RetryCount,
		RetryDelay: tc.RetryDelay,
		Sleep:      o.sleep,
		Logger:     o.logger,
		OnRetry:    o.onRetry,
	})
	return c, nil
}

// Request sends call through the pipeline and the bound transport.
func (c *Client) Request(ctx context.Context, call RPCCall, opts ...RequestOption) (any, error) {
	return c.request(ctx, call, opts...)
}

// Decorator returns named members to add to a client.
type Decorator func(c *Client) map[string]any

var baseMembers = map[string]bool{
	"uid":       true,
	"key":       true,
	"name":      true,
	"type":      true,
	"account":   true,
	"chain":     true,
	"transport": true,
	"request":   true,
	"extend":    true,
}

// Extend returns a new client carrying the members fn adds on top of the current ones.
// Names of base fields are ignored, so extension can never replace them. c is unchanged and
// the new client shares its identity and dedupe registry.
func (c *Client) Extend(fn Decorator) *Client {
	next := *c
	next.extensions = make(map[string]any, len(c.extensions))
	for k, v := range c.extensions {
		next.extensions[k] = v
	}
	if fn == nil {
		return &next
	}
	for name, v := range fn(c) {
		if baseMembers[name] {
			continue
		}
		next.extensions[name] = v
	}
	return &next
}

// Member returns an extension member by name.
func (c *Client) Member(name string) (any, bool) {
	v, ok := c.extensions[name]
	return v, ok
}

// Members lists extension member names in sorted order.
func (c *Client) Members() []string {
	out := make([]string, 0, len(c.extensions))
	for k := range c.extensions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Member returns the extension member name of c as a T.
func Member[T any](c *Client, name string) (T, bool) {
	var zero T
	v, ok := c.Member(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Call performs call and converts the result to T. Results that arrive untyped (raw JSON-RPC
// answers) are decoded; a result that cannot become T is a *ParseError.
func Call[T any](ctx context.Context, c *Client, call RPCCall, opts ...RequestOption) (T, error) {
	var zero T
	res, err := c.Request(ctx, call, opts...)
	if err != nil {
		return zero, err
	}
	return As[T](call.Method, res)
}

// As converts a transport result to T.
func As[T any](method Method, res any) (T, error) {
	var out T
	switch v := res.(type) {
	case T:
		return v, nil
	case json.RawMessage:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, &ParseError{Method: method, Field: "result", Cause: err}
		}
		return out, nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return out, &ParseError{Method: method, Field: "result", Cause: err}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ParseError{Method: method, Field: "result", Cause: fmt.Errorf("%T: %w", res, err)}
	}
	return out, nil
}

func newUID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
