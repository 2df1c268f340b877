package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
)

var _ bigmi.Transport = (*HTTPTransport)(nil)

// HTTPTransport answers calls through a provider adapter when it has one for the method,
// and with a JSON-RPC POST to the base URL otherwise.
type HTTPTransport struct {
	cfg     bigmi.TransportConfig
	url     string
	apiKey  string
	adapter providers.Adapter
	client  *httpx.Client
	nextID  atomic.Uint64
}

// HTTP returns a raw JSON-RPC transport for rawURL (a node or an RPC gateway).
func HTTP(rawURL string, opts ...Option) (*HTTPTransport, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("transport: url is required")
	}
	o := apply(opts)
	return &HTTPTransport{
		cfg:    o.config("http", "HTTP JSON-RPC", "http"),
		url:    rawURL,
		apiKey: o.apiKey,
		client: o.executor(),
	}, nil
}

// Provider returns a block-explorer transport. An empty baseURL selects the provider default.
func Provider(key providers.Key, baseURL string, opts ...Option) (*HTTPTransport, error) {
	a, err := AdapterFor(key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = a.DefaultBaseURL()
	}
	t, err := HTTP(baseURL, append([]Option{WithKey(string(key)), WithName(string(key))}, opts...)...)
	if err != nil {
		return nil, err
	}
	t.adapter = a
	return t, nil
}

func (t *HTTPTransport) Config() bigmi.TransportConfig { return t.cfg }

// URL is the base URL requests are sent to.
func (t *HTTPTransport) URL() string { return t.url }

func (t *HTTPTransport) Request(ctx context.Context, call bigmi.RPCCall) (any, error) {
	if !t.cfg.Methods.Allows(call.Method) {
		return nil, &bigmi.MethodNotSupportedError{Method: call.Method}
	}
	if t.adapter != nil {
		endpoint := t.url
		env := providers.Env{HTTP: t.client, BaseURL: t.url, APIKey: t.apiKey, Endpoint: &endpoint}
		res, ok, err := dispatch(ctx, t.adapter, env, call)
		if ok {
			if err != nil {
				return nil, err
			}
			if res.Err != nil {
				// The adapter's request shape is provider specific; the canonical params stand in for it.
				params, _ := json.Marshal(call.Params)
				return nil, bigmi.ErrorFromPayload(call, res.Err, endpoint, params)
			}
			return res.Value, nil
		}
	}
	return t.rpc(ctx, call)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	ID     json.RawMessage        `json:"id"`
	Result json.RawMessage        `json:"result"`
	Error  *bigmi.RPCErrorPayload `json:"error"`
}

func newRPCRequest(id uint64, call bigmi.RPCCall) rpcRequest {
	params := call.Params
	if params == nil {
		params = []any{}
	}
	return rpcRequest{JSONRPC: "2.0", ID: id, Method: string(call.Method), Params: params}
}

// rpc posts {jsonrpc, id, method, params}. A JSON-RPC error object is reported as an RPC
// error even when the node pairs it with a non-2xx status, as bitcoind does.
func (t *HTTPTransport) rpc(ctx context.Context, call bigmi.RPCCall) (any, error) {
	req := newRPCRequest(t.nextID.Add(1), call)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &bigmi.ParseError{Method: call.Method, Field: "params", Cause: err}
	}
	hreq := httpx.Request{Method: "POST", URL: t.url, Body: json.RawMessage(body)}
	if t.adapter == nil && t.apiKey != "" {
		hreq.Header = map[string][]string{"X-Api-Key": {t.apiKey}}
	}

	raw, err := t.client.Execute(ctx, hreq)
	if err != nil {
		if he, ok := httpx.AsError(err); ok && he.StatusCode != 0 {
			var resp rpcResponse
			if json.Unmarshal(he.Body, &resp) == nil && resp.Error != nil {
				return nil, bigmi.ErrorFromPayload(call, resp.Error, t.url, body)
			}
		}
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &httpx.Error{Method: "POST", URL: t.url, RequestBody: body, RawBody: raw, Details: "invalid JSON-RPC response", Cause: err}
	}
	if resp.Error != nil {
		return nil, bigmi.ErrorFromPayload(call, resp.Error, t.url, body)
	}
	return resp.Result, nil
}
