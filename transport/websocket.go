package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
)

var _ bigmi.Transport = (*WebSocketTransport)(nil)

// WebSocketTransport multiplexes JSON-RPC calls over one connection, matching answers by id.
// The connection is dialed on first use and again on the first call after it dropped; calls
// in flight when it drops fail with *bigmi.SocketClosedError.
type WebSocketTransport struct {
	cfg    bigmi.TransportConfig
	url    string
	header http.Header
	dialer *websocket.Dialer
	opts   options
	nextID atomic.Uint64

	mu   sync.Mutex
	sess *wsSession
}

type wsResult struct {
	resp rpcResponse
	err  error
}

type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan wsResult
	closed  error
}

func WebSocket(rawURL string, opts ...Option) (*WebSocketTransport, error) {
	if rawURL == "" {
		return nil, errors.New("transport: websocket url is required")
	}
	o := apply(opts)
	h := http.Header{}
	if o.apiKey != "" {
		h.Set("X-Api-Key", o.apiKey)
	}
	return &WebSocketTransport{
		cfg:    o.config("websocket", "WebSocket JSON-RPC", "websocket"),
		url:    rawURL,
		header: h,
		dialer: &websocket.Dialer{HandshakeTimeout: o.timeout, Proxy: http.ProxyFromEnvironment},
		opts:   o,
	}, nil
}

func (t *WebSocketTransport) Config() bigmi.TransportConfig { return t.cfg }

func (t *WebSocketTransport) session(ctx context.Context) (*wsSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil && t.sess.err() == nil {
		return t.sess, nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, &bigmi.SocketClosedError{URL: t.url, Cause: err}
	}
	s := &wsSession{conn: conn, pending: make(map[uint64]chan wsResult)}
	t.sess = s
	t.opts.logger.Debug().Str("url", t.url).Msg("websocket connected")
	go t.readLoop(s)
	return s, nil
}

func (t *WebSocketTransport) readLoop(s *wsSession) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.opts.logger.Warn().Str("url", t.url).Err(err).Msg("websocket read failed")
			}
			s.fail(&bigmi.SocketClosedError{URL: t.url, Cause: err})
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		id, err := strconv.ParseUint(string(resp.ID), 10, 64)
		if err != nil {
			continue
		}
		s.deliver(id, wsResult{resp: resp})
	}
}

func (s *wsSession) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *wsSession) register(id uint64) (chan wsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed != nil {
		return nil, s.closed
	}
	ch := make(chan wsResult, 1)
	s.pending[id] = ch
	return ch, nil
}

func (s *wsSession) forget(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *wsSession) deliver(id uint64, r wsResult) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if ok {
		ch <- r
	}
}

func (s *wsSession) fail(err error) {
	s.mu.Lock()
	if s.closed == nil {
		s.closed = err
	}
	pending := s.pending
	s.pending = make(map[uint64]chan wsResult)
	s.mu.Unlock()
	for _, ch := range pending {
		ch <- wsResult{err: err}
	}
	_ = s.conn.Close()
}

func (s *wsSession) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (t *WebSocketTransport) Request(ctx context.Context, call bigmi.RPCCall) (any, error) {
	if !t.cfg.Methods.Allows(call.Method) {
		return nil, &bigmi.MethodNotSupportedError{Method: call.Method}
	}
	s, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	id := t.nextID.Add(1)
	req := newRPCRequest(id, call)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &bigmi.ParseError{Method: call.Method, Field: "params", Cause: err}
	}
	ch, err := s.register(id)
	if err != nil {
		return nil, err
	}
	if err := s.write(json.RawMessage(body)); err != nil {
		s.forget(id)
		closed := &bigmi.SocketClosedError{URL: t.url, Cause: err}
		s.fail(closed)
		return nil, closed
	}

	start := time.Now()
	timer := time.NewTimer(t.cfg.Timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, bigmi.ErrorFromPayload(call, r.resp.Error, t.url, body)
		}
		return r.resp.Result, nil
	case <-timer.C:
		s.forget(id)
		return nil, &httpx.TimeoutError{Method: "WS", URL: t.url, Body: body, Limit: t.cfg.Timeout, Elapsed: time.Since(start)}
	case <-ctx.Done():
		s.forget(id)
		return nil, ctx.Err()
	}
}

// Close closes the current connection. A later call reconnects.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	s := t.sess
	t.sess = nil
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.fail(&bigmi.SocketClosedError{URL: t.url})
	return nil
}
