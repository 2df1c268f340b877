package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	bigmi "github.com/lifinance/bigmi-sub000"
)

type wsBehavior int32

const (
	wsAnswer wsBehavior = iota
	wsDrop
	wsSilent
)

func newWSServer(t *testing.T, behavior *atomic.Int32, conns *atomic.Int32) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		defer conn.Close()
		for {
			var req struct {
				ID     uint64 `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch wsBehavior(behavior.Load()) {
			case wsDrop:
				return
			case wsSilent:
				continue
			}
			if req.Method == "getblockhash" {
				_ = conn.WriteJSON(map[string]any{"id": req.ID, "error": map[string]any{"code": -8, "message": "Block height out of range"}})
				continue
			}
			_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 840000 + req.ID})
		}
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_RequestAndReconnect(t *testing.T) {
	var behavior, conns atomic.Int32
	tr, err := WebSocket(newWSServer(t, &behavior, &conns))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	ctx := context.Background()
	call := bigmi.RPCCall{Method: bigmi.MethodGetBlockCount}

	v, err := tr.Request(ctx, call)
	require.NoError(t, err)
	require.JSONEq(t, "840001", string(v.(json.RawMessage)))

	behavior.Store(int32(wsDrop))
	_, err = tr.Request(ctx, call)
	var sc *bigmi.SocketClosedError
	require.ErrorAs(t, err, &sc)
	require.True(t, bigmi.ShouldRetry(err))

	behavior.Store(int32(wsAnswer))
	require.Eventually(t, func() bool {
		_, err := tr.Request(ctx, call)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 2, conns.Load())
}

func TestWebSocket_RPCError(t *testing.T) {
	var behavior, conns atomic.Int32
	tr, err := WebSocket(newWSServer(t, &behavior, &conns))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	_, err = tr.Request(context.Background(), bigmi.RPCCall{Method: bigmi.MethodGetBlockHash, Params: []any{99999999}})
	var nf *bigmi.BlockNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "99999999", nf.Block)
}

func TestWebSocket_Timeout(t *testing.T) {
	var behavior, conns atomic.Int32
	behavior.Store(int32(wsSilent))
	tr, err := WebSocket(newWSServer(t, &behavior, &conns), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	_, err = tr.Request(context.Background(), bigmi.RPCCall{Method: bigmi.MethodGetBlockCount})
	var te *bigmi.TimeoutError
	require.ErrorAs(t, err, &te)
	require.Equal(t, 50*time.Millisecond, te.Limit)
}

func TestWebSocket_DialFailure(t *testing.T) {
	tr, err := WebSocket("ws://127.0.0.1:1")
	require.NoError(t, err)
	_, err = tr.Request(context.Background(), bigmi.RPCCall{Method: bigmi.MethodGetBlockCount})
	var sc *bigmi.SocketClosedError
	require.ErrorAs(t, err, &sc)
}
