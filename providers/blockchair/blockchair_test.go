package blockchair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/providers"
)

const addr = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"

func newEnv(t *testing.T, h http.HandlerFunc) providers.Env {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return providers.Env{BaseURL: srv.URL, APIKey: "secret"}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// pair splits Blockchair's "<transactions>,<utxo>" parameter.
func pair(s string) (int, int) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	a, _ := strconv.Atoi(parts[0])
	b, _ := strconv.Atoi(parts[1])
	return a, b
}

func dashboard(address map[string]any, extra map[string]any) map[string]any {
	d := map[string]any{"address": address}
	for k, v := range extra {
		d[k] = v
	}
	return map[string]any{
		"data":    map[string]any{addr: d},
		"context": map[string]any{"code": 200, "state": 840000},
	}
}

func TestGetBalance(t *testing.T) {
	var gotKey string
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		writeJSON(w, dashboard(map[string]any{"balance": 12345}, nil))
	})

	res, err := New().GetBalance(context.Background(), env, bigmi.AddressParams{Address: addr})
	require.NoError(t, err)
	require.Equal(t, int64(12345), res.Value.Int64())
	require.Equal(t, "secret", gotKey)
}

func TestGetUTXOs_StopsOnceMinValueReached(t *testing.T) {
	const pageSize = 2
	var fetches int32
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_, utxoOffset := pair(r.URL.Query().Get("offset"))
		var utxos []map[string]any
		for i := utxoOffset; i < utxoOffset+pageSize; i++ {
			utxos = append(utxos, map[string]any{
				"block_id":         839990,
				"transaction_hash": fmt.Sprintf("%064x", i),
				"index":            i % 2,
				"value":            1000,
			})
		}
		writeJSON(w, dashboard(map[string]any{"balance": 20000, "unspent_output_count": 20}, map[string]any{"utxo": utxos}))
	})

	res, err := New(WithUTXOPageSize(pageSize)).GetUTXOs(context.Background(), env, bigmi.UTXOParams{Address: addr, MinValue: 5000})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.EqualValues(t, 3, atomic.LoadInt32(&fetches))

	seen := map[bigmi.Outpoint]bool{}
	for _, u := range res.Value {
		require.False(t, seen[u.Outpoint()])
		seen[u.Outpoint()] = true
		require.Equal(t, int64(11), u.Confirmations)
	}
	require.GreaterOrEqual(t, bigmi.TotalValue(res.Value).Int64(), int64(5000))
}

func TestGetUTXOs_InsufficientBalance(t *testing.T) {
	var fetches int32
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		writeJSON(w, dashboard(map[string]any{"balance": 100, "unspent_output_count": 1}, map[string]any{
			"utxo": []map[string]any{{"transaction_hash": "aa", "index": 0, "value": 100}},
		}))
	})

	res, err := New().GetUTXOs(context.Background(), env, bigmi.UTXOParams{Address: addr, MinValue: 5000})
	require.NoError(t, err)
	require.Equal(t, bigmi.CodeInsufficientBalance, res.Err.Code)
	data, ok := res.Err.Data.(bigmi.InsufficientBalanceData)
	require.True(t, ok)
	require.Equal(t, int64(100), data.Balance.Int64())
	require.EqualValues(t, 1, atomic.LoadInt32(&fetches))
}

// txEnv serves an address history of total transactions named tx0..tx<total-1>.
func txEnv(t *testing.T, total int) providers.Env {
	return newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		txLimit, _ := pair(r.URL.Query().Get("limit"))
		txOffset, _ := pair(r.URL.Query().Get("offset"))
		var txs []map[string]any
		for i := txOffset; i < total && i < txOffset+txLimit; i++ {
			txs = append(txs, map[string]any{"block_id": 839000, "hash": fmt.Sprintf("tx%d", i), "time": "2024-04-20 00:09:27"})
		}
		writeJSON(w, dashboard(map[string]any{"transaction_count": total}, map[string]any{"transactions": txs}))
	})
}

func TestGetTransactions_TotalsDriveHasMore(t *testing.T) {
	const total, limit = 7, 3
	env := txEnv(t, total)

	res, err := New().GetTransactions(context.Background(), env, bigmi.TransactionsParams{Address: addr, Limit: limit})
	require.NoError(t, err)
	txs, err := bigmi.DrainPages(context.Background(), res.Value)
	require.NoError(t, err)
	require.Len(t, txs, total)
	require.Equal(t, "tx6", txs[6].TxID)
	require.Equal(t, int64(1713571767), txs[0].BlockTime)
}

func TestGetTransactions_UnalignedOffset(t *testing.T) {
	env := txEnv(t, 10)

	res, err := New().GetTransactions(context.Background(), env, bigmi.TransactionsParams{Address: addr, Limit: 3, Offset: 5})
	require.NoError(t, err)
	first, err := res.Value.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Page)
	require.True(t, first.HasMore)
	require.Equal(t, "tx5", first.Transactions[0].TxID)
	require.Len(t, first.Transactions, 3)

	rest, err := bigmi.DrainPages(context.Background(), res.Value)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, "tx8", rest[0].TxID)
	require.Equal(t, "tx9", rest[1].TxID)
}

func TestQuotaBecomesResultFailure(t *testing.T) {
	for _, status := range []int{http.StatusPaymentRequired, 430} {
		env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"data":null,"context":{"code":402,"error":"Limit exceeded"}}`))
		})
		res, err := New().GetBalance(context.Background(), env, bigmi.AddressParams{Address: addr})
		require.NoError(t, err)
		require.Equal(t, bigmi.CodeLimitExceeded, res.Err.Code)
	}
}

func TestTooManyRequestsStaysHTTPError(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := New().GetBalance(context.Background(), env, bigmi.AddressParams{Address: addr})
	require.Equal(t, bigmi.KindHTTPRequest, bigmi.KindOf(err))
}

func TestGetTransaction(t *testing.T) {
	txID := strings.Repeat("ab", 32)
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, txID) {
			writeJSON(w, map[string]any{"data": []any{}, "context": map[string]any{"code": 404}})
			return
		}
		writeJSON(w, map[string]any{
			"data": map[string]any{txID: map[string]any{
				"transaction": map[string]any{"block_id": 839999, "hash": txID, "fee": 1500, "size": 225, "weight": 561},
				"inputs":      []map[string]any{{"transaction_hash": "cc", "index": 1, "recipient": "bc1qin", "value": 10000}},
				"outputs":     []map[string]any{{"index": 0, "recipient": "bc1qout", "value": 8500, "script_hex": "0014"}},
			}},
			"context": map[string]any{"state": 840000},
		})
	})
	a := New()
	res, err := a.GetTransaction(context.Background(), env, bigmi.TxIDParams{TxID: txID})
	require.NoError(t, err)
	require.Equal(t, int64(1500), res.Value.Fee)
	require.Equal(t, int64(2), res.Value.Confirmations)
	require.Equal(t, int64(141), res.Value.VSize)
	require.Len(t, res.Value.Outputs, 1)

	fee, err := a.GetTransactionFee(context.Background(), env, bigmi.TxIDParams{TxID: strings.Repeat("cd", 32)})
	require.NoError(t, err)
	require.Equal(t, bigmi.CodeTransactionNotFound, fee.Err.Code)
}

func TestGetTransaction_MalformedDataIsNotNotFound(t *testing.T) {
	txID := strings.Repeat("ab", 32)
	for _, data := range []string{`{}`, `[]`} {
		env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":` + data + `,"context":{"code":200}}`))
		})
		res, err := New().GetTransaction(context.Background(), env, bigmi.TxIDParams{TxID: txID})
		require.NoError(t, err)
		require.Equal(t, bigmi.CodeTransactionNotFound, res.Err.Code)
	}

	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"maintenance","context":{"code":200}}`))
	})
	_, err := New().GetTransaction(context.Background(), env, bigmi.TxIDParams{TxID: txID})
	require.Equal(t, bigmi.KindHTTPRequest, bigmi.KindOf(err))
	require.False(t, bigmi.IsTerminal(err))
	require.True(t, bigmi.ShouldRetry(err))
}

func TestSendRawTransaction(t *testing.T) {
	var gotData string
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotData = r.PostForm.Get("data")
		writeJSON(w, map[string]any{"data": map[string]any{"transaction_hash": "txid1"}})
	})
	res, err := New().SendRawTransaction(context.Background(), env, "0200")
	require.NoError(t, err)
	require.Equal(t, "txid1", res.Value)
	require.Equal(t, "0200", gotData)
}
