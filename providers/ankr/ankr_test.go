package ankr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/providers"
)

func newEnv(t *testing.T, h http.HandlerFunc) providers.Env {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return providers.Env{BaseURL: srv.URL, APIKey: "key"}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetBalance_StringAmount(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/key/api/v2/address/addr1" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"address": "addr1", "balance": "12345"})
	})

	res, err := New().GetBalance(context.Background(), env, bigmi.AddressParams{Address: "addr1"})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, int64(12345), res.Value.Int64())
}

func TestGetUTXOs_InsufficientBalance(t *testing.T) {
	var utxoCalls int32
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/key/api/v2/address/addr1":
			writeJSON(w, map[string]any{"balance": "1000"})
		default:
			atomic.AddInt32(&utxoCalls, 1)
			writeJSON(w, []any{})
		}
	})

	res, err := New().GetUTXOs(context.Background(), env, bigmi.UTXOParams{Address: "addr1", MinValue: 5000})
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Equal(t, bigmi.CodeInsufficientBalance, res.Err.Code)
	require.Zero(t, atomic.LoadInt32(&utxoCalls))
}

func TestGetUTXOs_Normalizes(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"txid": "aa", "vout": 1, "value": "700", "height": 800000, "confirmations": 3},
			{"txid": "bb", "vout": 0, "value": "300", "confirmations": 0},
		})
	})

	res, err := New().GetUTXOs(context.Background(), env, bigmi.UTXOParams{Address: "addr1"})
	require.NoError(t, err)
	require.Len(t, res.Value, 2)
	require.Equal(t, bigmi.UTXO{TxID: "aa", Vout: 1, Value: 700, BlockHeight: 800000, Confirmations: 3, IsConfirmed: true}, res.Value[0])
	require.False(t, res.Value[1].IsConfirmed)
}

func TestGetTransactions_PagesUntilTotal(t *testing.T) {
	const total, limit = 7, 3
	var fetches int32
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("pageSize") != strconv.Itoa(limit) {
			http.Error(w, "bad page size", http.StatusBadRequest)
			return
		}
		var txs []map[string]any
		for i := (page - 1) * limit; i < total && i < page*limit; i++ {
			txs = append(txs, map[string]any{"txid": fmt.Sprintf("tx%d", i), "fees": "10", "confirmations": 1})
		}
		writeJSON(w, map[string]any{"page": page, "totalPages": 3, "txs": total, "transactions": txs})
	})

	res, err := New().GetTransactions(context.Background(), env, bigmi.TransactionsParams{Address: "addr1", Limit: limit})
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&fetches))

	var all []bigmi.Transaction
	var last bigmi.TransactionPage
	for {
		p, err := res.Value.Recv(context.Background())
		if err != nil {
			break
		}
		last = p
		all = append(all, p.Transactions...)
	}
	require.Len(t, all, total)
	require.False(t, last.HasMore)
	require.Equal(t, total, last.Total)
	require.EqualValues(t, 3, atomic.LoadInt32(&fetches))
	require.Equal(t, int64(10), all[0].Fee)
}

func TestGetTransactions_UnalignedOffsetDropsLeadingItems(t *testing.T) {
	const total, limit = 10, 3
	var (
		mu         sync.Mutex
		pagesAsked []string
	)
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pagesAsked = append(pagesAsked, r.URL.Query().Get("page"))
		mu.Unlock()
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var txs []map[string]any
		for i := (page - 1) * limit; i < total && i < page*limit; i++ {
			txs = append(txs, map[string]any{"txid": fmt.Sprintf("tx%d", i), "fees": "10", "confirmations": 1})
		}
		writeJSON(w, map[string]any{"page": page, "totalPages": 4, "txs": total, "transactions": txs})
	})

	res, err := New().GetTransactions(context.Background(), env, bigmi.TransactionsParams{Address: "addr1", Limit: limit, Offset: 5})
	require.NoError(t, err)
	txs, err := bigmi.DrainPages(context.Background(), res.Value)
	require.NoError(t, err)

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.TxID)
	}
	require.Equal(t, []string{"tx5", "tx6", "tx7", "tx8", "tx9"}, ids)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"2", "3", "4"}, pagesAsked)
}

func TestGetTransactionFee_NotFound(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Transaction 'ab' not found"}`))
	})

	res, err := New().GetTransactionFee(context.Background(), env, bigmi.TxIDParams{TxID: "ab"})
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Equal(t, bigmi.CodeTransactionNotFound, res.Err.Code)
}

func TestGetXPubAddresses(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"balance": "1500",
			"tokens": []map[string]any{
				{"type": "XPUBAddress", "name": "bc1qa", "path": "m/84'/0'/0'/0/0", "balance": "1000"},
				{"type": "XPUBAddress", "name": "bc1qb", "path": "m/84'/0'/0'/0/1", "balance": "500"},
			},
		})
	})

	res, err := New().GetXPubAddresses(context.Background(), env, bigmi.XPubParams{XPubKey: "xpub"})
	require.NoError(t, err)
	require.Equal(t, int64(1500), res.Value.Balance.Int64())
	require.Len(t, res.Value.Addresses, 2)
	require.Equal(t, "m/84'/0'/0'/0/1", res.Value.Addresses[1].Path)
}

func TestSendRawTransactionAndBlockCount(t *testing.T) {
	env := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/key/api/v2/sendtx/0200":
			writeJSON(w, map[string]any{"result": "txid1"})
		case "/key/api/v2":
			writeJSON(w, map[string]any{"backend": map[string]any{"blocks": 840000}})
		default:
			http.NotFound(w, r)
		}
	})
	a := New()
	sent, err := a.SendRawTransaction(context.Background(), env, "0200")
	require.NoError(t, err)
	require.Equal(t, "txid1", sent.Value)

	h, err := a.GetBlockCount(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, int64(840000), h.Value)
}
