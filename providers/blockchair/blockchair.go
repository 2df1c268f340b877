// Package blockchair adapts the Blockchair dashboards API.
package blockchair

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
)

const (
	DefaultBaseURL      = "https://api.blockchair.com/bitcoin"
	DefaultPageSize     = 100
	DefaultUTXOPageSize = 100

	// statusBlacklisted is Blockchair's answer once a client exceeded its quota repeatedly.
	statusBlacklisted = 430
)

const timeLayout = "2006-01-02 15:04:05"

var (
	_ providers.BalanceGetter        = (*Adapter)(nil)
	_ providers.UTXOGetter           = (*Adapter)(nil)
	_ providers.TransactionsGetter   = (*Adapter)(nil)
	_ providers.TransactionFeeGetter = (*Adapter)(nil)
	_ providers.XPubGetter           = (*Adapter)(nil)
	_ providers.TransactionGetter    = (*Adapter)(nil)
	_ providers.Broadcaster          = (*Adapter)(nil)
	_ providers.BlockCountGetter     = (*Adapter)(nil)
)

type Adapter struct {
	pageSize     int
	utxoPageSize int
}

type Option func(*Adapter)

func WithPageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

func WithUTXOPageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.utxoPageSize = n
		}
	}
}

func New(opts ...Option) *Adapter {
	a := &Adapter{pageSize: DefaultPageSize, utxoPageSize: DefaultUTXOPageSize}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	return a
}

func (a *Adapter) Key() providers.Key     { return providers.Blockchair }
func (a *Adapter) DefaultBaseURL() string { return DefaultBaseURL }

type envelope[T any] struct {
	Data    T `json:"data"`
	Context struct {
		Code  int    `json:"code"`
		State int64  `json:"state"`
		Error string `json:"error"`
	} `json:"context"`
}

func query(env providers.Env, q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if env.APIKey != "" {
		q.Set("key", env.APIKey)
	}
	return q
}

// quota converts Blockchair's payment-required and blacklist answers into a failed result.
func quota[T any](err error) (bigmi.Result[T], error) {
	if providers.IsStatus(err, http.StatusPaymentRequired, statusBlacklisted) {
		he, _ := httpx.AsError(err)
		return bigmi.Fail[T](bigmi.CodeLimitExceeded, "blockchair request limit reached", he.Details), nil
	}
	return bigmi.Result[T]{}, err
}

type addressInfo struct {
	Balance            int64 `json:"balance"`
	TransactionCount   int   `json:"transaction_count"`
	UnspentOutputCount int   `json:"unspent_output_count"`
}

type utxoItem struct {
	BlockID         int64  `json:"block_id"`
	TransactionHash string `json:"transaction_hash"`
	Index           uint32 `json:"index"`
	Value           int64  `json:"value"`
	ScriptHex       string `json:"script_hex"`
}

type addressTx struct {
	BlockID       int64  `json:"block_id"`
	Hash          string `json:"hash"`
	Time          string `json:"time"`
	BalanceChange int64  `json:"balance_change"`
}

type addressDashboard struct {
	Address      addressInfo `json:"address"`
	Transactions []addressTx `json:"transactions"`
	UTXO         []utxoItem  `json:"utxo"`
}

// dashboard fetches one address window. limit and offset are "<transactions>,<utxo>".
func (a *Adapter) dashboard(ctx context.Context, env providers.Env, address string, q url.Values) (addressDashboard, int64, error) {
	resp, err := providers.GetJSON[envelope[map[string]addressDashboard]](ctx, env, env.URL("dashboards", "address", address), query(env, q))
	if err != nil {
		return addressDashboard{}, 0, err
	}
	d, ok := resp.Data[address]
	if !ok {
		// Blockchair keys the result by the normalized address; take the only entry.
		for _, v := range resp.Data {
			d = v
			break
		}
	}
	return d, resp.Context.State, nil
}

func (a *Adapter) GetBalance(ctx context.Context, env providers.Env, p bigmi.AddressParams) (bigmi.Result[*big.Int], error) {
	d, _, err := a.dashboard(ctx, env, p.Address, url.Values{"limit": {"0,0"}})
	if err != nil {
		return quota[*big.Int](err)
	}
	return bigmi.Ok(big.NewInt(d.Address.Balance)), nil
}

// GetUTXOs pages the UTXO listing. The first page also carries the balance used for the
// minValue check.
func (a *Adapter) GetUTXOs(ctx context.Context, env providers.Env, p bigmi.UTXOParams) (bigmi.Result[[]bigmi.UTXO], error) {
	c := providers.NewUTXOCollector(p.MinValue)
	for offset := 0; ; {
		q := url.Values{
			"limit":  {"0," + strconv.Itoa(a.utxoPageSize)},
			"offset": {"0," + strconv.Itoa(offset)},
		}
		d, tip, err := a.dashboard(ctx, env, p.Address, q)
		if err != nil {
			return quota[[]bigmi.UTXO](err)
		}
		if offset == 0 {
			if res, ok := providers.CheckBalance(p.Address, big.NewInt(d.Address.Balance), p.MinValue); !ok {
				return res, nil
			}
		}
		page := make([]bigmi.UTXO, 0, len(d.UTXO))
		for _, u := range d.UTXO {
			height := max(u.BlockID, 0)
			conf := providers.Confirmations(tip, height)
			page = append(page, bigmi.UTXO{
				TxID:          u.TransactionHash,
				Vout:          u.Index,
				Value:         u.Value,
				BlockHeight:   height,
				Confirmations: conf,
				IsConfirmed:   conf > 0,
				ScriptHex:     u.ScriptHex,
			})
		}
		offset += len(d.UTXO)
		if c.Add(page...) || len(d.UTXO) < a.utxoPageSize || offset >= d.Address.UnspentOutputCount {
			break
		}
	}
	return bigmi.Ok(c.UTXOs()), nil
}

func (a *Adapter) GetTransactions(ctx context.Context, env providers.Env, p bigmi.TransactionsParams) (bigmi.Result[*bigmi.PageStream], error) {
	limit, start, _ := providers.PageWindow(p, a.pageSize)
	// Blockchair takes any offset, so windows start exactly at p.Offset.
	fetch := func(ctx context.Context, page int) (bigmi.TransactionPage, error) {
		offset := max(p.Offset, 0) + (page-start)*limit
		q := url.Values{
			"limit":               {strconv.Itoa(limit) + ",0"},
			"offset":              {strconv.Itoa(offset) + ",0"},
			"transaction_details": {"true"},
		}
		d, tip, err := a.dashboard(ctx, env, p.Address, q)
		if err != nil {
			return bigmi.TransactionPage{}, err
		}
		out := bigmi.TransactionPage{
			Total:        d.Address.TransactionCount,
			Page:         page,
			ItemsPerPage: limit,
			HasMore:      offset+len(d.Transactions) < d.Address.TransactionCount && len(d.Transactions) > 0,
			Transactions: make([]bigmi.Transaction, 0, len(d.Transactions)),
		}
		for _, tx := range d.Transactions {
			height := max(tx.BlockID, 0)
			conf := providers.Confirmations(tip, height)
			out.Transactions = append(out.Transactions, bigmi.Transaction{
				TxID:          tx.Hash,
				BlockHeight:   height,
				BlockTime:     parseTime(tx.Time),
				Confirmations: conf,
				IsConfirmed:   conf > 0,
			})
		}
		return out, nil
	}
	s, err := bigmi.NewPageStream(ctx,
		func(ctx context.Context) (bigmi.TransactionPage, error) { return fetch(ctx, start) },
		func(ctx context.Context, prev bigmi.TransactionPage) (bigmi.TransactionPage, error) {
			return fetch(ctx, prev.Page+1)
		},
	)
	if err != nil {
		return quota[*bigmi.PageStream](err)
	}
	return bigmi.Ok(s), nil
}

type txDashboard struct {
	Transaction struct {
		BlockID int64  `json:"block_id"`
		Hash    string `json:"hash"`
		Time    string `json:"time"`
		Size    int64  `json:"size"`
		Weight  int64  `json:"weight"`
		Fee     int64  `json:"fee"`
	} `json:"transaction"`
	Inputs []struct {
		TransactionHash string `json:"transaction_hash"`
		Index           uint32 `json:"index"`
		Recipient       string `json:"recipient"`
		Value           int64  `json:"value"`
	} `json:"inputs"`
	Outputs []struct {
		Index     uint32 `json:"index"`
		Recipient string `json:"recipient"`
		Value     int64  `json:"value"`
		ScriptHex string `json:"script_hex"`
	} `json:"outputs"`
}

func (a *Adapter) tx(ctx context.Context, env providers.Env, txID string) (txDashboard, int64, bool, error) {
	u := env.URL("dashboards", "transaction", txID)
	resp, err := providers.GetJSON[envelope[json.RawMessage]](ctx, env, u, query(env, nil))
	if err != nil {
		if providers.IsNotFound(err) {
			return txDashboard{}, 0, false, nil
		}
		return txDashboard{}, 0, false, err
	}
	// A missing transaction comes back as an empty array or object.
	switch strings.TrimSpace(string(resp.Data)) {
	case "", "null", "[]", "{}":
		return txDashboard{}, 0, false, nil
	}
	var byID map[string]txDashboard
	if err := json.Unmarshal(resp.Data, &byID); err != nil {
		return txDashboard{}, 0, false, &httpx.Error{
			Method:  http.MethodGet,
			URL:     u,
			Body:    resp.Data,
			Details: "decode transaction dashboard",
			Cause:   err,
		}
	}
	d, ok := byID[txID]
	if !ok || d.Transaction.Hash == "" {
		return txDashboard{}, 0, false, nil
	}
	return d, resp.Context.State, true, nil
}

func (a *Adapter) GetTransactionFee(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[*big.Int], error) {
	d, _, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return quota[*big.Int](err)
	}
	if !ok {
		return bigmi.TransactionNotFound[*big.Int](p.TxID), nil
	}
	return bigmi.Ok(big.NewInt(d.Transaction.Fee)), nil
}

func (a *Adapter) GetTransaction(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[bigmi.Transaction], error) {
	d, tip, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return quota[bigmi.Transaction](err)
	}
	if !ok {
		return bigmi.TransactionNotFound[bigmi.Transaction](p.TxID), nil
	}
	height := max(d.Transaction.BlockID, 0)
	conf := providers.Confirmations(tip, height)
	out := bigmi.Transaction{
		TxID:          d.Transaction.Hash,
		BlockHeight:   height,
		BlockTime:     parseTime(d.Transaction.Time),
		Confirmations: conf,
		IsConfirmed:   conf > 0,
		Fee:           d.Transaction.Fee,
		Size:          d.Transaction.Size,
		VSize:         (d.Transaction.Weight + 3) / 4,
		Inputs:        make([]bigmi.TxInput, 0, len(d.Inputs)),
		Outputs:       make([]bigmi.TxOutput, 0, len(d.Outputs)),
	}
	for _, in := range d.Inputs {
		out.Inputs = append(out.Inputs, bigmi.TxInput{TxID: in.TransactionHash, Vout: in.Index, Address: in.Recipient, Value: in.Value})
	}
	for _, o := range d.Outputs {
		out.Outputs = append(out.Outputs, bigmi.TxOutput{N: o.Index, Address: o.Recipient, Value: o.Value, ScriptHex: o.ScriptHex})
	}
	return bigmi.Ok(out), nil
}

type xpubDashboard struct {
	XPub struct {
		Balance int64 `json:"balance"`
	} `json:"xpub"`
	Addresses map[string]struct {
		Path      string `json:"path"`
		Balance   int64  `json:"balance"`
		ScriptHex string `json:"script_hex"`
	} `json:"addresses"`
}

func (a *Adapter) GetXPubAddresses(ctx context.Context, env providers.Env, p bigmi.XPubParams) (bigmi.Result[bigmi.XPubAccount], error) {
	resp, err := providers.GetJSON[envelope[map[string]xpubDashboard]](ctx, env, env.URL("dashboards", "xpub", p.XPubKey), query(env, nil))
	if err != nil {
		return quota[bigmi.XPubAccount](err)
	}
	d, ok := resp.Data[p.XPubKey]
	if !ok {
		return bigmi.Fail[bigmi.XPubAccount](bigmi.CodeResourceNotFound, "xpub not found", nil), nil
	}
	acc := bigmi.XPubAccount{Balance: big.NewInt(d.XPub.Balance), Addresses: make([]bigmi.XPubAddress, 0, len(d.Addresses))}
	for addr, info := range d.Addresses {
		acc.Addresses = append(acc.Addresses, bigmi.XPubAddress{
			Address:   addr,
			Balance:   big.NewInt(info.Balance),
			Path:      info.Path,
			ScriptHex: info.ScriptHex,
		})
	}
	sort.Slice(acc.Addresses, func(i, j int) bool { return acc.Addresses[i].Path < acc.Addresses[j].Path })
	return bigmi.Ok(acc), nil
}

func (a *Adapter) SendRawTransaction(ctx context.Context, env providers.Env, hexTx string) (bigmi.Result[string], error) {
	r := httpx.Request{
		Method: http.MethodPost,
		URL:    env.URL("push", "transaction"),
		Query:  query(env, nil),
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   url.Values{"data": {hexTx}}.Encode(),
	}
	resp, err := providers.SendJSON[envelope[struct {
		TransactionHash string `json:"transaction_hash"`
	}]](ctx, env, r)
	if err != nil {
		return quota[string](err)
	}
	if resp.Data.TransactionHash == "" {
		return bigmi.Fail[string](bigmi.CodeVerifyRejected, fmt.Sprintf("blockchair push rejected: %s", resp.Context.Error), nil), nil
	}
	return bigmi.Ok(resp.Data.TransactionHash), nil
}

func (a *Adapter) GetBlockCount(ctx context.Context, env providers.Env) (bigmi.Result[int64], error) {
	resp, err := providers.GetJSON[envelope[struct {
		BestBlockHeight int64 `json:"best_block_height"`
	}]](ctx, env, env.URL("stats"), query(env, nil))
	if err != nil {
		return quota[int64](err)
	}
	return bigmi.Ok(resp.Data.BestBlockHeight), nil
}

func parseTime(s string) int64 {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}
