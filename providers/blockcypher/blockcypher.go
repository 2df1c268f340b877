// Package blockcypher adapts the BlockCypher v1 REST API.
package blockcypher

import (
	"context"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
)

const (
	DefaultBaseURL = "https://api.blockcypher.com/v1/btc/main"
	// MaxPageSize is the largest limit BlockCypher accepts.
	MaxPageSize     = 50
	DefaultPageSize = MaxPageSize
)

var (
	_ providers.BalanceGetter        = (*Adapter)(nil)
	_ providers.UTXOGetter           = (*Adapter)(nil)
	_ providers.TransactionsGetter   = (*Adapter)(nil)
	_ providers.TransactionFeeGetter = (*Adapter)(nil)
	_ providers.TransactionGetter    = (*Adapter)(nil)
	_ providers.Broadcaster          = (*Adapter)(nil)
	_ providers.BlockCountGetter     = (*Adapter)(nil)
)

type Adapter struct {
	pageSize int
}

type Option func(*Adapter)

func WithPageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 && n <= MaxPageSize {
			a.pageSize = n
		}
	}
}

func New(opts ...Option) *Adapter {
	a := &Adapter{pageSize: DefaultPageSize}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	return a
}

func (a *Adapter) Key() providers.Key     { return providers.Blockcypher }
func (a *Adapter) DefaultBaseURL() string { return DefaultBaseURL }

func query(env providers.Env, q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if env.APIKey != "" {
		q.Set("token", env.APIKey)
	}
	return q
}

type balanceResponse struct {
	Address      string `json:"address"`
	Balance      int64  `json:"balance"`
	FinalBalance int64  `json:"final_balance"`
	NTx          int    `json:"n_tx"`
	FinalNTx     int    `json:"final_n_tx"`
}

func (a *Adapter) GetBalance(ctx context.Context, env providers.Env, p bigmi.AddressParams) (bigmi.Result[*big.Int], error) {
	resp, err := providers.GetJSON[balanceResponse](ctx, env, env.URL("addrs", p.Address, "balance"), query(env, nil))
	if err != nil {
		return bigmi.Result[*big.Int]{}, err
	}
	return bigmi.Ok(big.NewInt(resp.FinalBalance)), nil
}

type txref struct {
	TxHash        string `json:"tx_hash"`
	BlockHeight   int64  `json:"block_height"`
	TxOutputN     int64  `json:"tx_output_n"`
	Value         int64  `json:"value"`
	Confirmations int64  `json:"confirmations"`
	Script        string `json:"script"`
}

type unspentResponse struct {
	FinalBalance      int64   `json:"final_balance"`
	Txrefs            []txref `json:"txrefs"`
	UnconfirmedTxrefs []txref `json:"unconfirmed_txrefs"`
	HasMore           bool    `json:"hasMore"`
}

// GetUTXOs walks the unspent txrefs backwards through the chain with the "before" cursor.
func (a *Adapter) GetUTXOs(ctx context.Context, env providers.Env, p bigmi.UTXOParams) (bigmi.Result[[]bigmi.UTXO], error) {
	c := providers.NewUTXOCollector(p.MinValue)
	var before int64
	for first := true; ; first = false {
		q := url.Values{
			"unspentOnly":   {"true"},
			"includeScript": {"true"},
			"limit":         {strconv.Itoa(a.pageSize)},
		}
		if before > 0 {
			q.Set("before", strconv.FormatInt(before, 10))
		}
		resp, err := providers.GetJSON[unspentResponse](ctx, env, env.URL("addrs", p.Address), query(env, q))
		if err != nil {
			return bigmi.Result[[]bigmi.UTXO]{}, err
		}
		if first {
			if res, ok := providers.CheckBalance(p.Address, big.NewInt(resp.FinalBalance), p.MinValue); !ok {
				return res, nil
			}
		}
		refs := resp.Txrefs
		if first {
			refs = append(append([]txref(nil), resp.UnconfirmedTxrefs...), refs...)
		}
		page := make([]bigmi.UTXO, 0, len(refs))
		var lowest int64
		for _, r := range refs {
			page = append(page, toUTXO(r))
			if r.BlockHeight > 0 && (lowest == 0 || r.BlockHeight < lowest) {
				lowest = r.BlockHeight
			}
		}
		// Outpoints seen twice at the boundary height are dropped by the collector.
		if c.Add(page...) || !resp.HasMore || lowest == 0 {
			break
		}
		before = nextBefore(before, lowest)
	}
	return bigmi.Ok(c.UTXOs()), nil
}

// nextBefore returns the exclusive "before" cursor following a page whose lowest confirmed
// height is lowest. That height is requested again because its entries may continue on the
// next page. A page made of a single height moves past it.
func nextBefore(cursor, lowest int64) int64 {
	if cursor > 0 && lowest+1 >= cursor {
		return lowest
	}
	return lowest + 1
}

func toUTXO(r txref) bigmi.UTXO {
	height := max(r.BlockHeight, 0)
	return bigmi.UTXO{
		TxID:          r.TxHash,
		Vout:          uint32(r.TxOutputN),
		Value:         r.Value,
		BlockHeight:   height,
		Confirmations: r.Confirmations,
		IsConfirmed:   r.Confirmations > 0,
		ScriptHex:     r.Script,
	}
}

type cypherInput struct {
	PrevHash    string   `json:"prev_hash"`
	OutputIndex uint32   `json:"output_index"`
	OutputValue int64    `json:"output_value"`
	Addresses   []string `json:"addresses"`
}

type cypherOutput struct {
	Value     int64    `json:"value"`
	Script    string   `json:"script"`
	Addresses []string `json:"addresses"`
}

type cypherTx struct {
	Hash          string         `json:"hash"`
	BlockHash     string         `json:"block_hash"`
	BlockHeight   int64          `json:"block_height"`
	Confirmations int64          `json:"confirmations"`
	Confirmed     string         `json:"confirmed"`
	Fees          int64          `json:"fees"`
	Size          int64          `json:"size"`
	VSize         int64          `json:"vsize"`
	Inputs        []cypherInput  `json:"inputs"`
	Outputs       []cypherOutput `json:"outputs"`
}

type fullAddressResponse struct {
	FinalNTx int        `json:"final_n_tx"`
	Txs      []cypherTx `json:"txs"`
	HasMore  bool       `json:"hasMore"`
}

// GetTransactions pages the full address endpoint. BlockCypher has no offset; LastBlock
// seeds the "before" cursor.
func (a *Adapter) GetTransactions(ctx context.Context, env providers.Env, p bigmi.TransactionsParams) (bigmi.Result[*bigmi.PageStream], error) {
	limit := p.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = a.pageSize
	}
	var before int64
	seen := make(map[string]struct{})
	fetch := func(ctx context.Context, page int, cursor int64) (bigmi.TransactionPage, error) {
		q := url.Values{"limit": {strconv.Itoa(limit)}, "txlimit": {"1000"}}
		if cursor > 0 {
			q.Set("before", strconv.FormatInt(cursor, 10))
		}
		resp, err := providers.GetJSON[fullAddressResponse](ctx, env, env.URL("addrs", p.Address, "full"), query(env, q))
		if err != nil {
			return bigmi.TransactionPage{}, err
		}
		out := bigmi.TransactionPage{
			Total:        resp.FinalNTx,
			Page:         page,
			ItemsPerPage: limit,
			HasMore:      resp.HasMore,
			Transactions: make([]bigmi.Transaction, 0, len(resp.Txs)),
		}
		var lowest int64
		for _, tx := range resp.Txs {
			if tx.BlockHeight > 0 && (lowest == 0 || tx.BlockHeight < lowest) {
				lowest = tx.BlockHeight
			}
			if _, dup := seen[tx.Hash]; dup {
				continue
			}
			seen[tx.Hash] = struct{}{}
			out.Transactions = append(out.Transactions, toTransaction(tx))
		}
		if lowest == 0 {
			out.HasMore = false
		}
		before = nextBefore(cursor, lowest)
		return out, nil
	}
	s, err := bigmi.NewPageStream(ctx,
		func(ctx context.Context) (bigmi.TransactionPage, error) { return fetch(ctx, 0, p.LastBlock) },
		func(ctx context.Context, prev bigmi.TransactionPage) (bigmi.TransactionPage, error) {
			return fetch(ctx, prev.Page+1, before)
		},
	)
	if err != nil {
		return bigmi.Result[*bigmi.PageStream]{}, err
	}
	return bigmi.Ok(s), nil
}

func (a *Adapter) tx(ctx context.Context, env providers.Env, txID string) (cypherTx, bool, error) {
	tx, err := providers.GetJSON[cypherTx](ctx, env, env.URL("txs", txID), query(env, url.Values{"limit": {"1000"}}))
	if err != nil {
		if providers.IsNotFound(err) {
			return tx, false, nil
		}
		return tx, false, err
	}
	return tx, true, nil
}

func (a *Adapter) GetTransactionFee(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[*big.Int], error) {
	tx, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return bigmi.Result[*big.Int]{}, err
	}
	if !ok {
		return bigmi.TransactionNotFound[*big.Int](p.TxID), nil
	}
	return bigmi.Ok(big.NewInt(tx.Fees)), nil
}

func (a *Adapter) GetTransaction(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[bigmi.Transaction], error) {
	tx, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return bigmi.Result[bigmi.Transaction]{}, err
	}
	if !ok {
		return bigmi.TransactionNotFound[bigmi.Transaction](p.TxID), nil
	}
	return bigmi.Ok(toTransaction(tx)), nil
}

func (a *Adapter) SendRawTransaction(ctx context.Context, env providers.Env, hexTx string) (bigmi.Result[string], error) {
	r := httpx.Request{
		Method: http.MethodPost,
		URL:    env.URL("txs", "push"),
		Query:  query(env, nil),
		Body:   map[string]string{"tx": hexTx},
	}
	resp, err := providers.SendJSON[struct {
		Tx struct {
			Hash string `json:"hash"`
		} `json:"tx"`
	}](ctx, env, r)
	if err != nil {
		return bigmi.Result[string]{}, err
	}
	return bigmi.Ok(resp.Tx.Hash), nil
}

func (a *Adapter) GetBlockCount(ctx context.Context, env providers.Env) (bigmi.Result[int64], error) {
	resp, err := providers.GetJSON[struct {
		Height int64 `json:"height"`
	}](ctx, env, env.URL(), query(env, nil))
	if err != nil {
		return bigmi.Result[int64]{}, err
	}
	return bigmi.Ok(resp.Height), nil
}

func toTransaction(tx cypherTx) bigmi.Transaction {
	out := bigmi.Transaction{
		TxID:          tx.Hash,
		BlockHash:     tx.BlockHash,
		BlockHeight:   max(tx.BlockHeight, 0),
		Confirmations: tx.Confirmations,
		IsConfirmed:   tx.Confirmations > 0,
		Fee:           tx.Fees,
		Size:          tx.Size,
		VSize:         tx.VSize,
		Inputs:        make([]bigmi.TxInput, 0, len(tx.Inputs)),
		Outputs:       make([]bigmi.TxOutput, 0, len(tx.Outputs)),
	}
	if t, err := time.Parse(time.RFC3339, tx.Confirmed); err == nil {
		out.BlockTime = t.Unix()
	}
	for _, in := range tx.Inputs {
		out.Inputs = append(out.Inputs, bigmi.TxInput{TxID: in.PrevHash, Vout: in.OutputIndex, Address: first(in.Addresses), Value: in.OutputValue})
	}
	for i, o := range tx.Outputs {
		out.Outputs = append(out.Outputs, bigmi.TxOutput{N: uint32(i), Address: first(o.Addresses), Value: o.Value, ScriptHex: o.Script})
	}
	return out
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
