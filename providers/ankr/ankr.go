// Package ankr adapts Ankr's Blockbook (API v2) endpoints.
package ankr

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"strconv"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/internal/units"
	"github.com/lifinance/bigmi-sub000/providers"
)

const (
	DefaultBaseURL  = "https://rpc.ankr.com/http/btc_blockbook"
	DefaultPageSize = 50
)

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
	pageSize int
}

type Option func(*Adapter)

// WithPageSize sets the default transaction page size.
func WithPageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
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

func (a *Adapter) Key() providers.Key     { return providers.Ankr }
func (a *Adapter) DefaultBaseURL() string { return DefaultBaseURL }

// endpoint builds an /api/v2 URL. The API key is a path segment on Ankr.
func endpoint(env providers.Env, segments ...string) string {
	parts := make([]string, 0, len(segments)+3)
	if env.APIKey != "" {
		parts = append(parts, env.APIKey)
	}
	parts = append(parts, "api", "v2")
	parts = append(parts, segments...)
	return env.URL(parts...)
}

type addressResponse struct {
	Address            string          `json:"address"`
	Balance            json.RawMessage `json:"balance"`
	UnconfirmedBalance json.RawMessage `json:"unconfirmedBalance"`
	Txs                int             `json:"txs"`
	Page               int             `json:"page"`
	TotalPages         int             `json:"totalPages"`
	ItemsOnPage        int             `json:"itemsOnPage"`
	Transactions       []blockbookTx   `json:"transactions"`
}

type blockbookVin struct {
	TxID      string   `json:"txid"`
	Vout      uint32   `json:"vout"`
	Addresses []string `json:"addresses"`
	Value     string   `json:"value"`
}

type blockbookVout struct {
	N         uint32   `json:"n"`
	Value     string   `json:"value"`
	Hex       string   `json:"hex"`
	Addresses []string `json:"addresses"`
}

type blockbookTx struct {
	TxID          string          `json:"txid"`
	BlockHash     string          `json:"blockHash"`
	BlockHeight   int64           `json:"blockHeight"`
	Confirmations int64           `json:"confirmations"`
	BlockTime     int64           `json:"blockTime"`
	Fees          string          `json:"fees"`
	Size          int64           `json:"size"`
	VSize         int64           `json:"vsize"`
	Vin           []blockbookVin  `json:"vin"`
	Vout          []blockbookVout `json:"vout"`
}

func (a *Adapter) balance(ctx context.Context, env providers.Env, address string) (*big.Int, error) {
	resp, err := providers.GetJSON[addressResponse](ctx, env, endpoint(env, "address", address), url.Values{"details": {"basic"}})
	if err != nil {
		return nil, err
	}
	return units.SatsFromJSON(resp.Balance)
}

func (a *Adapter) GetBalance(ctx context.Context, env providers.Env, p bigmi.AddressParams) (bigmi.Result[*big.Int], error) {
	bal, err := a.balance(ctx, env, p.Address)
	if err != nil {
		return bigmi.Result[*big.Int]{}, err
	}
	return bigmi.Ok(bal), nil
}

type utxoItem struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         string `json:"value"`
	Height        int64  `json:"height"`
	Confirmations int64  `json:"confirmations"`
}

// GetUTXOs reads Blockbook's single UTXO listing.
func (a *Adapter) GetUTXOs(ctx context.Context, env providers.Env, p bigmi.UTXOParams) (bigmi.Result[[]bigmi.UTXO], error) {
	if p.MinValue > 0 {
		bal, err := a.balance(ctx, env, p.Address)
		if err != nil {
			return bigmi.Result[[]bigmi.UTXO]{}, err
		}
		if res, ok := providers.CheckBalance(p.Address, bal, p.MinValue); !ok {
			return res, nil
		}
	}
	items, err := providers.GetJSON[[]utxoItem](ctx, env, endpoint(env, "utxo", p.Address), url.Values{"confirmed": {"false"}})
	if err != nil {
		return bigmi.Result[[]bigmi.UTXO]{}, err
	}
	page := make([]bigmi.UTXO, 0, len(items))
	for _, it := range items {
		v, err := units.ParseSats(it.Value)
		if err != nil {
			return bigmi.Result[[]bigmi.UTXO]{}, err
		}
		page = append(page, bigmi.UTXO{
			TxID:          it.TxID,
			Vout:          it.Vout,
			Value:         v.Int64(),
			BlockHeight:   it.Height,
			Confirmations: it.Confirmations,
			IsConfirmed:   it.Confirmations > 0,
		})
	}
	c := providers.NewUTXOCollector(p.MinValue)
	c.Add(page...)
	return bigmi.Ok(c.UTXOs()), nil
}

// GetTransactions pages the address history with Blockbook's 1-based page numbers.
func (a *Adapter) GetTransactions(ctx context.Context, env providers.Env, p bigmi.TransactionsParams) (bigmi.Result[*bigmi.PageStream], error) {
	limit, start, skip := providers.PageWindow(p, a.pageSize)
	fetch := func(ctx context.Context, page int) (bigmi.TransactionPage, error) {
		q := url.Values{
			"details":  {"txs"},
			"page":     {strconv.Itoa(page + 1)},
			"pageSize": {strconv.Itoa(limit)},
		}
		resp, err := providers.GetJSON[addressResponse](ctx, env, endpoint(env, "address", p.Address), q)
		if err != nil {
			return bigmi.TransactionPage{}, err
		}
		out := bigmi.TransactionPage{
			Total:        resp.Txs,
			Page:         page,
			ItemsPerPage: limit,
			HasMore:      resp.Page < resp.TotalPages,
		}
		for _, tx := range resp.Transactions {
			t, err := toTransaction(tx)
			if err != nil {
				return bigmi.TransactionPage{}, err
			}
			out.Transactions = append(out.Transactions, t)
		}
		return out, nil
	}
	s, err := bigmi.NewPageStream(ctx,
		func(ctx context.Context) (bigmi.TransactionPage, error) {
			// Blockbook pages by number only; drop what precedes an unaligned offset.
			out, err := fetch(ctx, start)
			if err != nil {
				return out, err
			}
			out.Transactions = out.Transactions[min(skip, len(out.Transactions)):]
			return out, nil
		},
		func(ctx context.Context, prev bigmi.TransactionPage) (bigmi.TransactionPage, error) {
			return fetch(ctx, prev.Page+1)
		},
	)
	if err != nil {
		return bigmi.Result[*bigmi.PageStream]{}, err
	}
	return bigmi.Ok(s), nil
}

func (a *Adapter) tx(ctx context.Context, env providers.Env, txID string) (blockbookTx, bool, error) {
	tx, err := providers.GetJSON[blockbookTx](ctx, env, endpoint(env, "tx", txID), nil)
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
	fee, err := units.ParseSats(tx.Fees)
	if err != nil {
		return bigmi.Result[*big.Int]{}, err
	}
	return bigmi.Ok(fee), nil
}

func (a *Adapter) GetTransaction(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[bigmi.Transaction], error) {
	tx, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return bigmi.Result[bigmi.Transaction]{}, err
	}
	if !ok {
		return bigmi.TransactionNotFound[bigmi.Transaction](p.TxID), nil
	}
	t, err := toTransaction(tx)
	if err != nil {
		return bigmi.Result[bigmi.Transaction]{}, err
	}
	return bigmi.Ok(t), nil
}

type xpubToken struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Balance string `json:"balance"`
}

type xpubResponse struct {
	Balance json.RawMessage `json:"balance"`
	Tokens  []xpubToken     `json:"tokens"`
}

func (a *Adapter) GetXPubAddresses(ctx context.Context, env providers.Env, p bigmi.XPubParams) (bigmi.Result[bigmi.XPubAccount], error) {
	q := url.Values{"details": {"tokenBalances"}, "tokens": {"used"}}
	resp, err := providers.GetJSON[xpubResponse](ctx, env, endpoint(env, "xpub", p.XPubKey), q)
	if err != nil {
		return bigmi.Result[bigmi.XPubAccount]{}, err
	}
	total, err := units.SatsFromJSON(resp.Balance)
	if err != nil {
		return bigmi.Result[bigmi.XPubAccount]{}, err
	}
	acc := bigmi.XPubAccount{Balance: total, Addresses: []bigmi.XPubAddress{}}
	for _, t := range resp.Tokens {
		if t.Type != "" && t.Type != "XPUBAddress" {
			continue
		}
		bal, err := units.ParseSats(t.Balance)
		if err != nil {
			return bigmi.Result[bigmi.XPubAccount]{}, err
		}
		acc.Addresses = append(acc.Addresses, bigmi.XPubAddress{Address: t.Name, Balance: bal, Path: t.Path})
	}
	return bigmi.Ok(acc), nil
}

func (a *Adapter) SendRawTransaction(ctx context.Context, env providers.Env, hexTx string) (bigmi.Result[string], error) {
	resp, err := providers.GetJSON[struct {
		Result string `json:"result"`
	}](ctx, env, endpoint(env, "sendtx", hexTx), nil)
	if err != nil {
		return bigmi.Result[string]{}, err
	}
	return bigmi.Ok(resp.Result), nil
}

func (a *Adapter) GetBlockCount(ctx context.Context, env providers.Env) (bigmi.Result[int64], error) {
	resp, err := providers.GetJSON[struct {
		Blockbook struct {
			BestHeight int64 `json:"bestHeight"`
		} `json:"blockbook"`
		Backend struct {
			Blocks int64 `json:"blocks"`
		} `json:"backend"`
	}](ctx, env, endpoint(env), nil)
	if err != nil {
		return bigmi.Result[int64]{}, err
	}
	if resp.Backend.Blocks > 0 {
		return bigmi.Ok(resp.Backend.Blocks), nil
	}
	return bigmi.Ok(resp.Blockbook.BestHeight), nil
}

func toTransaction(tx blockbookTx) (bigmi.Transaction, error) {
	out := bigmi.Transaction{
		TxID:          tx.TxID,
		BlockHash:     tx.BlockHash,
		BlockHeight:   max(tx.BlockHeight, 0),
		BlockTime:     tx.BlockTime,
		Confirmations: tx.Confirmations,
		IsConfirmed:   tx.Confirmations > 0,
		Size:          tx.Size,
		VSize:         tx.VSize,
		Inputs:        make([]bigmi.TxInput, 0, len(tx.Vin)),
		Outputs:       make([]bigmi.TxOutput, 0, len(tx.Vout)),
	}
	if tx.Fees != "" {
		fee, err := units.ParseSats(tx.Fees)
		if err != nil {
			return out, err
		}
		out.Fee = fee.Int64()
	}
	for _, in := range tx.Vin {
		v, err := optionalSats(in.Value)
		if err != nil {
			return out, err
		}
		out.Inputs = append(out.Inputs, bigmi.TxInput{TxID: in.TxID, Vout: in.Vout, Address: first(in.Addresses), Value: v})
	}
	for _, o := range tx.Vout {
		v, err := optionalSats(o.Value)
		if err != nil {
			return out, err
		}
		out.Outputs = append(out.Outputs, bigmi.TxOutput{N: o.N, Address: first(o.Addresses), Value: v, ScriptHex: o.Hex})
	}
	return out, nil
}

func optionalSats(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := units.ParseSats(s)
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
