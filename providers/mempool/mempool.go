// Package mempool adapts the mempool.space (Esplora) REST API.
package mempool

import (
	"context"
	"math/big"
	"net/http"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
)

const (
	DefaultBaseURL = "https://mempool.space/api"
	// ChainPageSize is the fixed page size of /address/:address/txs/chain.
	ChainPageSize = 25
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

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Key() providers.Key     { return providers.Mempool }
func (a *Adapter) DefaultBaseURL() string { return DefaultBaseURL }

type stats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int   `json:"tx_count"`
}

type addressResponse struct {
	Address      string `json:"address"`
	ChainStats   stats  `json:"chain_stats"`
	MempoolStats stats  `json:"mempool_stats"`
}

func (r addressResponse) balance() *big.Int {
	b := big.NewInt(r.ChainStats.FundedTxoSum - r.ChainStats.SpentTxoSum)
	b.Add(b, big.NewInt(r.MempoolStats.FundedTxoSum-r.MempoolStats.SpentTxoSum))
	if b.Sign() < 0 {
		b.SetInt64(0)
	}
	return b
}

func (a *Adapter) address(ctx context.Context, env providers.Env, address string) (addressResponse, error) {
	return providers.GetJSON[addressResponse](ctx, env, env.URL("address", address), nil)
}

func (a *Adapter) GetBalance(ctx context.Context, env providers.Env, p bigmi.AddressParams) (bigmi.Result[*big.Int], error) {
	resp, err := a.address(ctx, env, p.Address)
	if err != nil {
		return bigmi.Result[*big.Int]{}, err
	}
	return bigmi.Ok(resp.balance()), nil
}

type status struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	BlockTime   int64  `json:"block_time"`
}

type utxoItem struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status status `json:"status"`
}

func (a *Adapter) tip(ctx context.Context, env providers.Env) (int64, error) {
	return providers.GetJSON[int64](ctx, env, env.URL("blocks", "tip", "height"), nil)
}

func (a *Adapter) GetUTXOs(ctx context.Context, env providers.Env, p bigmi.UTXOParams) (bigmi.Result[[]bigmi.UTXO], error) {
	if p.MinValue > 0 {
		resp, err := a.address(ctx, env, p.Address)
		if err != nil {
			return bigmi.Result[[]bigmi.UTXO]{}, err
		}
		if res, ok := providers.CheckBalance(p.Address, resp.balance(), p.MinValue); !ok {
			return res, nil
		}
	}
	items, err := providers.GetJSON[[]utxoItem](ctx, env, env.URL("address", p.Address, "utxo"), nil)
	if err != nil {
		return bigmi.Result[[]bigmi.UTXO]{}, err
	}
	tip, err := a.tip(ctx, env)
	if err != nil {
		return bigmi.Result[[]bigmi.UTXO]{}, err
	}
	c := providers.NewUTXOCollector(p.MinValue)
	page := make([]bigmi.UTXO, 0, len(items))
	for _, it := range items {
		u := bigmi.UTXO{TxID: it.TxID, Vout: it.Vout, Value: it.Value, IsConfirmed: it.Status.Confirmed}
		if it.Status.Confirmed {
			u.BlockHeight = it.Status.BlockHeight
			u.Confirmations = providers.Confirmations(tip, it.Status.BlockHeight)
		}
		page = append(page, u)
	}
	c.Add(page...)
	return bigmi.Ok(c.UTXOs()), nil
}

type vin struct {
	TxID    string `json:"txid"`
	Vout    uint32 `json:"vout"`
	Prevout *struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"prevout"`
}

type vout struct {
	ScriptPubKey        string `json:"scriptpubkey"`
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

type esploraTx struct {
	TxID   string `json:"txid"`
	Vin    []vin  `json:"vin"`
	Vout   []vout `json:"vout"`
	Size   int64  `json:"size"`
	Weight int64  `json:"weight"`
	Fee    int64  `json:"fee"`
	Status status `json:"status"`
}

func toTransaction(tx esploraTx, tip int64) bigmi.Transaction {
	out := bigmi.Transaction{
		TxID:        tx.TxID,
		Fee:         tx.Fee,
		Size:        tx.Size,
		VSize:       (tx.Weight + 3) / 4,
		IsConfirmed: tx.Status.Confirmed,
		Inputs:      make([]bigmi.TxInput, 0, len(tx.Vin)),
		Outputs:     make([]bigmi.TxOutput, 0, len(tx.Vout)),
	}
	if tx.Status.Confirmed {
		out.BlockHash = tx.Status.BlockHash
		out.BlockHeight = tx.Status.BlockHeight
		out.BlockTime = tx.Status.BlockTime
		out.Confirmations = providers.Confirmations(tip, tx.Status.BlockHeight)
	}
	for _, in := range tx.Vin {
		i := bigmi.TxInput{TxID: in.TxID, Vout: in.Vout}
		if in.Prevout != nil {
			i.Address = in.Prevout.ScriptPubKeyAddress
			i.Value = in.Prevout.Value
		}
		out.Inputs = append(out.Inputs, i)
	}
	for n, o := range tx.Vout {
		out.Outputs = append(out.Outputs, bigmi.TxOutput{N: uint32(n), Address: o.ScriptPubKeyAddress, Value: o.Value, ScriptHex: o.ScriptPubKey})
	}
	return out
}

// GetTransactions pages confirmed history with the after-txid cursor. The total comes from
// the address chain stats; Limit trims the provider's fixed page, and the last returned txid
// becomes the next cursor.
func (a *Adapter) GetTransactions(ctx context.Context, env providers.Env, p bigmi.TransactionsParams) (bigmi.Result[*bigmi.PageStream], error) {
	limit := p.Limit
	if limit <= 0 || limit > ChainPageSize {
		limit = ChainPageSize
	}
	var (
		total int
		tip   int64
		seen  int
	)
	fetch := func(ctx context.Context, page int, after string) (bigmi.TransactionPage, error) {
		segs := []string{"address", p.Address, "txs", "chain"}
		if after != "" {
			segs = append(segs, after)
		}
		txs, err := providers.GetJSON[[]esploraTx](ctx, env, env.URL(segs...), nil)
		if err != nil {
			return bigmi.TransactionPage{}, err
		}
		var more bool
		switch {
		case len(txs) > limit:
			txs = txs[:limit]
			more = true
		case len(txs) < ChainPageSize:
			// A short page is the end of the chain history.
			more = false
		case p.AfterTxID == "":
			more = seen+len(txs) < total
		default:
			// total counts transactions skipped by the caller's cursor.
			more = true
		}
		seen += len(txs)
		out := bigmi.TransactionPage{
			Total:        total,
			Page:         page,
			ItemsPerPage: limit,
			HasMore:      more,
			Transactions: make([]bigmi.Transaction, 0, len(txs)),
		}
		for _, tx := range txs {
			out.Transactions = append(out.Transactions, toTransaction(tx, tip))
		}
		return out, nil
	}
	first := func(ctx context.Context) (bigmi.TransactionPage, error) {
		addr, err := a.address(ctx, env, p.Address)
		if err != nil {
			return bigmi.TransactionPage{}, err
		}
		total = addr.ChainStats.TxCount
		if tip, err = a.tip(ctx, env); err != nil {
			return bigmi.TransactionPage{}, err
		}
		return fetch(ctx, 0, p.AfterTxID)
	}
	next := func(ctx context.Context, prev bigmi.TransactionPage) (bigmi.TransactionPage, error) {
		last := prev.Transactions[len(prev.Transactions)-1].TxID
		return fetch(ctx, prev.Page+1, last)
	}
	s, err := bigmi.NewPageStream(ctx, first, next)
	if err != nil {
		return bigmi.Result[*bigmi.PageStream]{}, err
	}
	return bigmi.Ok(s), nil
}

func (a *Adapter) tx(ctx context.Context, env providers.Env, txID string) (esploraTx, bool, error) {
	tx, err := providers.GetJSON[esploraTx](ctx, env, env.URL("tx", txID), nil)
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
	return bigmi.Ok(big.NewInt(tx.Fee)), nil
}

func (a *Adapter) GetTransaction(ctx context.Context, env providers.Env, p bigmi.TxIDParams) (bigmi.Result[bigmi.Transaction], error) {
	tx, ok, err := a.tx(ctx, env, p.TxID)
	if err != nil {
		return bigmi.Result[bigmi.Transaction]{}, err
	}
	if !ok {
		return bigmi.TransactionNotFound[bigmi.Transaction](p.TxID), nil
	}
	var tip int64
	if tx.Status.Confirmed {
		if tip, err = a.tip(ctx, env); err != nil {
			return bigmi.Result[bigmi.Transaction]{}, err
		}
	}
	return bigmi.Ok(toTransaction(tx, tip)), nil
}

// SendRawTransaction posts the hex as text/plain; mempool answers with the txid as text.
func (a *Adapter) SendRawTransaction(ctx context.Context, env providers.Env, hexTx string) (bigmi.Result[string], error) {
	txid, err := providers.SendJSON[string](ctx, env, httpx.Request{Method: http.MethodPost, URL: env.URL("tx"), Body: hexTx})
	if err != nil {
		return bigmi.Result[string]{}, err
	}
	return bigmi.Ok(txid), nil
}

func (a *Adapter) GetBlockCount(ctx context.Context, env providers.Env) (bigmi.Result[int64], error) {
	h, err := a.tip(ctx, env)
	if err != nil {
		return bigmi.Result[int64]{}, err
	}
	return bigmi.Ok(h), nil
}
