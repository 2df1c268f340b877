package bigmi

import (
	"math/big"

	"github.com/btcsuite/btcd/btcjson"
)

// UTXO is one unspent output. (TxID, Vout) is unique within an address's UTXO set.
type UTXO struct {
	TxID          string `json:"txId"`
	Vout          uint32 `json:"vout"`
	Value         int64  `json:"value"`
	BlockHeight   int64  `json:"blockHeight"`
	Confirmations int64  `json:"confirmations"`
	IsConfirmed   bool   `json:"isConfirmed"`
	ScriptHex     string `json:"scriptHex"`
}

// Outpoint identifies a UTXO.
type Outpoint struct {
	TxID string
	Vout uint32
}

func (u UTXO) Outpoint() Outpoint { return Outpoint{TxID: u.TxID, Vout: u.Vout} }

// TotalValue sums the value of utxos in satoshis.
func TotalValue(utxos []UTXO) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		total.Add(total, big.NewInt(u.Value))
	}
	return total
}

type TxInput struct {
	TxID    string `json:"txId"`
	Vout    uint32 `json:"vout"`
	Address string `json:"address,omitempty"`
	Value   int64  `json:"value"`
}

type TxOutput struct {
	N         uint32 `json:"n"`
	Address   string `json:"address,omitempty"`
	Value     int64  `json:"value"`
	ScriptHex string `json:"scriptHex,omitempty"`
}

// Transaction is the provider-independent view of a transaction. Amounts are satoshis,
// BlockTime is unix seconds and BlockHeight is 0 while unconfirmed.
type Transaction struct {
	TxID          string     `json:"txId"`
	BlockHash     string     `json:"blockHash,omitempty"`
	BlockHeight   int64      `json:"blockHeight"`
	BlockTime     int64      `json:"blockTime,omitempty"`
	Confirmations int64      `json:"confirmations"`
	IsConfirmed   bool       `json:"isConfirmed"`
	Fee           int64      `json:"fee"`
	Size          int64      `json:"size,omitempty"`
	VSize         int64      `json:"vsize,omitempty"`
	Inputs        []TxInput  `json:"inputs"`
	Outputs       []TxOutput `json:"outputs"`
}

// TransactionPage is one page of an address history.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	ItemsPerPage int           `json:"itemsPerPage"`
	HasMore      bool          `json:"hasMore"`
}

type XPubAddress struct {
	Address   string   `json:"address"`
	Balance   *big.Int `json:"balance"`
	Path      string   `json:"path"`
	ScriptHex string   `json:"scriptHex,omitempty"`
}

type XPubAccount struct {
	Balance   *big.Int      `json:"balance"`
	Addresses []XPubAddress `json:"addresses"`
}

// BlockStats is the getblockstats result.
type BlockStats = btcjson.GetBlockStatsResult

// RawTransaction is the verbose getrawtransaction result.
type RawTransaction = btcjson.TxRawResult

// Account identifies the wallet account a client acts for.
type Account struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey,omitempty"`
	// Purpose is the address kind (p2wpkh, p2tr, ...). Parsing is left to callers.
	Purpose string `json:"purpose,omitempty"`
}
