// Package providers defines the closed set of block-explorer providers and the capability
// interfaces their adapters implement.
//
// Adapters translate one provider's REST shapes into canonical results. Anticipated provider
// answers (not found, quota exhausted, balance too low) come back as failed bigmi.Result
// values; anything unexpected is returned as an error.
package providers

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	bigmi "github.com/lifinance/bigmi-sub000"
)

// Key names a supported provider.
type Key string

const (
	Ankr        Key = "ankr"
	Blockchair  Key = "blockchair"
	Blockcypher Key = "blockcypher"
	Mempool     Key = "mempool"
)

var keys = []Key{Ankr, Blockchair, Blockcypher, Mempool}

func Keys() []Key { return append([]Key(nil), keys...) }

func (k Key) Valid() bool {
	for _, v := range keys {
		if v == k {
			return true
		}
	}
	return false
}

func (k Key) String() string { return string(k) }

// ParseKey resolves a provider name. Unknown names are an error.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown provider %q (supported: %v)", s, keys)
	}
	return k, nil
}

// Adapter is implemented by every provider adapter. The capability interfaces below say
// which canonical methods it answers.
type Adapter interface {
	Key() Key
	DefaultBaseURL() string
}

type BalanceGetter interface {
	GetBalance(ctx context.Context, env Env, p bigmi.AddressParams) (bigmi.Result[*big.Int], error)
}

type UTXOGetter interface {
	GetUTXOs(ctx context.Context, env Env, p bigmi.UTXOParams) (bigmi.Result[[]bigmi.UTXO], error)
}

type TransactionsGetter interface {
	GetTransactions(ctx context.Context, env Env, p bigmi.TransactionsParams) (bigmi.Result[*bigmi.PageStream], error)
}

type TransactionFeeGetter interface {
	GetTransactionFee(ctx context.Context, env Env, p bigmi.TxIDParams) (bigmi.Result[*big.Int], error)
}

type XPubGetter interface {
	GetXPubAddresses(ctx context.Context, env Env, p bigmi.XPubParams) (bigmi.Result[bigmi.XPubAccount], error)
}

type TransactionGetter interface {
	GetTransaction(ctx context.Context, env Env, p bigmi.TxIDParams) (bigmi.Result[bigmi.Transaction], error)
}

type Broadcaster interface {
	SendRawTransaction(ctx context.Context, env Env, hexTx string) (bigmi.Result[string], error)
}

type BlockCountGetter interface {
	GetBlockCount(ctx context.Context, env Env) (bigmi.Result[int64], error)
}

// Supports reports whether a answers method.
func Supports(a Adapter, method bigmi.Method) bool {
	var ok bool
	switch method {
	case bigmi.MethodGetBalance:
		_, ok = a.(BalanceGetter)
	case bigmi.MethodGetUTXOs:
		_, ok = a.(UTXOGetter)
	case bigmi.MethodGetTransactions:
		_, ok = a.(TransactionsGetter)
	case bigmi.MethodGetTransactionFee:
		_, ok = a.(TransactionFeeGetter)
	case bigmi.MethodGetXPubAddresses:
		_, ok = a.(XPubGetter)
	case bigmi.MethodGetTransaction:
		_, ok = a.(TransactionGetter)
	case bigmi.MethodSendRawTransaction:
		_, ok = a.(Broadcaster)
	case bigmi.MethodGetBlockCount:
		_, ok = a.(BlockCountGetter)
	}
	return ok
}

// Capabilities lists the canonical methods a answers.
func Capabilities(a Adapter) []bigmi.Method {
	var out []bigmi.Method
	for _, m := range bigmi.Methods() {
		if Supports(a, m) {
			out = append(out, m)
		}
	}
	return out
}
