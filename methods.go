package bigmi

import (
	"encoding/json"
	"sort"
)

// Method is a canonical method name every Transport must answer.
type Method string

const (
	MethodGetBalance         Method = "getBalance"
	MethodGetUTXOs           Method = "getUTXOs"
	MethodGetTransactions    Method = "getTransactions"
	MethodGetTransactionFee  Method = "getTransactionFee"
	MethodGetXPubAddresses   Method = "getXPubAddresses"
	MethodGetTransaction     Method = "getTransaction"
	MethodGetBlockCount      Method = "getblockcount"
	MethodGetBlockHash       Method = "getblockhash"
	MethodGetBlock           Method = "getblock"
	MethodGetBlockStats      Method = "getblockstats"
	MethodSendRawTransaction Method = "sendrawtransaction"
	MethodGetRawTransaction  Method = "getrawtransaction"
	MethodSignPsbt           Method = "signPsbt"
)

var allMethods = []Method{
	MethodGetBalance,
	MethodGetUTXOs,
	MethodGetTransactions,
	MethodGetTransactionFee,
	MethodGetXPubAddresses,
	MethodGetTransaction,
	MethodGetBlockCount,
	MethodGetBlockHash,
	MethodGetBlock,
	MethodGetBlockStats,
	MethodSendRawTransaction,
	MethodGetRawTransaction,
	MethodSignPsbt,
}

// Methods returns every canonical method.
func Methods() []Method {
	return append([]Method(nil), allMethods...)
}

func (m Method) Valid() bool {
	for _, v := range allMethods {
		if v == m {
			return true
		}
	}
	return false
}

func (m Method) String() string { return string(m) }

// RPCCall is one logical request.
type RPCCall struct {
	Method Method `json:"method"`
	Params any    `json:"params"`
}

type AddressParams struct {
	Address string `json:"address"`
}

// UTXOParams selects UTXOs of Address. A zero MinValue returns the full set.
type UTXOParams struct {
	Address  string `json:"address"`
	MinValue int64  `json:"minValue,omitempty"`
}

// TransactionsParams selects a page window of an address history. Providers use whichever of
// Offset, LastBlock or AfterTxID fits their pagination model.
type TransactionsParams struct {
	Address   string `json:"address"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	LastBlock int64  `json:"lastBlock,omitempty"`
	AfterTxID string `json:"afterTxId,omitempty"`
}

type TxIDParams struct {
	TxID string `json:"txId"`
}

type XPubParams struct {
	XPubKey string `json:"xPubKey"`
}

type InputToSign struct {
	Address        string `json:"address"`
	SigningIndexes []int  `json:"signingIndexes"`
	SigHash        *int   `json:"sigHash,omitempty"`
}

type SignPsbtParams struct {
	Psbt         string        `json:"psbt"`
	InputsToSign []InputToSign `json:"inputsToSign"`
	Finalize     bool          `json:"finalize,omitempty"`
}

// MethodFilter restricts which methods a transport serves. Include wins when both are set.
type MethodFilter struct {
	Include []Method `json:"include,omitempty" mapstructure:"include"`
	Exclude []Method `json:"exclude,omitempty" mapstructure:"exclude"`
}

func (f MethodFilter) Allows(m Method) bool {
	if len(f.Include) > 0 {
		for _, v := range f.Include {
			if v == m {
				return true
			}
		}
		return false
	}
	for _, v := range f.Exclude {
		if v == m {
			return false
		}
	}
	return true
}

// RawTransactionParams builds positional getrawtransaction params.
func RawTransactionParams(txID string, verbose bool, blockHash string) []any {
	p := []any{txID, verbose}
	if blockHash != "" {
		p = append(p, blockHash)
	}
	return p
}

// SortedMethods returns ms sorted by name; useful for stable output.
func SortedMethods(ms []Method) []Method {
	out := append([]Method(nil), ms...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DecodeParams converts loosely typed params (for example a map decoded from JSON) into T.
func DecodeParams[T any](params any) (T, error) {
	var out T
	if v, ok := params.(T); ok {
		return v, nil
	}
	if v, ok := params.(*T); ok && v != nil {
		return *v, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
