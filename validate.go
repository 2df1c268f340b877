package bigmi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Validate checks call parameters before anything is sent upstream. Failures are *ParseError.
func (c RPCCall) Validate() error {
	if !c.Method.Valid() {
		return &MethodNotSupportedError{Method: c.Method}
	}
	perr := func(field string, err error) error {
		return &ParseError{Method: c.Method, Field: field, Cause: err}
	}
	switch c.Method {
	case MethodGetBalance:
		p, err := DecodeParams[AddressParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		return requireAddress(p.Address, perr)
	case MethodGetUTXOs:
		p, err := DecodeParams[UTXOParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		if p.MinValue < 0 {
			return perr("minValue", errors.New("must not be negative"))
		}
		return requireAddress(p.Address, perr)
	case MethodGetTransactions:
		p, err := DecodeParams[TransactionsParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		if p.Limit < 0 || p.Offset < 0 {
			return perr("limit", errors.New("limit and offset must not be negative"))
		}
		if p.AfterTxID != "" {
			if _, err := ParseHash(p.AfterTxID); err != nil {
				return perr("afterTxId", err)
			}
		}
		return requireAddress(p.Address, perr)
	case MethodGetTransactionFee, MethodGetTransaction:
		p, err := DecodeParams[TxIDParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		if _, err := ParseHash(p.TxID); err != nil {
			return perr("txId", err)
		}
	case MethodGetXPubAddresses:
		p, err := DecodeParams[XPubParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(p.XPubKey))
		if err != nil {
			return perr("xPubKey", err)
		}
		if key.IsPrivate() {
			return perr("xPubKey", errors.New("extended private keys are never sent upstream"))
		}
	case MethodSignPsbt:
		p, err := DecodeParams[SignPsbtParams](c.Params)
		if err != nil {
			return perr("params", err)
		}
		if _, err := DecodePsbt(p.Psbt); err != nil {
			return perr("psbt", err)
		}
	case MethodGetBlockCount:
		return nil
	default:
		return c.validatePositional(perr)
	}
	return nil
}

func (c RPCCall) validatePositional(perr func(string, error) error) error {
	args, err := PositionalParams(c.Params)
	if err != nil {
		return perr("params", err)
	}
	need := func(n int) error {
		if len(args) < n {
			return perr("params", fmt.Errorf("expected at least %d positional params, got %d", n, len(args)))
		}
		return nil
	}
	switch c.Method {
	case MethodGetBlockHash:
		if err := need(1); err != nil {
			return err
		}
		if _, ok := asHeight(args[0]); !ok {
			return perr("height", fmt.Errorf("invalid block height %v", args[0]))
		}
	case MethodGetBlock:
		if err := need(1); err != nil {
			return err
		}
		if _, err := hashParam(args[0]); err != nil {
			return perr("blockhash", err)
		}
	case MethodGetBlockStats:
		if err := need(1); err != nil {
			return err
		}
		if _, ok := asHeight(args[0]); !ok {
			if _, err := hashParam(args[0]); err != nil {
				return perr("hash_or_height", err)
			}
		}
	case MethodSendRawTransaction:
		if err := need(1); err != nil {
			return err
		}
		s, _ := args[0].(string)
		if _, err := DecodeRawTx(s); err != nil {
			return perr("hexstring", err)
		}
	case MethodGetRawTransaction:
		if err := need(1); err != nil {
			return err
		}
		if _, err := hashParam(args[0]); err != nil {
			return perr("txid", err)
		}
		if len(args) > 2 && args[2] != nil && args[2] != "" {
			if _, err := hashParam(args[2]); err != nil {
				return perr("blockhash", err)
			}
		}
	}
	return nil
}

func requireAddress(addr string, perr func(string, error) error) error {
	if strings.TrimSpace(addr) == "" {
		return perr("address", errors.New("address is required"))
	}
	return nil
}

// PositionalParams normalizes raw JSON-RPC params to a slice. Nil means no params.
func PositionalParams(params any) ([]any, error) {
	switch p := params.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return p, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("params must be positional: %w", err)
	}
	return out, nil
}

// ParseHash parses a 64 character hex txid or block hash.
func ParseHash(s string) (*chainhash.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != chainhash.MaxHashStringSize {
		return nil, fmt.Errorf("hash %q must be %d hex characters", s, chainhash.MaxHashStringSize)
	}
	return chainhash.NewHashFromStr(s)
}

func hashParam(v any) (*chainhash.Hash, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected hash string, got %T", v)
	}
	return ParseHash(s)
}

func asHeight(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), n >= 0
	case int64:
		return n, n >= 0
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), n >= 0 && n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil && i >= 0
	}
	return 0, false
}

// DecodeRawTx decodes a hex serialized transaction.
func DecodeRawTx(hexTx string) (*wire.MsgTx, error) {
	b, err := hex.DecodeString(strings.TrimSpace(hexTx))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty transaction")
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return tx, nil
}

// DecodePsbt accepts a PSBT in hex or base64.
func DecodePsbt(s string) (*psbt.Packet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty psbt")
	}
	if b, err := hex.DecodeString(s); err == nil {
		return psbt.NewFromRawBytes(bytes.NewReader(b), false)
	}
	return psbt.NewFromRawBytes(strings.NewReader(s), true)
}
