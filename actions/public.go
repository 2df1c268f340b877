package actions

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/wire"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/internal/units"
)

func GetBalance(ctx context.Context, c *bigmi.Client, address string, opts ...bigmi.RequestOption) (*big.Int, error) {
	return bigmi.Call[*big.Int](ctx, c, bigmi.RPCCall{
		Method: bigmi.MethodGetBalance,
		Params: bigmi.AddressParams{Address: address},
	}, opts...)
}

// GetUTXOs returns the unspent outputs of p.Address. With a MinValue the provider may stop
// collecting once the value is covered, and an address holding less fails with
// *bigmi.InsufficientBalanceError.
func GetUTXOs(ctx context.Context, c *bigmi.Client, p bigmi.UTXOParams, opts ...bigmi.RequestOption) ([]bigmi.UTXO, error) {
	return bigmi.Call[[]bigmi.UTXO](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetUTXOs, Params: p}, opts...)
}

// GetTransactions opens a page stream over the address history. The first page has already
// been fetched when it returns; later pages are fetched by Recv.
func GetTransactions(ctx context.Context, c *bigmi.Client, p bigmi.TransactionsParams, opts ...bigmi.RequestOption) (*bigmi.PageStream, error) {
	return bigmi.Call[*bigmi.PageStream](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetTransactions, Params: p}, opts...)
}

// GetAllTransactions drains the address history into one slice.
func GetAllTransactions(ctx context.Context, c *bigmi.Client, p bigmi.TransactionsParams, opts ...bigmi.RequestOption) ([]bigmi.Transaction, error) {
	s, err := GetTransactions(ctx, c, p, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return bigmi.DrainPages(ctx, s)
}

// GetTransactionFee returns the fee paid by txID in satoshis.
func GetTransactionFee(ctx context.Context, c *bigmi.Client, txID string, opts ...bigmi.RequestOption) (*big.Int, error) {
	return bigmi.Call[*big.Int](ctx, c, bigmi.RPCCall{
		Method: bigmi.MethodGetTransactionFee,
		Params: bigmi.TxIDParams{TxID: txID},
	}, opts...)
}

func GetXPubAddresses(ctx context.Context, c *bigmi.Client, xpub string, opts ...bigmi.RequestOption) (bigmi.XPubAccount, error) {
	return bigmi.Call[bigmi.XPubAccount](ctx, c, bigmi.RPCCall{
		Method: bigmi.MethodGetXPubAddresses,
		Params: bigmi.XPubParams{XPubKey: xpub},
	}, opts...)
}

func GetTransaction(ctx context.Context, c *bigmi.Client, txID string, opts ...bigmi.RequestOption) (bigmi.Transaction, error) {
	return bigmi.Call[bigmi.Transaction](ctx, c, bigmi.RPCCall{
		Method: bigmi.MethodGetTransaction,
		Params: bigmi.TxIDParams{TxID: txID},
	}, opts...)
}

func GetBlockCount(ctx context.Context, c *bigmi.Client, opts ...bigmi.RequestOption) (int64, error) {
	return bigmi.Call[int64](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetBlockCount, Params: []any{}}, opts...)
}

func GetBlockHash(ctx context.Context, c *bigmi.Client, height int64, opts ...bigmi.RequestOption) (string, error) {
	return bigmi.Call[string](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetBlockHash, Params: []any{height}}, opts...)
}

// GetBlockHex returns the serialized block (verbosity 0).
func GetBlockHex(ctx context.Context, c *bigmi.Client, hash string, opts ...bigmi.RequestOption) (string, error) {
	return bigmi.Call[string](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetBlock, Params: []any{hash, 0}}, opts...)
}

// GetBlock fetches a block and decodes it.
func GetBlock(ctx context.Context, c *bigmi.Client, hash string, opts ...bigmi.RequestOption) (*wire.MsgBlock, error) {
	raw, err := GetBlockHex(ctx, c, hash, opts...)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, &bigmi.ParseError{Method: bigmi.MethodGetBlock, Field: "result", Cause: err}
	}
	var blk wire.MsgBlock
	if err := blk.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, &bigmi.ParseError{Method: bigmi.MethodGetBlock, Field: "result", Cause: err}
	}
	return &blk, nil
}

// GetBlockStats reads statistics of a block given by hash or height. Listing stats limits the
// answer to those fields.
func GetBlockStats(ctx context.Context, c *bigmi.Client, hashOrHeight any, stats []string, opts ...bigmi.RequestOption) (bigmi.BlockStats, error) {
	params := []any{hashOrHeight}
	if len(stats) > 0 {
		params = append(params, stats)
	}
	return bigmi.Call[bigmi.BlockStats](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetBlockStats, Params: params}, opts...)
}

// GetRawTransaction returns the verbose transaction. blockHash is optional.
func GetRawTransaction(ctx context.Context, c *bigmi.Client, txID, blockHash string, opts ...bigmi.RequestOption) (bigmi.RawTransaction, error) {
	params := []any{txID, true}
	if blockHash != "" {
		params = append(params, blockHash)
	}
	return bigmi.Call[bigmi.RawTransaction](ctx, c, bigmi.RPCCall{Method: bigmi.MethodGetRawTransaction, Params: params}, opts...)
}

// RawOutputs converts the BTC-denominated outputs of a verbose transaction to satoshis.
func RawOutputs(raw bigmi.RawTransaction) []bigmi.TxOutput {
	out := make([]bigmi.TxOutput, 0, len(raw.Vout))
	for _, v := range raw.Vout {
		addr := v.ScriptPubKey.Address
		if addr == "" && len(v.ScriptPubKey.Addresses) > 0 {
			addr = v.ScriptPubKey.Addresses[0]
		}
		out = append(out, bigmi.TxOutput{
			N:         v.N,
			Address:   addr,
			Value:     units.FloatBTCToSats(v.Value),
			ScriptHex: v.ScriptPubKey.Hex,
		})
	}
	return out
}

// SendRawTransaction broadcasts hexTx and returns its txid. The txid reported upstream must
// match the one computed from hexTx.
func SendRawTransaction(ctx context.Context, c *bigmi.Client, hexTx string, opts ...bigmi.RequestOption) (string, error) {
	tx, err := bigmi.DecodeRawTx(hexTx)
	if err != nil {
		return "", &bigmi.ParseError{Method: bigmi.MethodSendRawTransaction, Field: "hex", Cause: err}
	}
	want := tx.TxHash().String()

	got, err := bigmi.Call[string](ctx, c, bigmi.RPCCall{
		Method: bigmi.MethodSendRawTransaction,
		Params: []any{strings.TrimSpace(hexTx)},
	}, opts...)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(strings.TrimSpace(got), want) {
		return "", &bigmi.ParseError{
			Method: bigmi.MethodSendRawTransaction,
			Field:  "result",
			Cause:  fmt.Errorf("broadcast returned txid %s, expected %s", got, want),
		}
	}
	return want, nil
}
