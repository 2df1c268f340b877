package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	bigmi "github.com/lifinance/bigmi-sub000"
)

func testPsbt(t *testing.T) string {
	t.Helper()
	script := append([]byte{0x00, 0x14}, make([]byte, 20)...)
	p, err := psbt.New(
		[]*wire.OutPoint{{Hash: chainhash.Hash{1}, Index: 0}},
		[]*wire.TxOut{wire.NewTxOut(1000, script)},
		2, 0, []uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)
	s, err := p.B64Encode()
	require.NoError(t, err)
	return s
}

func signCall(p string) bigmi.RPCCall {
	return bigmi.RPCCall{Method: bigmi.MethodSignPsbt, Params: bigmi.SignPsbtParams{
		Psbt:         p,
		InputsToSign: []bigmi.InputToSign{{Address: testAddress, SigningIndexes: []int{0}}},
	}}
}

func TestWallet_SignPsbt(t *testing.T) {
	unsigned := testPsbt(t)
	var got bigmi.SignPsbtParams
	w, err := Wallet(WalletProviderFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
		got = p
		return p.Psbt, nil
	}), nil)
	require.NoError(t, err)

	c, err := bigmi.NewClient(w)
	require.NoError(t, err)
	signed, err := bigmi.Call[string](context.Background(), c, signCall(unsigned))
	require.NoError(t, err)
	require.Equal(t, unsigned, signed)
	require.Equal(t, []int{0}, got.InputsToSign[0].SigningIndexes)
}

func TestWallet_UserRejection(t *testing.T) {
	for _, code := range []int{bigmi.CodeUserRejected, bigmi.CodeWalletConnectRejects} {
		var calls int
		w, err := Wallet(WalletProviderFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
			calls++
			return "", &bigmi.RPCErrorPayload{Code: code, Message: "User rejected the request."}
		}), nil)
		require.NoError(t, err)
		c, err := bigmi.NewClient(w)
		require.NoError(t, err)

		_, err = c.Request(context.Background(), signCall(testPsbt(t)))
		var rej *bigmi.UserRejectedError
		require.ErrorAs(t, err, &rej)
		require.Equal(t, code, rej.Code)
		require.Equal(t, 1, calls)
	}
}

func TestWallet_InvalidSignedResult(t *testing.T) {
	w, err := Wallet(WalletProviderFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
		return "not-a-psbt", nil
	}), nil)
	require.NoError(t, err)
	_, err = w.Request(context.Background(), signCall(testPsbt(t)))
	var pe *bigmi.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "result", pe.Field)
}

func TestWallet_ReadMethods(t *testing.T) {
	w, err := Wallet(WalletProviderFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
		return "", errors.New("unused")
	}), nil)
	require.NoError(t, err)
	_, err = w.Request(context.Background(), bigmi.RPCCall{Method: bigmi.MethodGetBlockCount})
	var mns *bigmi.MethodNotSupportedError
	require.ErrorAs(t, err, &mns)

	read := bigmi.TransportFunc{Fn: func(ctx context.Context, call bigmi.RPCCall) (any, error) { return int64(7), nil }}
	w, err = Wallet(WalletProviderFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
		return "", errors.New("unused")
	}), read)
	require.NoError(t, err)
	v, err := w.Request(context.Background(), bigmi.RPCCall{Method: bigmi.MethodGetBlockCount})
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}
