package transport

import (
	"context"
	"fmt"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/providers"
	"github.com/lifinance/bigmi-sub000/providers/ankr"
	"github.com/lifinance/bigmi-sub000/providers/blockchair"
	"github.com/lifinance/bigmi-sub000/providers/blockcypher"
	"github.com/lifinance/bigmi-sub000/providers/mempool"
)

// AdapterFor returns the adapter of a provider. Unknown keys are an error.
func AdapterFor(key providers.Key) (providers.Adapter, error) {
	switch key {
	case providers.Ankr:
		return ankr.New(), nil
	case providers.Blockchair:
		return blockchair.New(), nil
	case providers.Blockcypher:
		return blockcypher.New(), nil
	case providers.Mempool:
		return mempool.New(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", key)
}

// dispatch calls the adapter method answering call. ok is false when the adapter has no
// such capability.
func dispatch(ctx context.Context, a providers.Adapter, env providers.Env, call bigmi.RPCCall) (res bigmi.Result[any], ok bool, err error) {
	perr := func(err error) (bigmi.Result[any], bool, error) {
		return res, true, &bigmi.ParseError{Method: call.Method, Field: "params", Cause: err}
	}
	switch call.Method {
	case bigmi.MethodGetBalance:
		g, ok := a.(providers.BalanceGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.AddressParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetBalance(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodGetUTXOs:
		g, ok := a.(providers.UTXOGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.UTXOParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetUTXOs(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodGetTransactions:
		g, ok := a.(providers.TransactionsGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.TransactionsParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetTransactions(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodGetTransactionFee:
		g, ok := a.(providers.TransactionFeeGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.TxIDParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetTransactionFee(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodGetXPubAddresses:
		g, ok := a.(providers.XPubGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.XPubParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetXPubAddresses(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodGetTransaction:
		g, ok := a.(providers.TransactionGetter)
		if !ok {
			break
		}
		p, err := bigmi.DecodeParams[bigmi.TxIDParams](call.Params)
		if err != nil {
			return perr(err)
		}
		r, err := g.GetTransaction(ctx, env, p)
		return r.Any(), true, err
	case bigmi.MethodSendRawTransaction:
		g, ok := a.(providers.Broadcaster)
		if !ok {
			break
		}
		args, err := bigmi.PositionalParams(call.Params)
		if err != nil {
			return perr(err)
		}
		hexTx, _ := firstString(args)
		r, err := g.SendRawTransaction(ctx, env, hexTx)
		return r.Any(), true, err
	case bigmi.MethodGetBlockCount:
		g, ok := a.(providers.BlockCountGetter)
		if !ok {
			break
		}
		r, err := g.GetBlockCount(ctx, env)
		return r.Any(), true, err
	}
	return res, false, nil
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
