package transport

import (
	"context"
	"errors"

	bigmi "github.com/lifinance/bigmi-sub000"
)

var _ bigmi.Transport = (*WalletTransport)(nil)

// WalletProvider is the signing surface of an injected wallet. Rejections should be
// reported as *bigmi.RPCErrorPayload carrying the wallet's code (4001 or 5000).
type WalletProvider interface {
	SignPsbt(ctx context.Context, p bigmi.SignPsbtParams) (string, error)
}

// WalletProviderFunc adapts a function to a WalletProvider.
type WalletProviderFunc func(ctx context.Context, p bigmi.SignPsbtParams) (string, error)

func (f WalletProviderFunc) SignPsbt(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
	return f(ctx, p)
}

// WalletTransport routes signPsbt to a wallet and everything else to an optional read
// transport.
type WalletTransport struct {
	cfg      bigmi.TransportConfig
	provider WalletProvider
	read     bigmi.Transport
}

func Wallet(provider WalletProvider, read bigmi.Transport, opts ...Option) (*WalletTransport, error) {
	if provider == nil {
		return nil, errors.New("transport: wallet provider is required")
	}
	o := apply(opts)
	return &WalletTransport{cfg: o.config("wallet", "Wallet", "wallet"), provider: provider, read: read}, nil
}

func (w *WalletTransport) Config() bigmi.TransportConfig { return w.cfg }

func (w *WalletTransport) Request(ctx context.Context, call bigmi.RPCCall) (any, error) {
	if !w.cfg.Methods.Allows(call.Method) {
		return nil, &bigmi.MethodNotSupportedError{Method: call.Method}
	}
	if call.Method != bigmi.MethodSignPsbt {
		if w.read == nil {
			return nil, &bigmi.MethodNotSupportedError{Method: call.Method}
		}
		return w.read.Request(ctx, call)
	}

	p, err := bigmi.DecodeParams[bigmi.SignPsbtParams](call.Params)
	if err != nil {
		return nil, &bigmi.ParseError{Method: call.Method, Field: "params", Cause: err}
	}
	signed, err := w.provider.SignPsbt(ctx, p)
	if err != nil {
		var payload *bigmi.RPCErrorPayload
		if errors.As(err, &payload) {
			return nil, &bigmi.RPCRequestError{Code: payload.Code, Message: payload.Message, Data: payload.Data, Method: call.Method}
		}
		return nil, err
	}
	if _, err := bigmi.DecodePsbt(signed); err != nil {
		return nil, &bigmi.ParseError{Method: call.Method, Field: "result", Cause: err}
	}
	return signed, nil
}
