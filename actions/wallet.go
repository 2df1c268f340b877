package actions

import (
	"context"

	bigmi "github.com/lifinance/bigmi-sub000"
)

// SignPsbt asks the client's wallet to sign p.Psbt and returns the signed PSBT.
func SignPsbt(ctx context.Context, c *bigmi.Client, p bigmi.SignPsbtParams, opts ...bigmi.RequestOption) (string, error) {
	return bigmi.Call[string](ctx, c, bigmi.RPCCall{Method: bigmi.MethodSignPsbt, Params: p}, opts...)
}
