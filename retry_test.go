package bigmi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lifinance/bigmi-sub000/httpx"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rpc unknown", &RPCRequestError{Code: CodeMisc}, true},
		{"rpc internal", &RPCRequestError{Code: CodeInternal}, true},
		{"rpc other", &RPCRequestError{Code: CodeInvalidParams}, false},
		{"http 429", &httpx.Error{StatusCode: http.StatusTooManyRequests}, true},
		{"http 403", &httpx.Error{StatusCode: http.StatusForbidden}, true},
		{"http 413", &httpx.Error{StatusCode: http.StatusRequestEntityTooLarge}, true},
		{"http 503", &httpx.Error{StatusCode: http.StatusServiceUnavailable}, true},
		{"http 400", &httpx.Error{StatusCode: http.StatusBadRequest}, false},
		{"http 404", &httpx.Error{StatusCode: http.StatusNotFound}, false},
		{"connection reset", &httpx.Error{Cause: errors.New("connection reset")}, true},
		{"caller canceled", &httpx.Error{Cause: fmt.Errorf("do: %w", context.Canceled)}, false},
		{"timeout", &httpx.TimeoutError{Limit: time.Second}, true},
		{"socket closed", &SocketClosedError{}, true},
		{"insufficient balance", &InsufficientBalanceError{}, false},
		{"tx not found", &TransactionNotFoundError{}, false},
		{"method not supported", &MethodNotSupportedError{}, false},
		{"parse", &ParseError{}, false},
		{"unclassified", errors.New("weird"), true},
		{"context", context.Canceled, false},
		{"aggregate retryable", &AllTransportsFailedError{Failures: []TransportFailure{
			{Err: &httpx.Error{StatusCode: http.StatusBadRequest}},
			{Err: &httpx.Error{StatusCode: http.StatusTooManyRequests}},
		}}, true},
		{"aggregate final", &AllTransportsFailedError{Failures: []TransportFailure{
			{Err: &httpx.Error{StatusCode: http.StatusBadRequest}},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShouldRetry(tt.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	base := 150 * time.Millisecond
	require.Equal(t, 150*time.Millisecond, RetryDelay(0, errors.New("x"), base))
	require.Equal(t, 300*time.Millisecond, RetryDelay(1, errors.New("x"), base))
	require.Equal(t, 600*time.Millisecond, RetryDelay(2, errors.New("x"), base))

	h := http.Header{}
	h.Set("Retry-After", "2")
	require.Equal(t, 2*time.Second, RetryDelay(0, &httpx.Error{StatusCode: 429, Header: h}, base))

	h.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	require.Equal(t, 300*time.Millisecond, RetryDelay(1, &httpx.Error{StatusCode: 429, Header: h}, base))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindHTTPRequest, KindOf(fmt.Errorf("wrapped: %w", &httpx.Error{})))
	require.Equal(t, KindBase, KindOf(&BaseError{Cause: &httpx.Error{}}))
	require.Equal(t, KindUnknown, KindOf(errors.New("x")))
	require.True(t, IsTerminal(&BlockNotFoundError{}))
	require.False(t, IsTerminal(&RPCRequestError{}))
}

func TestErrorFromPayload(t *testing.T) {
	call := RPCCall{Method: MethodGetRawTransaction, Params: []any{"ab", true}}
	err := ErrorFromPayload(call, &RPCErrorPayload{Code: CodeInvalidAddressOrKey, Message: "No such mempool or blockchain transaction"}, "http://node", nil)
	var nf *TransactionNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "ab", nf.TxID)

	err = ErrorFromPayload(RPCCall{Method: MethodGetBlockHash, Params: []any{999999999}}, &RPCErrorPayload{Code: CodeInvalidParameter}, "", nil)
	require.Equal(t, KindBlockNotFound, KindOf(err))

	err = ErrorFromPayload(RPCCall{Method: MethodGetUTXOs}, &RPCErrorPayload{Code: CodeInsufficientBalance, Data: InsufficientBalanceData{Address: "a"}}, "", nil)
	var ib *InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	require.Equal(t, "a", ib.Address)

	err = ErrorFromPayload(RPCCall{Method: MethodGetBlockCount}, &RPCErrorPayload{Code: CodeLimitExceeded, Message: "slow"}, "http://x", []byte("{}"))
	var rpc *RPCRequestError
	require.ErrorAs(t, err, &rpc)
	require.Equal(t, "http://x", rpc.URL)
}
