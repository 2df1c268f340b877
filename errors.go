package bigmi

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/lifinance/bigmi-sub000/httpx"
)

type (
	// HTTPRequestError is a non-2xx response or a failure before a usable response existed.
	HTTPRequestError = httpx.Error
	// TimeoutError is raised when the per-request timeout aborts an HTTP call.
	TimeoutError = httpx.TimeoutError
)

type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindHTTPRequest         Kind = "http_request"
	KindTimeout             Kind = "timeout"
	KindSocketClosed        Kind = "socket_closed"
	KindRPCRequest          Kind = "rpc_request"
	KindMethodNotSupported  Kind = "method_not_supported"
	KindUserRejected        Kind = "user_rejected"
	KindParse               Kind = "parse"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindTransactionNotFound Kind = "transaction_not_found"
	KindBlockNotFound       Kind = "block_not_found"
	KindAllTransportsFailed Kind = "all_transports_failed"
	KindBase                Kind = "base"
)

// KindOf classifies err by the outermost error in its chain that belongs to the taxonomy.
func KindOf(err error) Kind {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k := kindOf(e); k != KindUnknown {
			return k
		}
	}
	return KindUnknown
}

func kindOf(err error) Kind {
	switch err.(type) {
	case *httpx.Error:
		return KindHTTPRequest
	case *httpx.TimeoutError:
		return KindTimeout
	case *SocketClosedError:
		return KindSocketClosed
	case *RPCRequestError:
		return KindRPCRequest
	case *MethodNotSupportedError:
		return KindMethodNotSupported
	case *UserRejectedError:
		return KindUserRejected
	case *ParseError:
		return KindParse
	case *InsufficientBalanceError:
		return KindInsufficientBalance
	case *TransactionNotFoundError:
		return KindTransactionNotFound
	case *BlockNotFoundError:
		return KindBlockNotFound
	case *AllTransportsFailedError:
		return KindAllTransportsFailed
	case *BaseError:
		return KindBase
	}
	return KindUnknown
}

// IsTerminal reports whether err reflects chain or account state. Such failures are neither
// retried nor handed to another provider.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindInsufficientBalance, KindTransactionNotFound, KindBlockNotFound:
		return true
	}
	return false
}

// SocketClosedError is returned for calls in flight when a websocket connection drops.
type SocketClosedError struct {
	URL   string
	Cause error
}

func (e *SocketClosedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("socket %s closed: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("socket %s closed", e.URL)
}

func (e *SocketClosedError) Unwrap() error { return e.Cause }

// RPCRequestError is a provider-reported error together with the request that caused it.
type RPCRequestError struct {
	Code    int
	Message string
	Data    any

	Method Method
	URL    string
	// Body is the request body that was sent, when there was one.
	Body []byte
}

func (e *RPCRequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rpc request %s failed: %s (code %d)", e.Method, e.Message, e.Code)
	if e.URL != "" {
		b.WriteString(" url=")
		b.WriteString(e.URL)
	}
	return b.String()
}

func (e *RPCRequestError) Payload() *RPCErrorPayload {
	return &RPCErrorPayload{Code: e.Code, Message: e.Message, Data: e.Data}
}

type MethodNotSupportedError struct {
	Method Method
	Cause  error
}

func (e *MethodNotSupportedError) Error() string {
	return fmt.Sprintf("method %q is not supported", string(e.Method))
}

func (e *MethodNotSupportedError) Unwrap() error { return e.Cause }

type UserRejectedError struct {
	Code  int
	Cause error
}

func (e *UserRejectedError) Error() string { return "user rejected the request" }

func (e *UserRejectedError) Unwrap() error { return e.Cause }

// ParseError reports malformed parameters or an undecodable result.
type ParseError struct {
	Method Method
	Field  string
	Cause  error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Method != "" {
		msg += " in " + string(e.Method)
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

type InsufficientBalanceError struct {
	Address  string
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: have %s, need %s", e.Address, bigString(e.Balance), bigString(e.Required))
}

type TransactionNotFoundError struct {
	TxID  string
	Cause error
}

func (e *TransactionNotFoundError) Error() string {
	if e.TxID == "" {
		return "transaction not found"
	}
	return fmt.Sprintf("transaction %s not found", e.TxID)
}

func (e *TransactionNotFoundError) Unwrap() error { return e.Cause }

type BlockNotFoundError struct {
	// Block is a hash or a height.
	Block string
	Cause error
}

func (e *BlockNotFoundError) Error() string {
	if e.Block == "" {
		return "block not found"
	}
	return fmt.Sprintf("block %s not found", e.Block)
}

func (e *BlockNotFoundError) Unwrap() error { return e.Cause }

// TransportFailure is one failed attempt recorded by a fallback chain.
type TransportFailure struct {
	TransportName string
	Err           error
	// Attempt is 1-based.
	Attempt int
}

type AllTransportsFailedError struct {
	Method        Method
	Params        any
	Failures      []TransportFailure
	TotalAttempts int
}

func (e *AllTransportsFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d transports failed for %s", e.TotalAttempts, e.Method)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; [%d] %s: %v", f.Attempt, f.TransportName, f.Err)
	}
	return b.String()
}

func (e *AllTransportsFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// BaseError wraps a failure that no other kind describes.
type BaseError struct {
	Message string
	Cause   error
}

func (e *BaseError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *BaseError) Unwrap() error { return e.Cause }

// ErrorFromPayload turns a provider failure into a Go error. Business codes become their
// terminal kinds; Bitcoin Core "not found" codes do too for the methods where they mean that.
func ErrorFromPayload(call RPCCall, p *RPCErrorPayload, url string, body []byte) error {
	if p == nil {
		return nil
	}
	rpcErr := &RPCRequestError{
		Code:    p.Code,
		Message: p.Message,
		Data:    p.Data,
		Method:  call.Method,
		URL:     url,
		Body:    body,
	}
	switch p.Code {
	case CodeInsufficientBalance:
		e := &InsufficientBalanceError{}
		if d, ok := p.Data.(InsufficientBalanceData); ok {
			e.Address, e.Balance, e.Required = d.Address, d.Balance, d.Required
		}
		return e
	case CodeTransactionNotFound:
		return &TransactionNotFoundError{TxID: dataString(p.Data, call), Cause: rpcErr}
	case CodeBlockNotFound:
		return &BlockNotFoundError{Block: dataString(p.Data, call), Cause: rpcErr}
	case CodeInvalidAddressOrKey, CodeInvalidParameter:
		switch call.Method {
		case MethodGetRawTransaction:
			if p.Code == CodeInvalidAddressOrKey {
				return &TransactionNotFoundError{TxID: firstParam(call), Cause: rpcErr}
			}
		case MethodGetBlock, MethodGetBlockHash, MethodGetBlockStats:
			return &BlockNotFoundError{Block: firstParam(call), Cause: rpcErr}
		}
	}
	return rpcErr
}

func dataString(data any, call RPCCall) string {
	if s, ok := data.(string); ok {
		return s
	}
	return firstParam(call)
}

func firstParam(call RPCCall) string {
	switch p := call.Params.(type) {
	case []any:
		if len(p) > 0 {
			return fmt.Sprint(p[0])
		}
	case TxIDParams:
		return p.TxID
	case *TxIDParams:
		return p.TxID
	}
	return ""
}

func bigString(v *big.Int) string {
	if v == nil {
		return "?"
	}
	return v.String()
}
