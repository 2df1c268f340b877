package bigmi

import (
	"fmt"
	"math/big"
)

// RPC error codes. Negative codes below -32000 follow JSON-RPC and EIP-1193, small negative
// codes follow Bitcoin Core, 4001 and 5000 are wallet user-rejection conventions.
// -32010 .. -32012 carry business results produced by provider adapters.
const (
	CodeMisc                 = -1
	CodeInvalidAddressOrKey  = -5
	CodeInvalidParameter     = -8
	CodeVerifyRejected       = -26
	CodeParse                = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternal             = -32603
	CodeResourceNotFound     = -32001
	CodeMethodNotSupported   = -32004
	CodeLimitExceeded        = -32005
	CodeInsufficientBalance  = -32010
	CodeTransactionNotFound  = -32011
	CodeBlockNotFound        = -32012
	CodeUserRejected         = 4001
	CodeWalletConnectRejects = 5000
)

// RPCErrorPayload is the error wire shape {code, message, data?}.
type RPCErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (p *RPCErrorPayload) Error() string {
	return fmt.Sprintf("rpc error %d: %s", p.Code, p.Message)
}

// Result is what provider adapters return: a value, or an anticipated provider failure.
// Unexpected failures travel as Go errors next to it.
type Result[T any] struct {
	Value T
	Err   *RPCErrorPayload
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func Fail[T any](code int, message string, data any) Result[T] {
	return Result[T]{Err: &RPCErrorPayload{Code: code, Message: message, Data: data}}
}

func (r Result[T]) Failed() bool { return r.Err != nil }

// Any erases the value type.
func (r Result[T]) Any() Result[any] {
	if r.Err != nil {
		return Result[any]{Err: r.Err}
	}
	return Result[any]{Value: r.Value}
}

// InsufficientBalanceData is the Data of a CodeInsufficientBalance failure.
type InsufficientBalanceData struct {
	Address  string   `json:"address"`
	Balance  *big.Int `json:"balance"`
	Required *big.Int `json:"required"`
}

// InsufficientBalance builds the terminal failure returned when an address cannot cover minValue.
func InsufficientBalance[T any](address string, balance, required *big.Int) Result[T] {
	return Fail[T](CodeInsufficientBalance, "insufficient balance", InsufficientBalanceData{
		Address:  address,
		Balance:  balance,
		Required: required,
	})
}

func TransactionNotFound[T any](txID string) Result[T] {
	return Fail[T](CodeTransactionNotFound, "transaction not found", txID)
}

func BlockNotFound[T any](block string) Result[T] {
	return Fail[T](CodeBlockNotFound, "block not found", block)
}
