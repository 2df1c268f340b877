package actions

import (
	"context"
	"math/big"

	bigmi "github.com/lifinance/bigmi-sub000"
)

// Member names added by PublicActions and WalletActions.
const (
	MemberGetBalance         = "getBalance"
	MemberGetUTXOs           = "getUTXOs"
	MemberGetTransactions    = "getTransactions"
	MemberGetTransactionFee  = "getTransactionFee"
	MemberGetXPubAddresses   = "getXPubAddresses"
	MemberGetTransaction     = "getTransaction"
	MemberGetBlockCount      = "getBlockCount"
	MemberGetBlockHash       = "getBlockHash"
	MemberGetBlockStats      = "getBlockStats"
	MemberGetRawTransaction  = "getRawTransaction"
	MemberSendRawTransaction = "sendRawTransaction"
	MemberWaitForTransaction = "waitForTransaction"
	MemberSignPsbt           = "signPsbt"
)

// Member function types, for use with bigmi.Member.
type (
	BalanceFunc        func(ctx context.Context, address string) (*big.Int, error)
	UTXOsFunc          func(ctx context.Context, p bigmi.UTXOParams) ([]bigmi.UTXO, error)
	TransactionsFunc   func(ctx context.Context, p bigmi.TransactionsParams) (*bigmi.PageStream, error)
	TransactionFeeFunc func(ctx context.Context, txID string) (*big.Int, error)
	XPubAddressesFunc  func(ctx context.Context, xpub string) (bigmi.XPubAccount, error)
	TransactionFunc    func(ctx context.Context, txID string) (bigmi.Transaction, error)
	BlockCountFunc     func(ctx context.Context) (int64, error)
	BlockHashFunc      func(ctx context.Context, height int64) (string, error)
	BlockStatsFunc     func(ctx context.Context, hashOrHeight any, stats []string) (bigmi.BlockStats, error)
	RawTransactionFunc func(ctx context.Context, txID, blockHash string) (bigmi.RawTransaction, error)
	SendRawTxFunc      func(ctx context.Context, hexTx string) (string, error)
	WaitForTxFunc      func(ctx context.Context, txID string, opts ...WaitOption) (bigmi.RawTransaction, error)
	SignPsbtFunc       func(ctx context.Context, p bigmi.SignPsbtParams) (string, error)
)

// PublicActions adds the read and broadcast actions, bound to the client being extended.
func PublicActions(c *bigmi.Client) map[string]any {
	return map[string]any{
		MemberGetBalance: BalanceFunc(func(ctx context.Context, address string) (*big.Int, error) {
			return GetBalance(ctx, c, address)
		}),
		MemberGetUTXOs: UTXOsFunc(func(ctx context.Context, p bigmi.UTXOParams) ([]bigmi.UTXO, error) {
			return GetUTXOs(ctx, c, p)
		}),
		MemberGetTransactions: TransactionsFunc(func(ctx context.Context, p bigmi.TransactionsParams) (*bigmi.PageStream, error) {
			return GetTransactions(ctx, c, p)
		}),
		MemberGetTransactionFee: TransactionFeeFunc(func(ctx context.Context, txID string) (*big.Int, error) {
			return GetTransactionFee(ctx, c, txID)
		}),
		MemberGetXPubAddresses: XPubAddressesFunc(func(ctx context.Context, xpub string) (bigmi.XPubAccount, error) {
			return GetXPubAddresses(ctx, c, xpub)
		}),
		MemberGetTransaction: TransactionFunc(func(ctx context.Context, txID string) (bigmi.Transaction, error) {
			return GetTransaction(ctx, c, txID)
		}),
		MemberGetBlockCount: BlockCountFunc(func(ctx context.Context) (int64, error) {
			return GetBlockCount(ctx, c)
		}),
		MemberGetBlockHash: BlockHashFunc(func(ctx context.Context, height int64) (string, error) {
			return GetBlockHash(ctx, c, height)
		}),
		MemberGetBlockStats: BlockStatsFunc(func(ctx context.Context, hashOrHeight any, stats []string) (bigmi.BlockStats, error) {
			return GetBlockStats(ctx, c, hashOrHeight, stats)
		}),
		MemberGetRawTransaction: RawTransactionFunc(func(ctx context.Context, txID, blockHash string) (bigmi.RawTransaction, error) {
			return GetRawTransaction(ctx, c, txID, blockHash)
		}),
		MemberSendRawTransaction: SendRawTxFunc(func(ctx context.Context, hexTx string) (string, error) {
			return SendRawTransaction(ctx, c, hexTx)
		}),
		MemberWaitForTransaction: WaitForTxFunc(func(ctx context.Context, txID string, opts ...WaitOption) (bigmi.RawTransaction, error) {
			return WaitForTransaction(ctx, c, txID, opts...)
		}),
	}
}

// WalletActions adds signPsbt.
func WalletActions(c *bigmi.Client) map[string]any {
	return map[string]any{
		MemberSignPsbt: SignPsbtFunc(func(ctx context.Context, p bigmi.SignPsbtParams) (string, error) {
			return SignPsbt(ctx, c, p)
		}),
	}
}
