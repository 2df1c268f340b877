package actions

import (
	"context"
	"fmt"
	"time"

	bigmi "github.com/lifinance/bigmi-sub000"
)

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultConfirmations = 1
)

type waitOptions struct {
	confirmations int64
	interval      time.Duration
	timeout       time.Duration
	onPoll        func(bigmi.RawTransaction, error)
}

// WaitOption configures WaitForTransaction.
type WaitOption func(*waitOptions)

// WithConfirmations sets how many confirmations to wait for. Zero returns as soon as the
// transaction is seen, in the mempool or in a block.
func WithConfirmations(n int64) WaitOption {
	return func(o *waitOptions) {
		if n >= 0 {
			o.confirmations = n
		}
	}
}

func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithWaitTimeout bounds the whole wait. The caller context still applies.
func WithWaitTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.timeout = d }
}

// WithPollObserver is called after every poll.
func WithPollObserver(fn func(tx bigmi.RawTransaction, err error)) WaitOption {
	return func(o *waitOptions) { o.onPoll = fn }
}

// WaitForTransaction polls getrawtransaction until txID has the requested number of
// confirmations. A transaction that is not known yet is polled again; any other failure
// ends the wait.
func WaitForTransaction(ctx context.Context, c *bigmi.Client, txID string, opts ...WaitOption) (bigmi.RawTransaction, error) {
	o := waitOptions{confirmations: DefaultConfirmations, interval: DefaultPollInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		tx, err := GetRawTransaction(ctx, c, txID, "")
		if o.onPoll != nil {
			o.onPoll(tx, err)
		}
		switch {
		case err == nil:
			if int64(tx.Confirmations) >= o.confirmations {
				return tx, nil
			}
		case bigmi.KindOf(err) == bigmi.KindTransactionNotFound:
		default:
			return bigmi.RawTransaction{}, err
		}

		select {
		case <-ctx.Done():
			return bigmi.RawTransaction{}, fmt.Errorf("waiting for transaction %s: %w", txID, ctx.Err())
		case <-ticker.C:
		}
	}
}
