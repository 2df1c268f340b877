package bigmi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lifinance/bigmi-sub000/httpx"
)

const (
	// DefaultRetryCount is the total attempt budget of one call, the first attempt included.
	DefaultRetryCount = 3
	DefaultRetryDelay = 150 * time.Millisecond
)

var retryableStatus = map[int]bool{
	http.StatusForbidden:             true,
	http.StatusRequestTimeout:        true,
	http.StatusRequestEntityTooLarge: true,
	http.StatusTooManyRequests:       true,
	http.StatusInternalServerError:   true,
	http.StatusBadGateway:            true,
	http.StatusServiceUnavailable:    true,
	http.StatusGatewayTimeout:        true,
}

// ShouldRetry classifies a failed attempt.
//
// Provider errors are retried only for the unknown (-1) and internal error codes, HTTP errors
// only for the transient statuses. Business and pipeline failures are never retried, nor is
// caller cancellation. Anything unclassified is retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var agg *AllTransportsFailedError
	if errors.As(err, &agg) {
		for _, f := range agg.Failures {
			if ShouldRetry(f.Err) {
				return true
			}
		}
		return false
	}
	switch KindOf(err) {
	case KindMethodNotSupported, KindUserRejected, KindParse,
		KindInsufficientBalance, KindTransactionNotFound, KindBlockNotFound:
		return false
	case KindRPCRequest:
		var rpc *RPCRequestError
		errors.As(err, &rpc)
		return rpc.Code == CodeMisc || rpc.Code == CodeInternal
	case KindHTTPRequest:
		he, _ := httpx.AsError(err)
		if he.StatusCode == 0 {
			return !IsCanceled(he.Cause)
		}
		return retryableStatus[he.StatusCode]
	case KindTimeout, KindSocketClosed:
		return true
	}
	return !IsCanceled(err)
}

// RetryDelay is the wait after failed attempt number attempt (0-based). An integer Retry-After
// header on an HTTP error wins; otherwise the delay is 2^attempt * base.
func RetryDelay(attempt int, err error, base time.Duration) time.Duration {
	if he, ok := httpx.AsError(err); ok {
		if d, ok := he.RetryAfter(); ok {
			return d
		}
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return (1 << attempt) * base
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
