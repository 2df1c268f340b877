package bigmi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifinance/bigmi-sub000/internal/dedupe"
)

// RequestFunc performs one attempt of a call.
type RequestFunc func(ctx context.Context, call RPCCall) (any, error)

// RequestOptions tune one call made through a pipeline.
type RequestOptions struct {
	// Dedupe coalesces concurrent identical calls. getTransactions never participates.
	Dedupe bool
	// RetryCount overrides the pipeline attempt budget when > 0.
	RetryCount int
	// RetryDelay overrides the pipeline base backoff when > 0.
	RetryDelay time.Duration
}

type RequestOption func(*RequestOptions)

func WithDedupe() RequestOption {
	return func(o *RequestOptions) { o.Dedupe = true }
}

func WithRetryCount(n int) RequestOption {
	return func(o *RequestOptions) { o.RetryCount = n }
}

func WithRetryDelay(d time.Duration) RequestOption {
	return func(o *RequestOptions) { o.RetryDelay = d }
}

// RetryEvent describes a failed attempt that is about to be retried.
type RetryEvent struct {
	Method  Method
	Attempt int
	Err     error
	Delay   time.Duration
}

// PipelineConfig configures BuildRequest.
type PipelineConfig struct {
	// UID scopes dedupe keys to one client.
	UID string
	// Registry holds in-flight calls. Nil disables dedupe.
	Registry   *dedupe.Registry
	Methods    MethodFilter
	RetryCount int
	RetryDelay time.Duration

	// Sleep replaces the backoff timer; tests use it to observe delays.
	Sleep   SleepFunc
	Logger  *zerolog.Logger
	OnRetry func(RetryEvent)
}

// Requester is a call entry point with the pipeline applied.
type Requester func(ctx context.Context, call RPCCall, opts ...RequestOption) (any, error)

// BuildRequest wraps fn with method filtering, parameter validation, dedupe and retry.
// Every error it returns belongs to the taxonomy.
func BuildRequest(fn RequestFunc, cfg PipelineConfig) Requester {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}

	return func(ctx context.Context, call RPCCall, opts ...RequestOption) (any, error) {
		var o RequestOptions
		for _, opt := range opts {
			if opt != nil {
				opt(&o)
			}
		}
		if !cfg.Methods.Allows(call.Method) {
			return nil, &MethodNotSupportedError{Method: call.Method}
		}
		if err := call.Validate(); err != nil {
			return nil, err
		}

		attempts := cfg.RetryCount
		if o.RetryCount > 0 {
			attempts = o.RetryCount
		}
		base := cfg.RetryDelay
		if o.RetryDelay > 0 {
			base = o.RetryDelay
		}

		run := func(ctx context.Context) (any, error) {
			var last error
			for attempt := 0; attempt < attempts; attempt++ {
				v, err := fn(ctx, call)
				if err == nil {
					return v, nil
				}
				last = err
				if attempt == attempts-1 || !ShouldRetry(err) {
					break
				}
				d := RetryDelay(attempt, err, base)
				cfg.Logger.Debug().
					Str("method", string(call.Method)).
					Int("attempt", attempt+1).
					Dur("delay", d).
					Err(err).
					Msg("retrying request")
				if cfg.OnRetry != nil {
					cfg.OnRetry(RetryEvent{Method: call.Method, Attempt: attempt + 1, Err: err, Delay: d})
				}
				if serr := cfg.Sleep(ctx, d); serr != nil {
					last = serr
					break
				}
			}
			return nil, classify(last)
		}

		if !o.Dedupe || cfg.Registry == nil || call.Method == MethodGetTransactions {
			return run(ctx)
		}
		key, err := DedupeKey(cfg.UID, call)
		if err != nil {
			return run(ctx)
		}
		v, err, shared := cfg.Registry.Do(ctx, key, run)
		if shared {
			cfg.Logger.Debug().Str("method", string(call.Method)).Msg("joined in-flight request")
		}
		// A waiter whose own context ended gets the bare context error back.
		return v, classify(err)
	}
}

// DedupeKey derives the in-flight key of call for the client identified by uid.
func DedupeKey(uid string, call RPCCall) (string, error) {
	params, err := json.Marshal(call.Params)
	if err != nil {
		return "", err
	}
	return dedupe.Key([]byte(uid), []byte(call.Method), params), nil
}

// classify maps the final error of a call onto the taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if rpc, ok := err.(*RPCRequestError); ok {
		switch rpc.Code {
		case CodeMethodNotSupported:
			return &MethodNotSupportedError{Method: rpc.Method, Cause: err}
		case CodeUserRejected, CodeWalletConnectRejects:
			return &UserRejectedError{Code: rpc.Code, Cause: err}
		}
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &BaseError{Message: err.Error(), Cause: err}
}

// IsCanceled reports whether err stems from the caller's context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
