package transport

import (
	"context"
	"errors"
	"fmt"

	bigmi "github.com/lifinance/bigmi-sub000"
)

var _ bigmi.Transport = (*FallbackTransport)(nil)

// FailureEvent describes one transport of a fallback chain failing a call.
type FailureEvent struct {
	Method    bigmi.Method
	Transport string
	Attempt   int
	Err       error
	// Terminal is set when the failure ended the chain.
	Terminal bool
}

// FallbackTransport tries its transports one after another in order. The first success
// wins; a business-terminal failure ends the chain at once; otherwise every failure is
// recorded and AllTransportsFailedError is returned when none succeeds.
type FallbackTransport struct {
	cfg        bigmi.TransportConfig
	transports []bigmi.Transport
	opts       options
}

func Fallback(transports []bigmi.Transport, opts ...Option) (*FallbackTransport, error) {
	if len(transports) == 0 {
		return nil, errors.New("transport: fallback needs at least one transport")
	}
	for i, t := range transports {
		if t == nil {
			return nil, fmt.Errorf("transport: fallback transport %d is nil", i)
		}
	}
	o := apply(opts)
	return &FallbackTransport{
		cfg:        o.config("fallback", "Fallback", "fallback"),
		transports: append([]bigmi.Transport(nil), transports...),
		opts:       o,
	}, nil
}

func (f *FallbackTransport) Config() bigmi.TransportConfig { return f.cfg }

// Transports returns the chain in order.
func (f *FallbackTransport) Transports() []bigmi.Transport {
	return append([]bigmi.Transport(nil), f.transports...)
}

func (f *FallbackTransport) Request(ctx context.Context, call bigmi.RPCCall) (any, error) {
	if !f.cfg.Methods.Allows(call.Method) {
		return nil, &bigmi.MethodNotSupportedError{Method: call.Method}
	}
	var failures []bigmi.TransportFailure
	for i, t := range f.transports {
		name := transportName(t, i)
		v, err := t.Request(ctx, call)
		if err == nil {
			if len(failures) > 0 {
				f.opts.logger.Debug().Str("method", string(call.Method)).Str("transport", name).Int("attempt", i+1).Msg("fallback transport succeeded")
			}
			return v, nil
		}
		terminal := bigmi.IsTerminal(err)
		f.observe(FailureEvent{Method: call.Method, Transport: name, Attempt: i + 1, Err: err, Terminal: terminal})
		if terminal {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		f.opts.logger.Warn().Str("method", string(call.Method)).Str("transport", name).Int("attempt", i+1).Err(err).Msg("transport failed, trying next")
		failures = append(failures, bigmi.TransportFailure{TransportName: name, Err: err, Attempt: i + 1})
	}
	return nil, &bigmi.AllTransportsFailedError{
		Method:        call.Method,
		Params:        call.Params,
		Failures:      failures,
		TotalAttempts: len(failures),
	}
}

func (f *FallbackTransport) observe(e FailureEvent) {
	if f.opts.onFailure != nil {
		f.opts.onFailure(e)
	}
}

func transportName(t bigmi.Transport, i int) string {
	cfg := t.Config()
	switch {
	case cfg.Name != "":
		return cfg.Name
	case cfg.Key != "":
		return cfg.Key
	}
	return fmt.Sprintf("transport-%d", i)
}
