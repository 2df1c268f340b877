package bigmi

import (
	"context"
	"time"
)

// Transport answers canonical method calls. Implementations perform a single attempt;
// retry and dedupe are applied by the Client in front of them.
type Transport interface {
	Config() TransportConfig
	Request(ctx context.Context, call RPCCall) (any, error)
}

// TransportConfig describes a transport and the pipeline settings a Client applies to it.
type TransportConfig struct {
	Key  string
	Name string
	// Type is the transport family: "http", "fallback", "wallet", "websocket".
	Type string

	RetryCount int
	RetryDelay time.Duration
	Timeout    time.Duration
	Methods    MethodFilter
}

// TransportFunc adapts a function to a Transport.
type TransportFunc struct {
	Cfg TransportConfig
	Fn  RequestFunc
}

func (t TransportFunc) Config() TransportConfig { return t.Cfg }

func (t TransportFunc) Request(ctx context.Context, call RPCCall) (any, error) {
	return t.Fn(ctx, call)
}
