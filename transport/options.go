package transport

import (
	"time"

	"github.com/rs/zerolog"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/version"
)

// Option configures a transport. Options a transport does not use are ignored.
type Option func(*options)

type options struct {
	key        string
	name       string
	apiKey     string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	methods    bigmi.MethodFilter

	httpOptions []httpx.Option
	middleware  []httpx.Middleware
	before      []httpx.BeforeHook
	after       []httpx.AfterHook

	logger *zerolog.Logger

	onFailure func(FailureEvent)
}

func defaultOptions() options {
	nop := zerolog.Nop()
	return options{
		timeout:    httpx.DefaultTimeout,
		retryCount: bigmi.DefaultRetryCount,
		retryDelay: bigmi.DefaultRetryDelay,
		logger:     &nop,
	}
}

func apply(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithKey(key string) Option { return func(o *options) { o.key = key } }

func WithName(name string) Option { return func(o *options) { o.name = name } }

func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithTimeout bounds one HTTP request or websocket round-trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetryCount sets the attempt budget the client pipeline uses for this transport.
func WithRetryCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retryCount = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

func WithMethods(f bigmi.MethodFilter) Option { return func(o *options) { o.methods = f } }

func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(o *options) { o.httpOptions = append(o.httpOptions, opts...) }
}

func WithMiddleware(mws ...httpx.Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mws...) }
}

// WithOnFetchRequest runs before every HTTP request and may replace it.
func WithOnFetchRequest(h httpx.BeforeHook) Option {
	return func(o *options) { o.before = append(o.before, h) }
}

// WithOnFetchResponse runs after every HTTP round-trip.
func WithOnFetchResponse(h httpx.AfterHook) Option {
	return func(o *options) { o.after = append(o.after, h) }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFailureObserver is called by a fallback chain for every transport that failed.
func WithFailureObserver(fn func(FailureEvent)) Option {
	return func(o *options) { o.onFailure = fn }
}

func (o options) config(defKey, defName, typ string) bigmi.TransportConfig {
	key, name := o.key, o.name
	if key == "" {
		key = defKey
	}
	if name == "" {
		name = defName
	}
	return bigmi.TransportConfig{
		Key:        key,
		Name:       name,
		Type:       typ,
		RetryCount: o.retryCount,
		RetryDelay: o.retryDelay,
		Timeout:    o.timeout,
		Methods:    o.methods,
	}
}

func (o options) executor() *httpx.Client {
	hopts := append([]httpx.Option{
		httpx.WithTimeout(o.timeout),
		httpx.WithUserAgent(version.UserAgent()),
	}, o.httpOptions...)
	c := httpx.New(hopts...)
	c.WithMiddleware(o.middleware...)
	c.WithHooks(o.before, o.after)
	return c
}
