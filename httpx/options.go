package httpx

import (
	"net/http"
	"time"
)

type Option interface{ apply(*Config) }

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.Timeout = d })
}

func WithTransport(rt http.RoundTripper) Option {
	return optionFunc(func(c *Config) { c.Transport = rt })
}

// WithRateLimiter throttles every request of the client through rl.
func WithRateLimiter(rl RateLimiter) Option {
	return optionFunc(func(c *Config) { c.RateLimiter = rl })
}

func WithDefaultHeader(key, value string) Option {
	return optionFunc(func(c *Config) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(http.Header)
		}
		c.DefaultHeaders.Set(key, value)
	})
}

func WithUserAgent(ua string) Option {
	return optionFunc(func(c *Config) { c.UserAgent = ua })
}

func WithMaxErrorBodyBytes(n int64) Option {
	return optionFunc(func(c *Config) { c.MaxErrorBodyBytes = n })
}

// WithRequestID sets header on every request that lacks it, using gen (or DefaultRequestID).
func WithRequestID(header string, gen RequestIDFunc) Option {
	return optionFunc(func(c *Config) { c.RequestID = RequestIDConfig{Header: header, New: gen} })
}
