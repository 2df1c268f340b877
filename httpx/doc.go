// Package httpx executes single HTTP requests against block-explorer style JSON APIs:
// - safe, reusable transports with sane defaults
// - a hard per-request timeout that aborts the in-flight call
// - before/after hooks and RoundTripper middleware for logging/metrics
// - JSON decoding with a text fallback when the server omits or mislabels the content type
// - one error type (*Error) for every failure that is not a timeout
//
// Retries live in the request pipeline one layer up.
package httpx
