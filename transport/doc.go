// Package transport provides the bigmi.Transport implementations: block-explorer HTTP
// transports with raw JSON-RPC fallback, an ordered fallback chain, a wallet transport for
// PSBT signing, and a websocket JSON-RPC transport.
package transport
