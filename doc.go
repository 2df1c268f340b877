// Package bigmi is a resilient data-access layer for UTXO blockchains.
//
// Every call goes through a Client, which applies a request pipeline (method filtering,
// parameter validation, deduplication, retry with backoff, and error classification) in
// front of a Transport. Transports talk to block explorers through provider adapters, to a
// raw JSON-RPC endpoint, to a wallet, or to an ordered chain of other transports.
//
// Canonical results are UTXO, *big.Int balances, TransactionPage (streamed through
// PageStream), XPubAccount, and btcjson result shapes for the raw node methods.
package bigmi
