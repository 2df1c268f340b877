// Package actions wraps the canonical methods of a bigmi.Client in typed functions.
//
// Every action goes through the client pipeline, so retries, dedupe and error
// classification apply as for raw Client.Request calls. PublicActions and WalletActions
// expose the same functions as named members for Client.Extend.
package actions
