package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/actions"
	"github.com/lifinance/bigmi-sub000/internal/units"
	"github.com/lifinance/bigmi-sub000/providers"
	"github.com/lifinance/bigmi-sub000/transport"
	"github.com/lifinance/bigmi-sub000/version"
)

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			bal, err := actions.GetBalance(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"address": args[0], "sats": bal, "btc": units.SatsToBTC(bal)}
			return a.printer.print(out, func(t *uitable.Table) {
				t.AddRow("ADDRESS", "SATS", "BTC")
				t.AddRow(args[0], bal.String(), units.SatsToBTC(bal))
			})
		},
	}
}

func (a *app) utxosCommand() *cobra.Command {
	var (
		minValue int64
		minBTC   string
	)
	cmd := &cobra.Command{
		Use:   "utxos <address>",
		Short: "List unspent outputs of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minBTC != "" {
				sats, err := units.BTCToSats(minBTC)
				if err != nil {
					return err
				}
				minValue = sats.Int64()
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			utxos, err := actions.GetUTXOs(cmd.Context(), c, bigmi.UTXOParams{Address: args[0], MinValue: minValue})
			if err != nil {
				return err
			}
			return a.printer.print(utxos, func(t *uitable.Table) {
				t.AddRow("TXID", "VOUT", "VALUE", "CONFIRMATIONS")
				for _, u := range utxos {
					t.AddRow(u.TxID, u.Vout, u.Value, u.Confirmations)
				}
				t.AddRow("", "", bigmi.TotalValue(utxos).String(), "")
			})
		},
	}
	cmd.Flags().Int64Var(&minValue, "min-value", 0, "stop once the outputs cover this many satoshis")
	cmd.Flags().StringVar(&minBTC, "min-btc", "", "like --min-value, in BTC (e.g. 0.0015)")
	cmd.MarkFlagsMutuallyExclusive("min-value", "min-btc")
	return cmd
}

func (a *app) txsCommand() *cobra.Command {
	var (
		p   bigmi.TransactionsParams
		all bool
	)
	cmd := &cobra.Command{
		Use:   "txs <address>",
		Short: "List the transaction history of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			p.Address = args[0]
			var txs []bigmi.Transaction
			if all {
				txs, err = actions.GetAllTransactions(cmd.Context(), c, p)
			} else {
				var s *bigmi.PageStream
				s, err = actions.GetTransactions(cmd.Context(), c, p)
				if err == nil {
					var page bigmi.TransactionPage
					page, err = s.Recv(cmd.Context())
					s.Close()
					txs = page.Transactions
				}
			}
			if err != nil {
				return err
			}
			return a.printer.print(txs, func(t *uitable.Table) {
				t.AddRow("TXID", "HEIGHT", "CONFIRMED", "FEE")
				for _, tx := range txs {
					t.AddRow(tx.TxID, tx.BlockHeight, tx.IsConfirmed, tx.Fee)
				}
			})
		},
	}
	cmd.Flags().IntVar(&p.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&p.Offset, "offset", 0, "number of transactions to skip")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	return cmd
}

func (a *app) feeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fee <txid>",
		Short: "Show the fee paid by a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			fee, err := actions.GetTransactionFee(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			return a.printer.print(map[string]any{"txId": args[0], "fee": fee}, func(t *uitable.Table) {
				t.AddRow("TXID", "FEE")
				t.AddRow(args[0], fee.String())
			})
		},
	}
}

func (a *app) txCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tx <txid>",
		Short: "Show a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			tx, err := actions.GetTransaction(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			return a.printer.print(tx, func(t *uitable.Table) {
				t.AddRow("txId:", tx.TxID)
				t.AddRow("blockHeight:", tx.BlockHeight)
				t.AddRow("confirmations:", tx.Confirmations)
				t.AddRow("fee:", tx.Fee)
				for i, in := range tx.Inputs {
					t.AddRow(fmt.Sprintf("in[%d]:", i), fmt.Sprintf("%s:%d %s %d", in.TxID, in.Vout, in.Address, in.Value))
				}
				for i, o := range tx.Outputs {
					t.AddRow(fmt.Sprintf("out[%d]:", i), fmt.Sprintf("%s %d", o.Address, o.Value))
				}
			})
		},
	}
}

func (a *app) rawTxCommand() *cobra.Command {
	var blockHash string
	cmd := &cobra.Command{
		Use:   "raw-tx <txid>",
		Short: "Show a transaction as reported by a JSON-RPC node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			raw, err := actions.GetRawTransaction(cmd.Context(), c, args[0], blockHash)
			if err != nil {
				return err
			}
			outs := actions.RawOutputs(raw)
			out := map[string]any{
				"txId":          raw.Txid,
				"blockHash":     raw.BlockHash,
				"confirmations": raw.Confirmations,
				"outputs":       outs,
			}
			return a.printer.print(out, func(t *uitable.Table) {
				t.AddRow("txId:", raw.Txid)
				t.AddRow("confirmations:", raw.Confirmations)
				for _, o := range outs {
					t.AddRow(fmt.Sprintf("out[%d]:", o.N), fmt.Sprintf("%s %d", o.Address, o.Value))
				}
			})
		},
	}
	cmd.Flags().StringVar(&blockHash, "block-hash", "", "block to look the transaction up in")
	return cmd
}

func (a *app) xpubCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "xpub <xpub>",
		Short: "List the used addresses of an extended public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			acct, err := actions.GetXPubAddresses(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			return a.printer.print(acct, func(t *uitable.Table) {
				t.AddRow("PATH", "ADDRESS", "BALANCE")
				for _, addr := range acct.Addresses {
					t.AddRow(addr.Path, addr.Address, addr.Balance)
				}
				t.AddRow("", "total", acct.Balance)
			})
		},
	}
}

func (a *app) blockCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block-count",
		Short: "Show the height of the chain tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			h, err := actions.GetBlockCount(cmd.Context(), c)
			if err != nil {
				return err
			}
			return a.printer.print(map[string]int64{"blockCount": h}, func(t *uitable.Table) {
				t.AddRow(strconv.FormatInt(h, 10))
			})
		},
	}
}

func (a *app) broadcastCommand() *cobra.Command {
	var (
		wait     int64
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "broadcast <hex>",
		Short: "Broadcast a signed raw transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			txid, err := actions.SendRawTransaction(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"txId": txid}
			if wait > 0 {
				tx, err := actions.WaitForTransaction(cmd.Context(), c, txid,
					actions.WithConfirmations(wait),
					actions.WithPollInterval(interval),
					actions.WithWaitTimeout(timeout))
				if err != nil {
					return err
				}
				out["confirmations"] = tx.Confirmations
				out["blockHash"] = tx.BlockHash
			}
			return a.printer.print(out, func(t *uitable.Table) {
				t.AddRow("txId:", txid)
				if v, ok := out["confirmations"]; ok {
					t.AddRow("confirmations:", v)
				}
			})
		},
	}
	cmd.Flags().Int64Var(&wait, "wait", 0, "wait for this many confirmations")
	cmd.Flags().DurationVar(&interval, "poll-interval", actions.DefaultPollInterval, "confirmation polling interval")
	cmd.Flags().DurationVar(&timeout, "wait-timeout", time.Hour, "give up waiting after this long")
	return cmd
}

type providerInfo struct {
	Key     providers.Key  `json:"key" yaml:"key"`
	BaseURL string         `json:"baseUrl" yaml:"baseUrl"`
	Methods []bigmi.Method `json:"methods" yaml:"methods"`
}

func newProvidersCommand(p *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported providers and the methods they answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []providerInfo
			for _, key := range providers.Keys() {
				ad, err := transport.AdapterFor(key)
				if err != nil {
					return err
				}
				list = append(list, providerInfo{Key: key, BaseURL: ad.DefaultBaseURL(), Methods: providers.Capabilities(ad)})
			}
			return p.print(list, func(t *uitable.Table) {
				t.AddRow("KEY", "BASE URL", "METHODS")
				for _, info := range list {
					names := make([]string, 0, len(info.Methods))
					for _, m := range info.Methods {
						names = append(names, m.String())
					}
					t.AddRow(info.Key, info.BaseURL, strings.Join(names, ","))
				}
			})
		},
	}
}

func newVersionCommand(p *printer) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if short {
				_, err := fmt.Fprintln(p.out, info.String())
				return err
			}
			if p.format == formatTable {
				_, err := io.WriteString(p.out, info.Text()+"\n")
				return err
			}
			return p.print(info, nil)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
