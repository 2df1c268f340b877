// Package cli implements the bigmi command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/config"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
	"github.com/lifinance/bigmi-sub000/transport"
)

type app struct {
	configPath string
	providers  []string
	rpcURL     string
	logLevel   string
	printer    printer
	errOut     io.Writer
}

// NewRootCommand builds the bigmi command tree writing results to out and logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{printer: printer{out: out, format: formatTable}, errOut: errOut}

	root := &cobra.Command{
		Use:           "bigmi",
		Short:         "Query UTXO chains through block explorers and JSON-RPC nodes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.printer.validate()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml); BIGMI_* env vars override it")
	f.StringSliceVarP(&a.providers, "provider", "p", nil, "provider in fallback order, as key or key=baseURL (overrides the config file)")
	f.StringVar(&a.rpcURL, "rpc-url", "", "JSON-RPC node appended after the providers")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVarP(&a.printer.format, "output", "o", formatTable, "output format (table, json, yaml)")

	root.AddCommand(
		a.balanceCommand(),
		a.utxosCommand(),
		a.txsCommand(),
		a.feeCommand(),
		a.txCommand(),
		a.rawTxCommand(),
		a.xpubCommand(),
		a.blockCountCommand(),
		a.broadcastCommand(),
		newProvidersCommand(&a.printer),
		newVersionCommand(&a.printer),
	)
	return root
}

// client 根据配置文件、环境变量与命令行参数构建客户端
func (a *app) client() (*bigmi.Client, error) {
	cfg, err := config.LoadFile(a.configPath, config.WithoutWatch[config.File]())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	file := cfg.Get()

	if len(a.providers) > 0 {
		file.Providers = file.Providers[:0]
		for _, entry := range a.providers {
			key, baseURL, _ := strings.Cut(entry, "=")
			file.Providers = append(file.Providers, config.Provider{Key: key, BaseURL: baseURL})
		}
	}
	if a.rpcURL != "" {
		file.RPCURL = a.rpcURL
	}
	if len(file.Providers) == 0 && file.RPCURL == "" {
		file.Providers = []config.Provider{{Key: string(providers.Mempool)}}
	}
	if a.logLevel != "" {
		file.LogLevel = a.logLevel
	}

	level, err := zerolog.ParseLevel(file.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: a.errOut}).Level(level).With().Timestamp().Logger()

	t, err := file.Transport(
		transport.WithLogger(&logger),
		transport.WithHTTPOptions(httpx.WithRequestID("X-Request-ID", nil)),
	)
	if err != nil {
		return nil, err
	}
	return bigmi.NewClient(t, bigmi.WithLogger(&logger))
}
