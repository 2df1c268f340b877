// Command bigmi queries UTXO chains through the configured block explorers.
package main

import (
	"os"

	"github.com/lifinance/bigmi-sub000/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
