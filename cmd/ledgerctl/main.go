// Command ledgerctl imports ledgers into a local SQLite file and prints
// financial reports from it.
package main

import (
	"os"

	"github.com/ledgerbook/ledgerbook/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
