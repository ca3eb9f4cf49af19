// Command splitledger runs ledger scenarios and inspects the edit journal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/splitledger/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "splitledger:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
