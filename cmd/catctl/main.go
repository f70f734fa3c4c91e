// Command catctl is the operator CLI for the adaptive testing engine: seed
// and inspect the item bank, run a simulated quiz session end to end, and
// dump or verify a per-item LinUCB model blob.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catctl",
	Short: "Operate the adaptive testing engine",
	Long: `catctl drives the CAT engine from the command line: seed an item
bank, run a simulated learner through a quiz session, inspect a session's
mastery state, and dump or verify a per-item LinUCB model blob.`,
}

func init() {
	rootCmd.PersistentFlags().String("db", "catengine.db", "path to the SQLite database file")
	rootCmd.PersistentFlags().String("config", "", "path to an optional TOML config file overriding defaults")
}
