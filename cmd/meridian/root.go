package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Meridian - inference gateway resilience and accounting core",
	Long: `Meridian is the resilience and accounting core of an inference gateway
fronting heterogeneous model providers.

It provides:
  - Multi-tier rate limiting per client key
  - Per-(provider, model) circuit breaking with emergency fallback
  - Ordered failover routing across provider candidates
  - Model catalog resolution with hot reload and pricing
  - Credit ledger with compare-and-swap debits and an audit trail`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
