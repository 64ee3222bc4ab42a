package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nsc-hq/arbiter/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - deterministic escalation decisions for supervised intents",
	Long: `Arbiter decides, per batch of signals, whether each supervised intent
needs an escalation.

It provides:
  - Weighted evidence aggregation with per-source weight profiles
  - Freeze detection (repetition, stalls, boilerplate) with hysteresis
  - A sharded supervisor that is deterministic for any shard count
  - ARB1 snapshots of hysteresis state, stored in memory or SQLite

Without --config the built-in defaults are used. ARBITER_* environment
variables override both.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// loadConfig loads the configuration selected by --config, with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.FromEnv()
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}
