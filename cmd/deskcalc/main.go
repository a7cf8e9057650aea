// Package main is the entry point for the deskcalc command.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:          "deskcalc",
	Short:        "Desk calculator engine with CLI, terminal, web and gRPC front ends",
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("deskcalc version {{.Version}}\n")

	rootCmd.PersistentFlags().Bool("strict", false, "Treat unrecognized characters as errors (env DESKCALC_STRICT)")
	rootCmd.PersistentFlags().String("log-level", "", "Engine log level: debug, info, warn, error (env DESKCALC_LOG_LEVEL)")

	rootCmd.AddCommand(evalCmd, runCmd, serveCmd, tuiCmd, remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
