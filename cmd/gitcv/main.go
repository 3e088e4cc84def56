// Package main provides the gitcv command line interface.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gitcv",
	Short: "Generate a tailored LaTeX resume from a GitHub profile",
	Long: `gitcv collects the repositories of a GitHub account, ranks them against a
job posting, and builds a compiled one-page LaTeX resume around the projects
you approve.`,
	SilenceUsage: true,
}

var (
	flagConfig  string
	flagVerbose bool
	flagDebug   bool
	flagJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to gitcv.toml (default: ./gitcv.toml, then the user config directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed stage summaries")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json-logs", false, "Log in JSON instead of console format")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
