package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbarbosa/gitcv/internal/observability"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect the configured account's repositories and dump them as JSON",
	Long: `Walks the GitHub account configured under [github], gathers each
repository's metadata, languages, README excerpt, and commit activity, and
writes the normalized records as JSON.`,
	RunE: runCollect,
}

var (
	collectOutput  string
	collectNoCache bool
)

func init() {
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "Output JSON path (default: stdout)")
	collectCmd.Flags().BoolVar(&collectNoCache, "no-cache", false, "Bypass the response cache for this run")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	rt, err := newRuntime(collectNoCache)
	if err != nil {
		return err
	}
	defer rt.close()

	repos, err := rt.githubClient().Collect(ctx)
	if err != nil {
		return fmt.Errorf("collecting repositories failed: %w", err)
	}

	if flagVerbose {
		observability.NewPrinter(os.Stderr).PrintRepositories(repos)
	}

	return writeJSON(collectOutput, repos)
}
