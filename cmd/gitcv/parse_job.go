package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbarbosa/gitcv/internal/observability"
	"github.com/tbarbosa/gitcv/internal/parsing"
)

var parseJobCmd = &cobra.Command{
	Use:   "parse-job",
	Short: "Resolve a job posting and extract a structured job description",
	Long: `Fetches the posting from --job-url (or reads --job-file), strips page
noise, extracts the title, company, and skill lists, and writes the
structured job description as JSON.`,
	RunE: runParseJob,
}

var (
	parseJobURL  string
	parseJobFile string
	parseOutput  string
	parseNoCache bool
)

func init() {
	parseJobCmd.Flags().StringVar(&parseJobURL, "job-url", "", "URL of the job posting (mutually exclusive with --job-file)")
	parseJobCmd.Flags().StringVar(&parseJobFile, "job-file", "", "Path to a job posting text file (mutually exclusive with --job-url)")
	parseJobCmd.Flags().StringVarP(&parseOutput, "output", "o", "", "Output JSON path (default: stdout)")
	parseJobCmd.Flags().BoolVar(&parseNoCache, "no-cache", false, "Bypass the response cache for this run")

	rootCmd.AddCommand(parseJobCmd)
}

func runParseJob(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	source, err := jobSource(parseJobURL, parseJobFile)
	if err != nil {
		return err
	}

	rt, err := newRuntime(parseNoCache)
	if err != nil {
		return err
	}
	defer rt.close()

	client, err := rt.llmClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	text, err := rt.jobResolver().Resolve(ctx, source)
	if err != nil {
		return fmt.Errorf("resolving job posting failed: %w", err)
	}

	jobDesc, err := parsing.ParseJobDescription(ctx, client, text, rt.cfg.LLM.MaxRetries, rt.log)
	if err != nil {
		return fmt.Errorf("extracting job description failed: %w", err)
	}

	if flagVerbose {
		observability.NewPrinter(os.Stderr).PrintJobDescription(jobDesc)
	}

	return writeJSON(parseOutput, jobDesc)
}
