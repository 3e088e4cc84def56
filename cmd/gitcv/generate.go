package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbarbosa/gitcv/internal/generation"
	"github.com/tbarbosa/gitcv/internal/observability"
	"github.com/tbarbosa/gitcv/internal/pipeline"
	"github.com/tbarbosa/gitcv/internal/rendering"
	"github.com/tbarbosa/gitcv/internal/selection"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full pipeline and produce a compiled resume PDF",
	Long: `Collects repositories, resolves and analyzes the job posting, ranks the
repositories by relevance, lets you approve the selection, generates the
resume content, and compiles the final PDF.

Without --job-url or --job-file a built-in example posting is used.`,
	RunE: runGenerate,
}

var (
	genJobURL   string
	genJobFile  string
	genLanguage string
	genOutput   string
	genSaveTex  bool
	genEdit     bool
	genNoCache  bool
)

func init() {
	generateCmd.Flags().StringVar(&genJobURL, "job-url", "", "URL of the job posting (mutually exclusive with --job-file)")
	generateCmd.Flags().StringVar(&genJobFile, "job-file", "", "Path to a job posting text file (mutually exclusive with --job-url)")
	generateCmd.Flags().StringVarP(&genLanguage, "language", "l", "", "Resume language: en or pt (overrides output.language)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output PDF path (overrides output.path)")
	generateCmd.Flags().BoolVar(&genSaveTex, "save-tex", false, "Keep the intermediate .tex next to the PDF (overrides output.save_tex)")
	generateCmd.Flags().BoolVar(&genEdit, "edit", false, "Offer to edit the generated LaTeX in $EDITOR before compiling")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "Bypass the response cache for this run")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	source, err := jobSource(genJobURL, genJobFile)
	if err != nil {
		return err
	}

	rt, err := newRuntime(genNoCache)
	if err != nil {
		return err
	}
	defer rt.close()

	// CLI flags win over config file values when explicitly set.
	cfg := rt.cfg
	if cmd.Flags().Changed("language") {
		cfg.Output.Language = genLanguage
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = genOutput
	}
	if cmd.Flags().Changed("save-tex") {
		cfg.Output.SaveTex = genSaveTex
	}

	client, err := rt.llmClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	deps := pipeline.Deps{
		Collector: rt.githubClient(),
		Resolver:  rt.jobResolver(),
		LLM:       client,
		Selector:  selection.NewController(selection.ConsolePrompter{}, os.Stdout, rt.log),
		Compiler:  rendering.NewToolCompiler(rt.log),
		Printer:   observability.NewPrinter(os.Stdout),
		Stdout:    os.Stdout,
		Stdin:     os.Stdin,
		Logger:    rt.log,
	}

	opts := pipeline.Options{
		Source: source,
		Info:   cfg.PersonalInfo(),
		Contexts: generation.Contexts{
			Education:         cfg.Resume.Education,
			Experience:        cfg.Resume.Experience,
			EducationContext:  cfg.Resume.EducationContext,
			ExperienceContext: cfg.Resume.ExperienceContext,
			SkillsContext:     cfg.Resume.SkillsContext,
		},
		Language:   cfg.Output.Language,
		OutputPath: cfg.Output.Path,
		MaxRetries: cfg.LLM.MaxRetries,
		SaveTex:    cfg.Output.SaveTex,
		Edit:       genEdit,
		Verbose:    flagVerbose,
	}

	// A cancelled selection comes back as a normal result, so it exits
	// with code zero.
	_, err = pipeline.Run(ctx, deps, opts)
	return err
}
