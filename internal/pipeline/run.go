// Package pipeline provides the high-level orchestration for a resume run:
// repository collection and job resolution in parallel, extraction, ranking,
// the interactive selection checkpoint, content generation, document
// assembly, and compilation.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tbarbosa/gitcv/internal/generation"
	"github.com/tbarbosa/gitcv/internal/job"
	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/observability"
	"github.com/tbarbosa/gitcv/internal/parsing"
	"github.com/tbarbosa/gitcv/internal/ranking"
	"github.com/tbarbosa/gitcv/internal/rendering"
	"github.com/tbarbosa/gitcv/internal/selection"
	"github.com/tbarbosa/gitcv/internal/types"
)

// maxRankingCandidates caps how many repositories are offered to the
// ranking engine. Collection sorts by importance, so the cap keeps the
// strongest ones.
const maxRankingCandidates = 30

// Collector gathers normalized repositories for the configured account.
type Collector interface {
	Collect(ctx context.Context) ([]types.Repository, error)
}

// Resolver turns a job source into posting text.
type Resolver interface {
	Resolve(ctx context.Context, src job.Source) (string, error)
}

// Selector runs the interactive checkpoint over the ranked list.
type Selector interface {
	Run(ranked []types.RankedRepository) (*selection.Outcome, error)
}

// Deps holds the collaborators a run needs. The command layer wires the
// real implementations; tests substitute scripted fakes.
type Deps struct {
	Collector Collector
	Resolver  Resolver
	LLM       llm.Client
	Selector  Selector
	Compiler  rendering.Compiler
	Printer   *observability.Printer
	Stdout    io.Writer
	Stdin     io.Reader
	Logger    *zap.Logger
}

// Options holds the per-run settings resolved from config and flags.
type Options struct {
	Source     job.Source
	Info       types.PersonalInfo
	Contexts   generation.Contexts
	Language   string
	OutputPath string
	MaxRetries int
	SaveTex    bool
	Edit       bool
	Verbose    bool
}

// Result reports what a run produced. Aborted is set when the user
// cancelled at the selection checkpoint; no artifacts are written in that
// case.
type Result struct {
	Aborted bool
	PDFPath string
	// TexPath is set when the LaTeX source was kept on request.
	TexPath string
}

// Prefixes distinguish interleaved output from the concurrent stages.
const (
	prefixCollect = "[GitHub] "
	prefixJob     = "[Job]    "
)

// openEditor launches the user's editor on path and waits for it to exit.
// Swapped in tests.
var openEditor = func(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Run orchestrates the full resume generation pipeline.
func Run(ctx context.Context, deps Deps, opts Options) (*Result, error) {
	deps = deps.withDefaults()
	out := deps.Stdout
	log := deps.Logger

	// Collection and job analysis are independent; run them in parallel.
	g, gCtx := errgroup.WithContext(ctx)

	var repos []types.Repository
	var jobDesc *types.JobDescription

	g.Go(func() error {
		fmt.Fprintf(out, "%sStep 1/8: Collecting GitHub repositories...\n", prefixCollect)
		var err error
		repos, err = deps.Collector.Collect(gCtx)
		if err != nil {
			return fmt.Errorf("collecting repositories failed: %w", err)
		}
		fmt.Fprintf(out, "%sCollected %d repositories.\n", prefixCollect, len(repos))
		return nil
	})

	g.Go(func() error {
		fmt.Fprintf(out, "%sStep 2/8: Resolving job posting...\n", prefixJob)
		text, err := deps.Resolver.Resolve(gCtx, opts.Source)
		if err != nil {
			return fmt.Errorf("resolving job posting failed: %w", err)
		}

		fmt.Fprintf(out, "%sStep 3/8: Extracting job requirements...\n", prefixJob)
		jobDesc, err = parsing.ParseJobDescription(gCtx, deps.LLM, text, opts.MaxRetries, log)
		if err != nil {
			return fmt.Errorf("extracting job description failed: %w", err)
		}
		fmt.Fprintf(out, "%sParsed job description: %s at %s.\n", prefixJob, jobDesc.Title, jobDesc.Company)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories were collected for this account")
	}

	if opts.Verbose {
		deps.Printer.PrintRepositories(repos)
		deps.Printer.PrintJobDescription(jobDesc)
	}

	fmt.Fprintf(out, "Step 4/8: Ranking repositories by relevance...\n")
	candidates := rankingCandidates(repos)
	if len(candidates) < len(repos) {
		log.Info("trimmed ranking candidates",
			zap.Int("collected", len(repos)),
			zap.Int("kept", len(candidates)))
	}
	ranked, err := ranking.RankRepositories(ctx, deps.LLM, candidates, jobDesc, opts.MaxRetries, log)
	if err != nil {
		return nil, fmt.Errorf("ranking repositories failed: %w", err)
	}
	if opts.Verbose {
		deps.Printer.PrintRankedRepositories(ranked)
	}

	fmt.Fprintf(out, "Step 5/8: Selecting repositories to feature...\n")
	outcome, err := deps.Selector.Run(ranked)
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	if outcome.Aborted {
		fmt.Fprintf(out, "Selection cancelled; nothing was written.\n")
		return &Result{Aborted: true}, nil
	}

	fmt.Fprintf(out, "Step 6/8: Generating resume content...\n")
	contexts := opts.Contexts
	contexts.Language = opts.Language
	content, err := generation.GenerateResumeContent(ctx, deps.LLM, *outcome.Result, jobDesc, contexts, opts.MaxRetries, log)
	if err != nil {
		return nil, fmt.Errorf("generating resume content failed: %w", err)
	}
	if opts.Verbose {
		deps.Printer.PrintResumeSummary(content)
	}

	fmt.Fprintf(out, "Step 7/8: Assembling LaTeX document...\n")
	doc, err := rendering.Assemble(opts.Info, jobDesc, content, rendering.ParseLanguage(opts.Language))
	if err != nil {
		return nil, fmt.Errorf("assembling document failed: %w", err)
	}

	if opts.Edit {
		doc, err = editLoop(deps.Stdin, out, doc)
		if err != nil {
			return nil, err
		}
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory failed: %w", err)
		}
	}
	texPath := texPathFor(opts.OutputPath)
	if err := os.WriteFile(texPath, []byte(doc), 0644); err != nil {
		return nil, fmt.Errorf("writing LaTeX source failed: %w", err)
	}

	fmt.Fprintf(out, "Step 8/8: Compiling PDF...\n")
	if err := deps.Compiler.Compile(ctx, texPath, opts.OutputPath); err != nil {
		fmt.Fprintf(out, "Compilation failed; the LaTeX source was kept at %s for inspection.\n", texPath)
		return nil, fmt.Errorf("compiling resume failed: %w", err)
	}

	result := &Result{PDFPath: opts.OutputPath}
	if opts.SaveTex {
		result.TexPath = texPath
		fmt.Fprintf(out, "LaTeX source saved to %s\n", texPath)
	} else if err := os.Remove(texPath); err != nil {
		log.Warn("could not remove intermediate LaTeX source",
			zap.String("path", texPath), zap.Error(err))
	}

	fmt.Fprintf(out, "Done! Resume written to %s\n", opts.OutputPath)
	return result, nil
}

func (d Deps) withDefaults() Deps {
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stdin == nil {
		d.Stdin = os.Stdin
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Printer == nil {
		d.Printer = observability.NewPrinter(d.Stdout)
	}
	return d
}

// rankingCandidates trims the collected list to what is worth ranking.
// Archived repositories and forks score zero importance and are dropped
// first; when that leaves nothing, the account is sparse and weaker
// fallbacks keep the run going.
func rankingCandidates(repos []types.Repository) []types.Repository {
	kept := make([]types.Repository, 0, len(repos))
	for _, r := range repos {
		if r.Importance > 0 {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		for _, r := range repos {
			if !r.Archived && !r.Fork {
				kept = append(kept, r)
			}
		}
	}
	if len(kept) == 0 {
		kept = repos
	}
	if len(kept) > maxRankingCandidates {
		kept = kept[:maxRankingCandidates]
	}
	return kept
}

// editLoop asks whether to open the assembled document in an editor before
// compiling. Anything but an explicit yes keeps the document as assembled;
// running out of input counts as no.
func editLoop(stdin io.Reader, stdout io.Writer, doc string) (string, error) {
	reader := bufio.NewReader(stdin)
	for {
		fmt.Fprint(stdout, "Edit the generated LaTeX before compiling? (y/N): ")
		line, readErr := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return editInEditor(doc)
		case "n", "no", "":
			return doc, nil
		default:
			fmt.Fprintln(stdout, "Please answer y or n.")
		}
		if readErr != nil {
			return doc, nil
		}
	}
}

// editInEditor round-trips the document through the user's editor via a
// scratch file.
func editInEditor(doc string) (string, error) {
	tmp, err := os.CreateTemp("", "gitcv-*.tex")
	if err != nil {
		return "", fmt.Errorf("creating scratch file failed: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing scratch file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing scratch file failed: %w", err)
	}

	if err := openEditor(path); err != nil {
		return "", fmt.Errorf("opening editor failed: %w", err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading edited file failed: %w", err)
	}
	return string(edited), nil
}

func texPathFor(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".tex"
}
