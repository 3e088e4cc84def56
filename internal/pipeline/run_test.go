package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarbosa/gitcv/internal/job"
	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/rendering"
	"github.com/tbarbosa/gitcv/internal/selection"
	"github.com/tbarbosa/gitcv/internal/types"
)

const (
	cacheURL  = "https://github.com/josedev/httpcache"
	runnerURL = "https://github.com/josedev/jobrunner"
)

type fakeCollector struct {
	repos []types.Repository
	err   error
}

func (f *fakeCollector) Collect(context.Context) ([]types.Repository, error) {
	return f.repos, f.err
}

type fakeResolver struct {
	text string
	err  error
	src  job.Source
}

func (f *fakeResolver) Resolve(_ context.Context, src job.Source) (string, error) {
	f.src = src
	return f.text, f.err
}

// fakeLLM routes by model tier: extraction runs on the lite tier, ranking on
// the standard tier, and generation on the advanced tier.
type fakeLLM struct {
	byTier map[llm.ModelTier]string
	calls  []llm.ModelTier
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateJSON(ctx, prompt, tier)
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, tier llm.ModelTier) (string, error) {
	f.calls = append(f.calls, tier)
	resp, ok := f.byTier[tier]
	if !ok {
		return "", fmt.Errorf("no scripted response for tier %v", tier)
	}
	return resp, nil
}

func (f *fakeLLM) GetModel(llm.ModelTier) string { return "fake-model" }

func (f *fakeLLM) Close() error { return nil }

type fakeSelector struct {
	outcome *selection.Outcome
	err     error
	ranked  []types.RankedRepository
}

func (f *fakeSelector) Run(ranked []types.RankedRepository) (*selection.Outcome, error) {
	f.ranked = ranked
	return f.outcome, f.err
}

type fakeCompiler struct {
	err     error
	texPath string
	pdfPath string
	texBody string
}

func (f *fakeCompiler) Compile(_ context.Context, texPath, pdfPath string) error {
	f.texPath = texPath
	f.pdfPath = pdfPath
	if body, err := os.ReadFile(texPath); err == nil {
		f.texBody = string(body)
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(pdfPath, []byte("%PDF-fake"), 0644)
}

// syncBuffer makes the captured stdout safe for the concurrent stages.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func collectedRepos() []types.Repository {
	return []types.Repository{
		{Name: "httpcache", URL: cacheURL, PrimaryLanguage: "Go", Stars: 42, Importance: 120},
		{Name: "jobrunner", URL: runnerURL, PrimaryLanguage: "Go", Stars: 7, Importance: 80},
		{Name: "legacy-api", URL: "https://github.com/josedev/legacy-api", Archived: true, Importance: 0},
	}
}

func scriptedLLM() *fakeLLM {
	return &fakeLLM{byTier: map[llm.ModelTier]string{
		llm.TierLite: `{"title": "Backend Engineer", "company": "Acme", "required_skills": ["Go"], "nice_to_have": []}`,
		llm.TierStandard: `{"rankings": [
			{"url": "` + cacheURL + `", "rank": 1, "rationale": "Directly relevant caching work."},
			{"url": "` + runnerURL + `", "rank": 2, "rationale": "Shows concurrent job handling."}
		]}`,
		llm.TierAdvanced: `{
			"skills_by_category": [{"category": "Languages", "items": ["Go"]}],
			"projects": [{"title": "httpcache", "link": "` + cacheURL + `", "items": ["Built an HTTP response cache."]}],
			"experience": [],
			"education": []
		}`,
	}}
}

type runFixture struct {
	collector *fakeCollector
	resolver  *fakeResolver
	llm       *fakeLLM
	selector  *fakeSelector
	compiler  *fakeCompiler
	stdout    *syncBuffer
	stdin     *strings.Reader
	opts      Options
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	chosen := collectedRepos()[0]
	return &runFixture{
		collector: &fakeCollector{repos: collectedRepos()},
		resolver:  &fakeResolver{text: "We are hiring a backend engineer who knows Go."},
		llm:       scriptedLLM(),
		selector: &fakeSelector{outcome: &selection.Outcome{
			Result: &types.SelectionResult{Chosen: []types.Repository{chosen}},
		}},
		compiler: &fakeCompiler{},
		stdout:   &syncBuffer{},
		stdin:    strings.NewReader(""),
		opts: Options{
			Source:     job.Source{URL: "https://jobs.example.com/backend"},
			Info:       types.PersonalInfo{FullName: "José Dev"},
			OutputPath: filepath.Join(t.TempDir(), "resume.pdf"),
		},
	}
}

func (f *runFixture) deps() Deps {
	return Deps{
		Collector: f.collector,
		Resolver:  f.resolver,
		LLM:       f.llm,
		Selector:  f.selector,
		Compiler:  f.compiler,
		Stdout:    f.stdout,
		Stdin:     f.stdin,
	}
}

func TestRun_HappyPath(t *testing.T) {
	f := newRunFixture(t)

	result, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Aborted)
	assert.Equal(t, f.opts.OutputPath, result.PDFPath)

	pdf, err := os.ReadFile(f.opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(pdf))

	// The intermediate source is cleaned up unless --save-tex asks for it.
	assert.NoFileExists(t, texPathFor(f.opts.OutputPath))

	out := f.stdout.String()
	for step := 1; step <= 8; step++ {
		assert.Contains(t, out, fmt.Sprintf("Step %d/8", step))
	}
	assert.Contains(t, out, "Parsed job description: Backend Engineer at Acme.")
	assert.Contains(t, out, "Done! Resume written to "+f.opts.OutputPath)

	// The archived repository never reaches the ranking engine.
	require.Len(t, f.selector.ranked, 2)
	assert.Equal(t, "httpcache", f.selector.ranked[0].Name)
	assert.Equal(t, 1, f.selector.ranked[0].Rank)

	assert.Contains(t, f.compiler.texBody, `\documentclass`)
	assert.Contains(t, f.compiler.texBody, "José Dev")
}

func TestRun_AbortWritesNothing(t *testing.T) {
	f := newRunFixture(t)
	f.selector.outcome = &selection.Outcome{Aborted: true}

	result, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Aborted)

	entries, err := os.ReadDir(filepath.Dir(f.opts.OutputPath))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Contains(t, f.stdout.String(), "Selection cancelled; nothing was written.")
	assert.NotContains(t, f.llm.calls, llm.TierAdvanced)
}

func TestRun_SaveTexKeepsSource(t *testing.T) {
	f := newRunFixture(t)
	f.opts.SaveTex = true

	result, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)

	texPath := texPathFor(f.opts.OutputPath)
	assert.Equal(t, texPath, result.TexPath)

	body, err := os.ReadFile(texPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), `\documentclass`)
	assert.Contains(t, f.stdout.String(), "LaTeX source saved to "+texPath)
}

func TestRun_CompileFailureKeepsTex(t *testing.T) {
	f := newRunFixture(t)
	f.compiler.err = &rendering.CompilationError{Message: "the engine produced no PDF"}

	result, err := Run(context.Background(), f.deps(), f.opts)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "compiling resume failed")

	var compileErr *rendering.CompilationError
	assert.ErrorAs(t, err, &compileErr)

	// The source survives the failure so the user can inspect it.
	texPath := texPathFor(f.opts.OutputPath)
	assert.FileExists(t, texPath)
	assert.Contains(t, f.stdout.String(), "kept at "+texPath)
}

func TestRun_CollectorFailureFailsRun(t *testing.T) {
	f := newRunFixture(t)
	f.collector.err = errors.New("api unreachable")

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collecting repositories failed")
}

func TestRun_ResolverFailureFailsRun(t *testing.T) {
	f := newRunFixture(t)
	f.resolver.err = errors.New("404 not found")

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving job posting failed")
}

func TestRun_NoRepositories(t *testing.T) {
	f := newRunFixture(t)
	f.collector.repos = nil

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repositories were collected")
}

func TestRun_PassesSourceToResolver(t *testing.T) {
	f := newRunFixture(t)
	f.opts.Source = job.Source{FilePath: "posting.txt"}
	f.resolver.text = "A Go role."

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, "posting.txt", f.resolver.src.FilePath)
}

func TestRun_EditLoopAppliesChanges(t *testing.T) {
	f := newRunFixture(t)
	f.opts.Edit = true
	f.stdin = strings.NewReader("y\n")

	old := openEditor
	openEditor = func(path string) error {
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(body, []byte("% touched in editor\n")...), 0644)
	}
	defer func() { openEditor = old }()

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)

	assert.Contains(t, f.stdout.String(), "Edit the generated LaTeX before compiling?")
	assert.Contains(t, f.compiler.texBody, "% touched in editor")
}

func TestRun_EditLoopDeclined(t *testing.T) {
	f := newRunFixture(t)
	f.opts.Edit = true
	f.stdin = strings.NewReader("maybe\nn\n")

	old := openEditor
	openEditor = func(string) error {
		t.Error("editor must not open when the user declines")
		return nil
	}
	defer func() { openEditor = old }()

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)

	out := f.stdout.String()
	assert.Contains(t, out, "Please answer y or n.")
	assert.NotContains(t, f.compiler.texBody, "% touched in editor")
}

func TestRun_VerbosePrintsSummaries(t *testing.T) {
	f := newRunFixture(t)
	f.opts.Verbose = true

	_, err := Run(context.Background(), f.deps(), f.opts)
	require.NoError(t, err)

	out := f.stdout.String()
	assert.Contains(t, out, "COLLECTED REPOSITORIES")
	assert.Contains(t, out, "PARSED JOB DESCRIPTION")
	assert.Contains(t, out, "RANKED REPOSITORIES")
	assert.Contains(t, out, "GENERATED RESUME CONTENT")
}

func TestRankingCandidates(t *testing.T) {
	important := func(n int) []types.Repository {
		repos := make([]types.Repository, n)
		for i := range repos {
			repos[i] = types.Repository{
				Name:       fmt.Sprintf("repo-%d", i),
				Importance: n - i,
			}
		}
		return repos
	}

	t.Run("drops zero importance", func(t *testing.T) {
		repos := []types.Repository{
			{Name: "keep", Importance: 10},
			{Name: "archived", Archived: true},
			{Name: "fork", Fork: true},
		}
		got := rankingCandidates(repos)
		require.Len(t, got, 1)
		assert.Equal(t, "keep", got[0].Name)
	})

	t.Run("keeps sparse accounts", func(t *testing.T) {
		repos := []types.Repository{
			{Name: "tiny"},
			{Name: "fork", Fork: true},
		}
		got := rankingCandidates(repos)
		require.Len(t, got, 1)
		assert.Equal(t, "tiny", got[0].Name)
	})

	t.Run("all forks still rank", func(t *testing.T) {
		repos := []types.Repository{
			{Name: "fork-a", Fork: true},
			{Name: "fork-b", Fork: true},
		}
		assert.Len(t, rankingCandidates(repos), 2)
	})

	t.Run("caps the candidate list", func(t *testing.T) {
		got := rankingCandidates(important(maxRankingCandidates + 5))
		require.Len(t, got, maxRankingCandidates)
		// Collection order is importance-sorted, so the cap keeps the head.
		assert.Equal(t, "repo-0", got[0].Name)
	})
}

func TestTexPathFor(t *testing.T) {
	assert.Equal(t, "resume.tex", texPathFor("resume.pdf"))
	assert.Equal(t, "out/cv.tex", texPathFor("out/cv.pdf"))
	assert.Equal(t, "resume.tex", texPathFor("resume"))
}
