// Package job resolves the job posting text from a URL, a local file, or a
// built-in fallback when neither is supplied.
package job

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/fetch"
)

// GenericTemplate stands in for a job posting when neither a URL nor a
// file is supplied, so a resume can still be generated against a broad
// engineering profile.
const GenericTemplate = `Software Engineer

We are looking for a software engineer to design, build, and operate
reliable, well-tested software. You will work across the stack, own
features end to end, and collaborate with a small team that values
clear communication and pragmatic engineering.

Responsibilities:
- Design, implement, and maintain services, tools, and libraries.
- Write automated tests and participate in code review.
- Debug and resolve production issues.
- Document decisions and share knowledge with the team.

Requirements:
- Solid programming fundamentals in at least one modern language.
- Experience with version control, testing, and CI workflows.
- Ability to break down ambiguous problems into shippable increments.

Nice to have:
- Open-source contributions or public projects.
- Experience with cloud infrastructure, databases, or distributed systems.`

// Source names where the job posting comes from. At most one field may be
// set; an empty Source selects the built-in template.
type Source struct {
	URL      string
	FilePath string
}

// ResolutionError reports a bad or unreadable job source. Network failures
// on a reachable source keep their fetch error type instead.
type ResolutionError struct {
	Source  string
	Message string
	Cause   error
}

func (e *ResolutionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("resolve job source %s: %s", e.Source, e.Message)
	}
	return "resolve job source: " + e.Message
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// PageFetcher pulls a URL and returns its readable text.
type PageFetcher interface {
	Page(ctx context.Context, urlStr string) (*fetch.Result, error)
}

// Resolver turns a Source into normalized job posting text.
type Resolver struct {
	fetcher PageFetcher
	log     *zap.Logger
}

// NewResolver builds a Resolver. The fetcher may be nil when only file and
// template sources are used.
func NewResolver(fetcher PageFetcher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, log: log}
}

// Resolve returns the job posting text for src. An empty Source yields the
// generic template and never fails; an explicitly supplied source that
// cannot be read is an error.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	switch {
	case src.URL != "" && src.FilePath != "":
		return "", &ResolutionError{Message: "both a job URL and a job file were supplied; choose one"}
	case src.URL != "":
		return r.fromURL(ctx, src.URL)
	case src.FilePath != "":
		return r.fromFile(src.FilePath)
	default:
		r.log.Info("no job source supplied, using generic template")
		return GenericTemplate, nil
	}
}

func (r *Resolver) fromURL(ctx context.Context, urlStr string) (string, error) {
	r.log.Info("fetching job posting", zap.String("url", urlStr))
	if r.fetcher == nil {
		return "", &ResolutionError{Source: urlStr, Message: "no fetcher configured"}
	}
	res, err := r.fetcher.Page(ctx, urlStr)
	if err != nil {
		return "", err
	}
	text := normalize(res.Text)
	if text == "" {
		return "", &ResolutionError{Source: urlStr, Message: "page contained no readable text"}
	}
	r.log.Debug("job posting extracted", zap.Int("chars", len(text)))
	return text, nil
}

func (r *Resolver) fromFile(path string) (string, error) {
	r.log.Info("reading job posting", zap.String("file", path))
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &ResolutionError{Source: path, Message: "job description file not found", Cause: err}
		}
		return "", &ResolutionError{Source: path, Message: "job description file could not be read", Cause: err}
	}
	text := normalize(string(raw))
	if text == "" {
		return "", &ResolutionError{Source: path, Message: "job description file is empty"}
	}
	return text, nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// normalize trims each line and collapses runs of blank lines so prompts
// stay compact.
func normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(joined, "\n\n"))
}
