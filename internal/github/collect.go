package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tbarbosa/gitcv/internal/fetch"
	"github.com/tbarbosa/gitcv/internal/types"
)

var lastPagePattern = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// Collect lists the configured user's public repositories and enriches each
// with its language breakdown, README excerpt, and commit count. Detail
// calls run on a bounded worker pool; a repository whose detail calls fail
// for reasons other than rate limiting keeps empty fields instead of
// failing the whole collection. The result always has one entry per listed
// repository, sorted by importance.
func (c *Client) Collect(ctx context.Context) ([]types.Repository, error) {
	repos, listRes, err := c.listRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", c.username, err)
	}

	if remaining, reset, ok := listRes.RateLimit(); ok {
		needed := len(repos) * detailRequestsPerRepo
		if remaining < needed {
			retryAfter := time.Until(reset)
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.log.Warn("rate-limit budget too low for detail fetches",
				zap.Int("remaining", remaining),
				zap.Int("needed", needed),
				zap.Duration("retry_after", retryAfter))
			return nil, &fetch.RateLimitError{
				URL:        c.listURL(1),
				RetryAfter: retryAfter,
				Remaining:  remaining,
			}
		}
	}

	records := make([]types.Repository, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			record, err := c.record(gctx, repo)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Importance > records[j].Importance
	})
	c.log.Info("collected repositories",
		zap.String("username", c.username),
		zap.Int("count", len(records)))
	return records, nil
}

func (c *Client) listURL(page int) string {
	return fmt.Sprintf("%s/users/%s/repos?per_page=%d&page=%d", c.baseURL, c.username, c.perPage, page)
}

// listRepositories walks the paginated repository listing. It stops when a
// page comes back shorter than the page size, which also holds for cached
// pages that no longer carry pagination headers. The last page's result is
// returned so callers can inspect rate-limit headers.
func (c *Client) listRepositories(ctx context.Context) ([]apiRepo, *fetch.Result, error) {
	var (
		repos   []apiRepo
		lastRes *fetch.Result
	)
	for page := 1; ; page++ {
		res, err := c.fetcher.Get(ctx, c.listURL(page), c.headers())
		if err != nil {
			return nil, nil, err
		}
		lastRes = res

		var batch []apiRepo
		if err := json.Unmarshal(res.Body, &batch); err != nil {
			return nil, nil, &fetch.Error{URL: res.URL, StatusCode: res.StatusCode, Message: "malformed repository listing", Cause: err}
		}
		repos = append(repos, batch...)
		c.log.Debug("listed repository page",
			zap.Int("page", page),
			zap.Int("batch", len(batch)),
			zap.Bool("cached", res.FromCache))
		if len(batch) < c.perPage {
			break
		}
	}
	return repos, lastRes, nil
}

// record assembles the normalized repository record. Detail failures other
// than rate limiting degrade to empty fields.
func (c *Client) record(ctx context.Context, repo apiRepo) (types.Repository, error) {
	breakdown, err := c.languages(ctx, repo.FullName)
	if err != nil {
		if fetch.IsRateLimited(err) {
			return types.Repository{}, err
		}
		c.log.Debug("language fetch failed", zap.String("repo", repo.FullName), zap.Error(err))
		breakdown = nil
	}

	readme, err := c.readme(ctx, repo.FullName)
	if err != nil {
		if fetch.IsRateLimited(err) {
			return types.Repository{}, err
		}
		c.log.Debug("readme fetch failed", zap.String("repo", repo.FullName), zap.Error(err))
		readme = ""
	}

	commits, err := c.commitCount(ctx, repo.FullName)
	if err != nil {
		if fetch.IsRateLimited(err) {
			return types.Repository{}, err
		}
		c.log.Debug("commit count fetch failed", zap.String("repo", repo.FullName), zap.Error(err))
		commits = 0
	}

	lastActivity, _ := time.Parse(time.RFC3339, repo.PushedAt)

	return types.Repository{
		Name:              repo.Name,
		URL:               repo.HTMLURL,
		Description:       repo.Description,
		Stars:             repo.StargazersCount,
		Forks:             repo.ForksCount,
		SizeKB:            repo.Size,
		PrimaryLanguage:   primaryLanguage(repo.Language, breakdown),
		LanguageBreakdown: breakdown,
		ReadmeExcerpt:     excerpt(readme, readmeExcerptLimit),
		LastActivity:      lastActivity,
		CommitCount:       commits,
		Archived:          repo.Archived,
		Fork:              repo.Fork,
		Importance:        importanceScore(repo.StargazersCount, repo.ForksCount, repo.Size, repo.Archived, repo.Fork),
	}, nil
}

func (c *Client) languages(ctx context.Context, fullName string) (map[string]int64, error) {
	var breakdown map[string]int64
	url := fmt.Sprintf("%s/repos/%s/languages", c.baseURL, fullName)
	if _, err := c.fetcher.GetJSON(ctx, url, c.headers(), &breakdown); err != nil {
		return nil, err
	}
	return breakdown, nil
}

// readme fetches and decodes the repository README. GitHub returns the
// content base64-encoded with embedded line breaks.
func (c *Client) readme(ctx context.Context, fullName string) (string, error) {
	var payload apiReadme
	url := fmt.Sprintf("%s/repos/%s/readme", c.baseURL, fullName)
	if _, err := c.fetcher.GetJSON(ctx, url, c.headers(), &payload); err != nil {
		return "", err
	}
	encoded := strings.NewReplacer("\n", "", "\r", "").Replace(payload.Content)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode readme for %s: %w", fullName, err)
	}
	return string(decoded), nil
}

// commitCount asks for a single commit per page and reads the total from
// the Link header's last-page number. The cache keeps bodies only, so this
// call bypasses it. A response without a Link header holds the entire
// history on one page.
func (c *Client) commitCount(ctx context.Context, fullName string) (int, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?per_page=1", c.baseURL, fullName)
	res, err := c.fetcher.GetUncached(ctx, url, c.headers())
	if err != nil {
		return 0, err
	}
	if last := parseLastPage(res.Header.Get("Link")); last > 0 {
		return last, nil
	}
	var commits []json.RawMessage
	if err := json.Unmarshal(res.Body, &commits); err != nil {
		return 0, fmt.Errorf("malformed commit listing for %s: %w", fullName, err)
	}
	return len(commits), nil
}

// parseLastPage extracts the page number from a Link header's rel="last"
// entry, or 0 when the header has none.
func parseLastPage(link string) int {
	m := lastPagePattern.FindStringSubmatch(link)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// primaryLanguage prefers the listing's language field, falling back to
// the largest entry in the byte breakdown.
func primaryLanguage(listed string, breakdown map[string]int64) string {
	if listed != "" {
		return listed
	}
	var (
		best  string
		bytes int64
	)
	for lang, n := range breakdown {
		if n > bytes || (n == bytes && (best == "" || lang < best)) {
			best = lang
			bytes = n
		}
	}
	return best
}

// excerpt caps s at limit runes.
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
