package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarbosa/gitcv/internal/fetch"
)

func newCollector(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Fetcher: fetch.NewClient(fetch.ClientConfig{
			Policy: fetch.Policy{MaxRetries: 0, BaseDelay: time.Millisecond},
		}),
		Username:    "octo",
		BaseURL:     baseURL,
		PerPage:     2,
		Concurrency: 2,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg)
}

func repoFixture(name string, stars, forks, size int) map[string]any {
	return map[string]any{
		"name":             name,
		"full_name":        "octo/" + name,
		"html_url":         "https://github.com/octo/" + name,
		"description":      name + " project",
		"language":         "Go",
		"fork":             false,
		"archived":         false,
		"size":             size,
		"stargazers_count": stars,
		"forks_count":      forks,
		"pushed_at":        "2024-11-05T12:00:00Z",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func servePage(t *testing.T, w http.ResponseWriter, r *http.Request, repos []map[string]any, perPage int) {
	t.Helper()
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(repos) {
		writeJSON(t, w, []map[string]any{})
		return
	}
	end := min(start+perPage, len(repos))
	writeJSON(t, w, repos[start:end])
}

func detailHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/languages"):
			writeJSON(t, w, map[string]int64{"Go": 12000, "Makefile": 300})
		case strings.HasSuffix(r.URL.Path, "/readme"):
			encoded := base64.StdEncoding.EncodeToString([]byte("# Title\n\nA readme body."))
			wrapped := encoded[:8] + "\n" + encoded[8:]
			writeJSON(t, w, map[string]string{"content": wrapped, "encoding": "base64"})
		case strings.HasSuffix(r.URL.Path, "/commits"):
			w.Header().Set("Link", `<https://api.github.com/repos/octo/x/commits?per_page=1&page=42>; rel="last"`)
			writeJSON(t, w, []map[string]any{{"sha": "abc123"}})
		default:
			http.NotFound(w, r)
		}
	}
}

func TestCollectPaginatesAndEnriches(t *testing.T) {
	repos := []map[string]any{
		repoFixture("alpha", 10, 2, 500),
		repoFixture("beta", 300, 40, 2000),
		repoFixture("gamma", 1, 0, 100),
	}
	detail := detailHandler(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/octo/repos" {
			servePage(t, w, r, repos, 2)
			return
		}
		detail(w, r)
	}))
	defer server.Close()

	collected, err := newCollector(t, server.URL, nil).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, collected, 3)

	// Highest importance first: beta(1000) > alpha(39) > gamma(4).
	assert.Equal(t, "beta", collected[0].Name)
	assert.Equal(t, "alpha", collected[1].Name)
	assert.Equal(t, "gamma", collected[2].Name)

	first := collected[0]
	assert.Equal(t, "https://github.com/octo/beta", first.URL)
	assert.Equal(t, "https://github.com/octo/beta", first.Identity())
	assert.Equal(t, "beta project", first.Description)
	assert.Equal(t, 300, first.Stars)
	assert.Equal(t, 40, first.Forks)
	assert.Equal(t, "Go", first.PrimaryLanguage)
	assert.Equal(t, map[string]int64{"Go": 12000, "Makefile": 300}, first.LanguageBreakdown)
	assert.Equal(t, "# Title\n\nA readme body.", first.ReadmeExcerpt)
	assert.Equal(t, 42, first.CommitCount)
	assert.Equal(t, 2024, first.LastActivity.Year())
}

func TestCollectReturnsEveryRepoAtAnyPoolDegree(t *testing.T) {
	var repos []map[string]any
	for i := 0; i < 6; i++ {
		repos = append(repos, repoFixture(fmt.Sprintf("repo-%d", i), i*10, i, 100*i))
	}
	detail := detailHandler(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/octo/repos" {
			servePage(t, w, r, repos, 2)
			return
		}
		detail(w, r)
	}))
	defer server.Close()

	serial, err := newCollector(t, server.URL, func(cfg *Config) { cfg.Concurrency = 1 }).Collect(context.Background())
	require.NoError(t, err)
	parallel, err := newCollector(t, server.URL, func(cfg *Config) { cfg.Concurrency = 8 }).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, serial, 6)
	assert.Equal(t, serial, parallel)
}

func TestCollectSoftFailsMissingDetails(t *testing.T) {
	repo := repoFixture("quiet", 5, 0, 50)
	repo["language"] = nil
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/octo/repos":
			servePage(t, w, r, []map[string]any{repo}, 2)
		case strings.HasSuffix(r.URL.Path, "/commits"):
			// Single-page history carries no Link header.
			writeJSON(t, w, []map[string]any{{"sha": "abc123"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	collected, err := newCollector(t, server.URL, nil).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Empty(t, collected[0].ReadmeExcerpt)
	assert.Empty(t, collected[0].LanguageBreakdown)
	assert.Empty(t, collected[0].PrimaryLanguage)
	assert.Equal(t, 1, collected[0].CommitCount)
}

func TestCollectStopsWhenBudgetInsufficient(t *testing.T) {
	repos := []map[string]any{
		repoFixture("a", 1, 0, 10),
		repoFixture("b", 2, 0, 10),
		repoFixture("c", 3, 0, 10),
	}
	var detailHits atomic.Int64
	reset := time.Now().Add(30 * time.Minute)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/octo/repos" {
			w.Header().Set("X-RateLimit-Remaining", "2")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			servePage(t, w, r, repos, 2)
			return
		}
		detailHits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newCollector(t, server.URL, nil).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsRateLimited(err))

	var rl *fetch.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2, rl.Remaining)
	assert.Greater(t, rl.RetryAfter, 25*time.Minute)
	assert.Zero(t, detailHits.Load(), "detail endpoints must not be hit once the budget check fails")
}

func TestCollectPropagatesDetailRateLimit(t *testing.T) {
	repos := []map[string]any{repoFixture("a", 1, 0, 10)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/octo/repos":
			w.Header().Set("X-RateLimit-Remaining", "5000")
			servePage(t, w, r, repos, 2)
		case strings.HasSuffix(r.URL.Path, "/languages"):
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	_, err := newCollector(t, server.URL, nil).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsRateLimited(err))
}

func TestCollectSendsAuthorization(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/octo/repos" {
			authHeader = r.Header.Get("Authorization")
			writeJSON(t, w, []map[string]any{})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	collected, err := newCollector(t, server.URL, func(cfg *Config) { cfg.Token = "ghp_testtoken" }).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, collected)
	assert.Equal(t, "Bearer ghp_testtoken", authHeader)
}

func TestCollectRejectsMalformedListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not": "a list"}`)
	}))
	defer server.Close()

	_, err := newCollector(t, server.URL, nil).Collect(context.Background())
	require.Error(t, err)

	var fe *fetch.Error
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Message, "malformed repository listing")
}

func TestParseLastPage(t *testing.T) {
	tests := []struct {
		name string
		link string
		want int
	}{
		{
			name: "last and next",
			link: `<https://api.github.com/repos/o/r/commits?per_page=1&page=2>; rel="next", <https://api.github.com/repos/o/r/commits?per_page=1&page=347>; rel="last"`,
			want: 347,
		},
		{
			name: "next only",
			link: `<https://api.github.com/repos/o/r/commits?per_page=1&page=2>; rel="next"`,
			want: 0,
		},
		{
			name: "empty",
			link: "",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLastPage(tt.link))
		})
	}
}

func TestImportanceScore(t *testing.T) {
	tests := []struct {
		name                 string
		stars, forks, sizeKB int
		archived, fork       bool
		want                 int
	}{
		{name: "typical", stars: 10, forks: 2, sizeKB: 500, want: 39},
		{name: "capped", stars: 5000, forks: 400, sizeKB: 50000, want: 3000 + 200 + 100},
		{name: "archived scores zero", stars: 100, archived: true, want: 0},
		{name: "fork scores zero", stars: 100, fork: true, want: 0},
		{name: "empty", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importanceScore(tt.stars, tt.forks, tt.sizeKB, tt.archived, tt.fork))
		})
	}
}

func TestPrimaryLanguageFallsBackToBreakdown(t *testing.T) {
	assert.Equal(t, "Rust", primaryLanguage("Rust", map[string]int64{"Go": 100}))
	assert.Equal(t, "Go", primaryLanguage("", map[string]int64{"Go": 100, "Shell": 20}))
	assert.Empty(t, primaryLanguage("", nil))
}

func TestExcerptCapsRunes(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "héllo", excerpt("héllo wörld", 5))
}
