// Package github collects public repository data from the GitHub REST API.
// All requests go through the shared fetch client, so listing and detail
// calls inherit its caching and backoff behavior.
package github

import (
	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/fetch"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// DefaultConcurrency bounds the per-repository detail worker pool.
	DefaultConcurrency = 4

	defaultPerPage = 100

	// detailRequestsPerRepo is how many API calls each repository costs
	// beyond the listing (languages, readme, commits).
	detailRequestsPerRepo = 3

	// readmeExcerptLimit caps how much README text is kept per repository.
	readmeExcerptLimit = 1500
)

// Config configures a Client. Zero values fall back to defaults; Fetcher
// and Username are required.
type Config struct {
	Fetcher     *fetch.Client
	Username    string
	Token       string
	BaseURL     string
	PerPage     int
	Concurrency int
	Logger      *zap.Logger
}

// Client talks to the GitHub API for a single user.
type Client struct {
	fetcher     *fetch.Client
	username    string
	token       string
	baseURL     string
	perPage     int
	concurrency int
	log         *zap.Logger
}

// NewClient builds a Client from cfg, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		fetcher:     cfg.Fetcher,
		username:    cfg.Username,
		token:       cfg.Token,
		baseURL:     baseURL,
		perPage:     perPage,
		concurrency: concurrency,
		log:         log,
	}
}

// headers returns the request headers for API calls. A token raises the
// rate-limit budget but is optional.
func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

// apiRepo is the subset of the repository listing payload we use.
type apiRepo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	Fork            bool   `json:"fork"`
	Archived        bool   `json:"archived"`
	Size            int    `json:"size"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	PushedAt        string `json:"pushed_at"`
}

// apiReadme is the repository README payload.
type apiReadme struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}
