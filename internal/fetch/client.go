package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/cache"
)

// DefaultCacheTTL is how long cached responses stay live.
const DefaultCacheTTL = 24 * time.Hour

// Client issues HTTP requests through the response cache and the retry
// policy. One Client is constructed per run and passed explicitly to every
// collaborator that talks to the network; it is safe for concurrent use.
type Client struct {
	http       *http.Client
	cache      *cache.Store
	policy     Policy
	opts       Options
	cacheTTL   time.Duration
	skipCache  bool
	useBrowser bool
	log        *zap.Logger
}

// ClientConfig configures a Client. Zero values fall back to defaults; a
// nil Cache disables caching entirely.
type ClientConfig struct {
	Cache      *cache.Store
	CacheTTL   time.Duration
	SkipCache  bool
	UseBrowser bool
	Policy     Policy
	Options    *Options
	Logger     *zap.Logger
}

// NewClient builds the shared fetcher.
func NewClient(cfg ClientConfig) *Client {
	opts := cfg.Options
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	policy := cfg.Policy
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 {
		policy = DefaultPolicy()
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		cache:      cfg.Cache,
		policy:     policy,
		opts:       *opts,
		cacheTTL:   ttl,
		skipCache:  cfg.SkipCache,
		useBrowser: cfg.UseBrowser,
		log:        log,
	}
}

// Get retrieves a URL. A live cache entry short-circuits the network; on a
// miss the request runs through the backoff loop and a successful response
// is stored before returning. Extra headers are merged over the client
// options for this call only.
func (c *Client) Get(ctx context.Context, urlStr string, headers map[string]string) (*Result, error) {
	return c.get(ctx, urlStr, headers, true)
}

// GetUncached retrieves a URL through the same retry loop but never touches
// the cache. Used for responses whose meaning depends on headers, which the
// cache does not keep.
func (c *Client) GetUncached(ctx context.Context, urlStr string, headers map[string]string) (*Result, error) {
	return c.get(ctx, urlStr, headers, false)
}

func (c *Client) get(ctx context.Context, urlStr string, headers map[string]string, useCache bool) (*Result, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	if useCache && c.cache != nil && !c.skipCache {
		entry, err := c.cache.Get(ctx, http.MethodGet, urlStr)
		if err != nil {
			return nil, &Error{URL: urlStr, Message: "cache read failed", Cause: err}
		}
		if entry != nil {
			c.log.Debug("cache hit", zap.String("url", urlStr))
			return &Result{
				URL:         urlStr,
				Body:        entry.Body,
				ContentType: entry.ContentType,
				StatusCode:  entry.StatusCode,
				FromCache:   true,
			}, nil
		}
	}

	var (
		result    *Result
		rateHdrs  http.Header
		wasLimit  bool
		attemptNo int
	)
	err = c.policy.Run(ctx, Transient, func() error {
		attemptNo++
		res, err := c.do(ctx, urlStr, headers)
		result = res
		if res != nil && (res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusForbidden) {
			rateHdrs = res.Header
			wasLimit = res.StatusCode == http.StatusTooManyRequests
		}
		return err
	})
	if err != nil {
		var fe *Error
		if wasLimit && errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests {
			// Retries exhausted on 429: surface the quota hint.
			return nil, &RateLimitError{URL: urlStr, RetryAfter: retryAfterHint(rateHdrs)}
		}
		c.log.Debug("fetch failed", zap.String("url", urlStr), zap.Int("attempts", attemptNo), zap.Error(err))
		return nil, err
	}

	c.log.Debug("fetched", zap.String("url", urlStr), zap.Int("status", result.StatusCode), zap.Int("attempts", attemptNo))

	if useCache && c.cache != nil && !c.skipCache && result.StatusCode == http.StatusOK {
		entry := &cache.Entry{
			Method:      http.MethodGet,
			URL:         urlStr,
			StatusCode:  result.StatusCode,
			ContentType: result.ContentType,
			Body:        result.Body,
			StoredAt:    time.Now(),
			TTL:         c.cacheTTL,
		}
		if err := c.cache.Put(ctx, entry); err != nil {
			// A failed cache write does not invalidate the fetched response.
			c.log.Warn("cache write failed", zap.String("url", urlStr), zap.Error(err))
		}
	}

	return result, nil
}

// GetJSON retrieves a URL and decodes the body as JSON into v.
func (c *Client) GetJSON(ctx context.Context, urlStr string, headers map[string]string, v any) (*Result, error) {
	res, err := c.Get(ctx, urlStr, headers)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return res, &Error{URL: urlStr, StatusCode: res.StatusCode, Message: "malformed JSON response", Cause: err}
	}
	return res, nil
}

// Page retrieves a URL and extracts readable text using selectors matched
// to the hosting platform. When browser mode is on and the static HTML
// yields too little text, the page is re-rendered headlessly and the
// rendered document replaces the cached body.
func (c *Client) Page(ctx context.Context, urlStr string) (*Result, error) {
	res, err := c.Get(ctx, urlStr, nil)
	if err != nil {
		return nil, err
	}

	platform := DetectPlatform(urlStr)
	text, extractErr := ExtractMainText(res.HTML(), PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...)
	if extractErr != nil {
		return nil, &Error{URL: urlStr, Message: "text extraction failed", Cause: extractErr}
	}

	if c.useBrowser && ShouldRender(text) {
		c.log.Info("static page too thin, rendering in browser", zap.String("url", urlStr))
		html, renderErr := RenderedHTML(ctx, urlStr, c.opts.Timeout, c.log)
		if renderErr != nil {
			c.log.Warn("browser rendering failed, keeping static text", zap.Error(renderErr))
		} else {
			res.Body = []byte(html)
			res.FromCache = false
			if rendered, err := ExtractMainText(html, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...); err == nil {
				text = rendered
			}
			if c.cache != nil && !c.skipCache {
				entry := &cache.Entry{
					Method:      http.MethodGet,
					URL:         urlStr,
					StatusCode:  res.StatusCode,
					ContentType: res.ContentType,
					Body:        res.Body,
					StoredAt:    time.Now(),
					TTL:         c.cacheTTL,
				}
				if err := c.cache.Put(ctx, entry); err != nil {
					c.log.Warn("cache write failed", zap.String("url", urlStr), zap.Error(err))
				}
			}
		}
	}

	res.Text = text
	return res, nil
}

// do performs a single HTTP attempt and classifies the outcome.
func (c *Client) do(ctx context.Context, urlStr string, headers map[string]string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: urlStr, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return result, nil
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return result, &RateLimitError{URL: urlStr, RetryAfter: retryAfterHint(resp.Header)}
	default:
		return result, &Error{
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Message:    "HTTP status " + resp.Status,
		}
	}
}
