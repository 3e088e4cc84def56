package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarbosa/gitcv/internal/cache"
)

func newTestClient(t *testing.T, store *cache.Store, policy Policy) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		Cache:    store,
		CacheTTL: time.Hour,
		Policy:   policy,
		Options:  &Options{Timeout: 5 * time.Second, UserAgent: DefaultUserAgent},
	})
}

func openTestCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetCachesSecondCall(t *testing.T) {
	captureSleeps(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	c := newTestClient(t, openTestCache(t), DefaultPolicy())
	ctx := context.Background()

	first, err := c.Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := c.Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	assert.Equal(t, int64(1), hits.Load(), "cached call must not reach the network")
}

func TestGetExpiredEntryRefetchesOnce(t *testing.T) {
	captureSleeps(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "fresh")
	}))
	defer srv.Close()

	store := openTestCache(t)
	c := newTestClient(t, store, DefaultPolicy())
	ctx := context.Background()

	_, err := c.Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())

	// Backdate the stored entry past its TTL.
	require.NoError(t, store.Put(ctx, &cache.Entry{
		Method:     http.MethodGet,
		URL:        srv.URL,
		StatusCode: 200,
		Body:       []byte("stale"),
		StoredAt:   time.Now().Add(-2 * time.Hour),
		TTL:        time.Hour,
	}))

	res, err := c.Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "fresh", string(res.Body))
	assert.Equal(t, int64(2), hits.Load(), "expired entry triggers exactly one refetch")
}

func TestGetRetriesServerErrorsThenSucceeds(t *testing.T) {
	delays := captureSleeps(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer srv.Close()

	policy := Policy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 8 * time.Second}
	c := newTestClient(t, nil, policy)

	res, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(res.Body))
	assert.Equal(t, int64(4), hits.Load())
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, *delays, "three 503s mean exactly three backoff delays")
}

func TestGetFailsFastOnClientError(t *testing.T) {
	captureSleeps(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, openTestCache(t), DefaultPolicy())

	_, err := c.Get(context.Background(), srv.URL, nil)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.Retryable())
	assert.Equal(t, int64(1), hits.Load(), "4xx must not be retried")
}

func TestGetDoesNotCacheFailures(t *testing.T) {
	captureSleeps(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := openTestCache(t)
	c := newTestClient(t, store, DefaultPolicy())

	_, err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetQuotaExhaustionIsRateLimited(t *testing.T) {
	captureSleeps(t)

	var hits atomic.Int64
	reset := time.Now().Add(30 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, nil, DefaultPolicy())

	_, err := c.Get(context.Background(), srv.URL, nil)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, 25*time.Minute, "reset hint must be surfaced")
	assert.Equal(t, int64(1), hits.Load(), "exhausted quota must not be hammered")
}

func TestGetTooManyRequestsExhaustsIntoRateLimited(t *testing.T) {
	captureSleeps(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	policy := Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond}
	c := newTestClient(t, nil, policy)

	_, err := c.Get(context.Background(), srv.URL, nil)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Minute, rl.RetryAfter)
	assert.Equal(t, int64(3), hits.Load(), "429 is retried before surfacing the hint")
}

func TestGetJSONDecodes(t *testing.T) {
	captureSleeps(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"gitcv","stars":42}`)
	}))
	defer srv.Close()

	c := newTestClient(t, nil, DefaultPolicy())

	var payload struct {
		Name  string `json:"name"`
		Stars int    `json:"stars"`
	}
	_, err := c.GetJSON(context.Background(), srv.URL, nil, &payload)
	require.NoError(t, err)
	assert.Equal(t, "gitcv", payload.Name)
	assert.Equal(t, 42, payload.Stars)
}

func TestGetJSONRejectsMalformedBody(t *testing.T) {
	captureSleeps(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	c := newTestClient(t, nil, DefaultPolicy())

	var v map[string]any
	_, err := c.GetJSON(context.Background(), srv.URL, nil, &v)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Message, "malformed JSON")
}

func TestGetInvalidURL(t *testing.T) {
	c := newTestClient(t, nil, DefaultPolicy())

	_, err := c.Get(context.Background(), "not-a-url", nil)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Message, "invalid URL")
}

func TestGetSendsConfiguredHeaders(t *testing.T) {
	captureSleeps(t)

	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t, nil, DefaultPolicy())

	_, err := c.Get(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer tok"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestPageExtractsJobText(t *testing.T) {
	captureSleeps(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<nav>menu things</nav>
			<div class="job-description">Senior Go Engineer. Build pipelines.</div>
			<footer>legal</footer>
		</body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, nil, DefaultPolicy())

	res, err := c.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Senior Go Engineer")
	assert.NotContains(t, res.Text, "menu things")
	assert.NotContains(t, res.Text, "legal")
}
