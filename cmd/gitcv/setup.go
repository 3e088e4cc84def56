package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/cache"
	"github.com/tbarbosa/gitcv/internal/config"
	"github.com/tbarbosa/gitcv/internal/fetch"
	"github.com/tbarbosa/gitcv/internal/github"
	"github.com/tbarbosa/gitcv/internal/job"
	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/logger"
)

// runtime bundles the collaborators the subcommands share: config, logger,
// the response cache, and the fetcher built on top of both.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *cache.Store
	fetcher *fetch.Client
}

// newRuntime loads the config and wires the fetch stack. With noCache the
// response cache is not opened and every request goes to the network.
func newRuntime(noCache bool) (*runtime, error) {
	log, err := logger.New(flagJSON, flagDebug)
	if err != nil {
		return nil, fmt.Errorf("building logger failed: %w", err)
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	var store *cache.Store
	if !noCache && cfg.Fetch.CachePath != "" {
		store, err = cache.Open(cfg.Fetch.CachePath)
		if err != nil {
			log.Warn("response cache unavailable; continuing without it",
				zap.String("path", cfg.Fetch.CachePath), zap.Error(err))
			store = nil
		}
	}

	policy := fetch.DefaultPolicy()
	policy.MaxRetries = cfg.Fetch.MaxRetries
	policy.BaseDelay = cfg.Fetch.BaseDelay

	fetcher := fetch.NewClient(fetch.ClientConfig{
		Cache:    store,
		CacheTTL: cfg.Fetch.CacheTTL,
		Policy:   policy,
		Options:  &fetch.Options{Timeout: cfg.Fetch.Timeout},
		Logger:   log,
	})

	return &runtime{cfg: cfg, log: log, store: store, fetcher: fetcher}, nil
}

func (r *runtime) close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warn("closing response cache failed", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

// githubClient builds the collector for the configured account.
func (r *runtime) githubClient() *github.Client {
	return github.NewClient(github.Config{
		Fetcher:     r.fetcher,
		Username:    r.cfg.GitHub.Username,
		Token:       r.cfg.GitHub.Token,
		Concurrency: r.cfg.Fetch.Concurrency,
		Logger:      r.log,
	})
}

// jobResolver builds the resolver that turns --job-url/--job-file into text.
func (r *runtime) jobResolver() *job.Resolver {
	return job.NewResolver(r.fetcher, r.log)
}

// llmClient builds the generative client. The provider retries transport
// failures with the same backoff policy the fetcher uses.
func (r *runtime) llmClient(ctx context.Context) (llm.Client, error) {
	if r.cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("an API key is required: set llm.api_key in the config or the GEMINI_API_KEY environment variable")
	}

	llmCfg := llm.DefaultConfig()
	if r.cfg.LLM.Model != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, r.cfg.LLM.Model)
	}
	llmCfg.MaxRetries = r.cfg.LLM.MaxRetries
	llmCfg.Retry.MaxRetries = r.cfg.Fetch.MaxRetries
	llmCfg.Retry.BaseDelay = r.cfg.Fetch.BaseDelay

	return llm.NewClient(ctx, llmCfg, r.cfg.LLM.APIKey, r.log)
}

// jobSource validates the job input flags. Both set is an error; neither
// selects the resolver's built-in example posting.
func jobSource(jobURL, jobFile string) (job.Source, error) {
	if jobURL != "" && jobFile != "" {
		return job.Source{}, fmt.Errorf("--job-url and --job-file are mutually exclusive; provide only one")
	}
	return job.Source{URL: jobURL, FilePath: jobFile}, nil
}

// writeJSON marshals v with indentation to path, or to stdout when path is
// empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
