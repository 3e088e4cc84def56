// Package llm provides the generative-model client and the shared
// schema-constrained generation protocol used by every model-facing stage.
package llm

import "github.com/tbarbosa/gitcv/internal/fetch"

// ModelTier represents the complexity/capability level of a model.
type ModelTier string

const (
	// TierLite is for simple tasks: classification, extraction.
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: ranking, structured output.
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: content authoring.
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider.
type Provider string

// Provider constants define supported LLM providers.
const (
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini Provider = "gemini"
)

// DefaultMaxRetries is the number of validation re-prompts after the first
// attempt.
const DefaultMaxRetries = 3

// Config holds the model configuration for the application.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// MaxRetries caps validation re-prompts per generation.
	MaxRetries int
	// Retry governs transport-level backoff toward the provider.
	Retry fetch.Policy
}

// DefaultConfig returns the default configuration (currently Gemini).
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration.
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		MaxRetries: DefaultMaxRetries,
		Retry:      fetch.DefaultPolicy(),
	}
}

// GetModel returns the model name for a given tier, falling back to the
// standard then lite tier when the requested one is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:   c.Provider,
		Models:     make(map[ModelTier]string, len(c.Models)),
		MaxRetries: c.MaxRetries,
		Retry:      c.Retry,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
