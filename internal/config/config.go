// Package config loads and validates the TOML configuration that drives a
// run: the resume owner's profile, the GitHub account to collect from,
// provider credentials, fetch behavior, and output placement.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/tbarbosa/gitcv/internal/types"
)

// DefaultFileName is the config file searched for when --config is not given.
const DefaultFileName = "gitcv.toml"

// Config is the full configuration tree, one section per TOML table.
type Config struct {
	Resume ResumeConfig `mapstructure:"resume"`
	GitHub GitHubConfig `mapstructure:"github"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Output OutputConfig `mapstructure:"output"`
}

// ResumeConfig describes the person the resume is about. Education and
// experience entries are supplied here as-is; the generator rewrites their
// bullets but never invents new entries.
type ResumeConfig struct {
	FullName string `mapstructure:"full_name" validate:"required"`
	Email    string `mapstructure:"email" validate:"omitempty,email"`
	Phone    string `mapstructure:"phone"`
	City     string `mapstructure:"city"`
	Country  string `mapstructure:"country"`
	LinkedIn string `mapstructure:"linkedin"`
	GitHub   string `mapstructure:"github"`
	Site     string `mapstructure:"site"`

	// Free-text notes passed to the generator alongside the structured
	// entries below.
	EducationContext  string `mapstructure:"education_context"`
	ExperienceContext string `mapstructure:"experience_context"`
	SkillsContext     string `mapstructure:"skills_context"`

	Education  []types.ResumeItem `mapstructure:"education"`
	Experience []types.ResumeItem `mapstructure:"experience"`
}

// GitHubConfig selects the account whose repositories are collected.
type GitHubConfig struct {
	Username string `mapstructure:"username" validate:"required"`
	// Token raises the API rate-limit budget; GITHUB_TOKEN is used when
	// the file leaves it empty.
	Token string `mapstructure:"token"`
}

// LLMConfig configures the generative provider.
type LLMConfig struct {
	// APIKey falls back to GEMINI_API_KEY when the file leaves it empty.
	APIKey string `mapstructure:"api_key"`
	// Model overrides the standard-tier model when set.
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries" validate:"gte=0"`
}

// FetchConfig tunes the shared HTTP fetcher and its response cache.
type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	CachePath   string        `mapstructure:"cache_path"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
}

// OutputConfig controls where and how the result is written.
type OutputConfig struct {
	Path     string `mapstructure:"path"`
	Language string `mapstructure:"language"`
	SaveTex  bool   `mapstructure:"save_tex"`
}

// Load reads the config file at path, or searches the working directory and
// the user config directory when path is empty. Defaults are applied before
// validation, and credentials left empty in the file fall back to the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".toml"))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "gitcv"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyEnv()
	cfg.Fetch.CachePath = expandPath(cfg.Fetch.CachePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.cache_path", "~/.cache/gitcv/http.db")
	v.SetDefault("fetch.cache_ttl", "24h")
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.base_delay", "500ms")
	v.SetDefault("output.path", "resume.pdf")
	v.SetDefault("output.language", "en")
	v.SetDefault("output.save_tex", false)
}

// applyEnv fills credentials from the environment when the file left them
// empty. The command layer loads .env before Load runs.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

// Validate checks required fields and ranges, reporting each violation by
// its config key.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "email":
		return fmt.Sprintf("%s is not a valid email address", key)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

// PersonalInfo returns the resume header fields as the record the document
// assembler consumes.
func (c *Config) PersonalInfo() types.PersonalInfo {
	return types.PersonalInfo{
		FullName: c.Resume.FullName,
		Email:    c.Resume.Email,
		Phone:    c.Resume.Phone,
		City:     c.Resume.City,
		Country:  c.Resume.Country,
		LinkedIn: c.Resume.LinkedIn,
		GitHub:   c.Resume.GitHub,
		Site:     c.Resume.Site,
	}
}

// expandPath resolves a leading ~/ against the home directory. The path is
// returned unchanged when the home directory cannot be resolved.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
