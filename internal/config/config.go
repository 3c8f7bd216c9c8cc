// Package config handles configuration loading for qqeval.
// It supports XDG config paths, project-level overrides, .env files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/qqeval/internal/retry"
)

// Providers of model services.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all configuration for qqeval.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Subject   SubjectConfig   `mapstructure:"subject"`
	Judge     JudgeConfig     `mapstructure:"judge"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Harness   HarnessConfig   `mapstructure:"harness"`
	Store     StoreConfig     `mapstructure:"store"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds settings for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SubjectConfig describes the model under test.
type SubjectConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=anthropic openai"`
	Model       string        `mapstructure:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature" validate:"gt=0,lte=2"`
	MaxTokens   int64         `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// JudgeConfig describes the classification model.
type JudgeConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider" validate:"oneof=anthropic openai"`
	Model    string        `mapstructure:"model" validate:"required_if=Enabled true"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// RetryConfig holds the retry policy for both model services.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"min=1,max=20"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"gtefield=InitialInterval"`
}

// HarnessConfig holds experiment execution settings.
type HarnessConfig struct {
	Runs              int     `mapstructure:"runs" validate:"min=1"`
	Concurrency       int     `mapstructure:"concurrency" validate:"min=1,max=64"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

// StoreConfig holds result store settings.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=jsonl sqlite"`
	Path    string `mapstructure:"path" validate:"required"`
}

// Policy converts the retry settings into a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = r.MaxAttempts
	p.InitialInterval = r.InitialInterval
	p.MaxInterval = r.MaxInterval
	return p
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, .env and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, QQEVAL_*)
// 2. .env in the current directory (never overrides the real environment)
// 3. Project config (.qqeval.yaml in current directory or parent)
// 4. User config (~/.config/qqeval/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of defaults
// and the environment.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// LoadDotEnv loads variables from the given .env files that exist. Variables
// already set in the environment are left alone.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QQEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys keep their conventional names.
	v.BindEnv("anthropic.api_key", "QQEVAL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.base_url", "QQEVAL_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL")
	v.BindEnv("openai.api_key", "QQEVAL_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "QQEVAL_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Store.Path = expandEnv(cfg.Store.Path)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)

	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)

	v.SetDefault("subject.provider", d.Subject.Provider)
	v.SetDefault("subject.model", d.Subject.Model)
	v.SetDefault("subject.temperature", d.Subject.Temperature)
	v.SetDefault("subject.max_tokens", d.Subject.MaxTokens)
	v.SetDefault("subject.timeout", d.Subject.Timeout.String())

	v.SetDefault("judge.enabled", d.Judge.Enabled)
	v.SetDefault("judge.provider", d.Judge.Provider)
	v.SetDefault("judge.model", d.Judge.Model)
	v.SetDefault("judge.timeout", d.Judge.Timeout.String())

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_interval", d.Retry.InitialInterval.String())
	v.SetDefault("retry.max_interval", d.Retry.MaxInterval.String())

	v.SetDefault("harness.runs", d.Harness.Runs)
	v.SetDefault("harness.concurrency", d.Harness.Concurrency)
	v.SetDefault("harness.requests_per_second", d.Harness.RequestsPerSecond)
	v.SetDefault("harness.burst", d.Harness.Burst)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
}

// getUserConfigDir returns the XDG config directory for qqeval.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "qqeval")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "qqeval")
	}
	return filepath.Join(home, ".config", "qqeval")
}

// findProjectConfig searches for .qqeval.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".qqeval.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Subject: SubjectConfig{
			Provider:    ProviderAnthropic,
			Model:       "claude-sonnet-4-5-20250929",
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     2 * time.Minute,
		},
		Judge: JudgeConfig{
			Enabled:  true,
			Provider: ProviderAnthropic,
			Model:    "claude-haiku-4-5-20251001",
			Timeout:  30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     retry.DefaultMaxAttempts,
			InitialInterval: retry.DefaultInitialInterval,
			MaxInterval:     retry.DefaultMaxInterval,
		},
		Harness: HarnessConfig{
			Runs:        3,
			Concurrency: 4,
		},
		Store: StoreConfig{
			Backend: "jsonl",
			Path:    filepath.Join("results", "results.jsonl"),
		},
	}
}
