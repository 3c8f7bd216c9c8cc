package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when a provider needs a key and none is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// envKeys maps each provider to the environment variable read before config.
var envKeys = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
}

// APIKey returns the key for the given provider. The environment variable
// wins over the config file. Anthropic via Bedrock needs no key and returns "".
func APIKey(cfg *Config, provider string) (string, error) {
	env, ok := envKeys[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	if provider == ProviderAnthropic && cfg != nil && cfg.Anthropic.UseBedrock {
		return "", nil
	}

	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	if key := configKey(cfg, provider); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%s: %w (set %s)", provider, ErrNoAPIKey, env)
}

func configKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	raw := cfg.Anthropic.APIKey
	if provider == ProviderOpenAI {
		raw = cfg.OpenAI.APIKey
	}
	// Unresolved ${VAR} references count as unset
	key := os.ExpandEnv(raw)
	if key == "" || strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey performs basic format checks on a key. It does not contact
// the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderOpenAI:
		// Compatible endpoints issue arbitrary keys
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// APIKeySource reports where the provider's key would be loaded from.
func APIKeySource(cfg *Config, provider string) KeySource {
	if provider == ProviderAnthropic && cfg != nil && cfg.Anthropic.UseBedrock {
		return KeySourceBedrock
	}
	if env, ok := envKeys[provider]; ok && os.Getenv(env) != "" {
		return KeySourceEnv
	}
	if configKey(cfg, provider) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
