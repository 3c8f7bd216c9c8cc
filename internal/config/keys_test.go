package config

import (
	"errors"
	"testing"
)

func TestAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}
		key, err := APIKey(cfg, ProviderAnthropic)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		cfg := &Config{OpenAI: OpenAIConfig{APIKey: "sk-openai-config-key"}}
		key, err := APIKey(cfg, ProviderOpenAI)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-openai-config-key" {
			t.Errorf("expected 'sk-openai-config-key', got %q", key)
		}
	})

	t.Run("unresolved reference", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${QQEVAL_TEST_UNSET_KEY}"}}
		if _, err := APIKey(cfg, ProviderAnthropic); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Anthropic: AnthropicConfig{UseBedrock: true}}
		key, err := APIKey(cfg, ProviderAnthropic)
		if err != nil || key != "" {
			t.Errorf("APIKey() = %q, %v; want empty key and no error", key, err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		_, err := APIKey(&Config{}, ProviderOpenAI)
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := APIKey(&Config{}, "cohere"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"valid anthropic key", ProviderAnthropic, "sk-ant-REDACTED", false},
		{"valid openai key", ProviderOpenAI, "sk-proj-abcdefghijklmnopqrstuvwxyz", false},
		{"empty key", ProviderAnthropic, "", true},
		{"wrong prefix", ProviderAnthropic, "sk-openai-12345678901234567890", true},
		{"too short", ProviderAnthropic, "sk-ant-abc", true},
		{"short openai key", ProviderOpenAI, "sk-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"valid key", "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{"empty key", "", "(not set)"},
		{"short key", "short", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskAPIKey(tt.key)
			if result != tt.expected {
				t.Errorf("MaskAPIKey() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name     string
		env      string
		cfg      *Config
		provider string
		want     KeySource
	}{
		{"from environment", "sk-ant-env", &Config{}, ProviderAnthropic, KeySourceEnv},
		{"from config", "", &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}, ProviderAnthropic, KeySourceConfig},
		{"bedrock", "", &Config{Anthropic: AnthropicConfig{UseBedrock: true}}, ProviderAnthropic, KeySourceBedrock},
		{"no key", "", &Config{}, ProviderOpenAI, KeySourceNone},
		{"nil config", "", nil, ProviderOpenAI, KeySourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)
			if got := APIKeySource(tt.cfg, tt.provider); got != tt.want {
				t.Errorf("APIKeySource() = %v, want %v", got, tt.want)
			}
		})
	}
}
