package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qqeval/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration a run would use, after merging defaults,
the user config, the project config, .env and the environment.

User configuration is read from ~/.config/qqeval/config.yaml
Project-specific overrides can be placed in .qqeval.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		displayAllConfig(cmd.OutOrStdout(), cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return nil
	},
}

// displayAllConfig prints all configuration values with keys masked.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "user config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintf(w, "project config: %s\n", p)
	}
	fmt.Fprintln(w)

	for _, provider := range []string{config.ProviderAnthropic, config.ProviderOpenAI} {
		key, _ := config.APIKey(cfg, provider)
		fmt.Fprintf(w, "%s.api_key: %s (%s)\n", provider, config.MaskAPIKey(key), config.APIKeySource(cfg, provider))
	}
	fmt.Fprintf(w, "anthropic.base_url: %s\n", cfg.Anthropic.BaseURL)
	fmt.Fprintf(w, "anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Fprintf(w, "openai.base_url: %s\n", cfg.OpenAI.BaseURL)
	fmt.Fprintf(w, "subject.provider: %s\n", cfg.Subject.Provider)
	fmt.Fprintf(w, "subject.model: %s\n", cfg.Subject.Model)
	fmt.Fprintf(w, "subject.temperature: %g\n", cfg.Subject.Temperature)
	fmt.Fprintf(w, "subject.max_tokens: %d\n", cfg.Subject.MaxTokens)
	fmt.Fprintf(w, "subject.timeout: %s\n", cfg.Subject.Timeout)
	fmt.Fprintf(w, "judge.enabled: %t\n", cfg.Judge.Enabled)
	fmt.Fprintf(w, "judge.provider: %s\n", cfg.Judge.Provider)
	fmt.Fprintf(w, "judge.model: %s\n", cfg.Judge.Model)
	fmt.Fprintf(w, "judge.timeout: %s\n", cfg.Judge.Timeout)
	fmt.Fprintf(w, "retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(w, "retry.initial_interval: %s\n", cfg.Retry.InitialInterval)
	fmt.Fprintf(w, "retry.max_interval: %s\n", cfg.Retry.MaxInterval)
	fmt.Fprintf(w, "harness.runs: %d\n", cfg.Harness.Runs)
	fmt.Fprintf(w, "harness.concurrency: %d\n", cfg.Harness.Concurrency)
	fmt.Fprintf(w, "harness.requests_per_second: %g\n", cfg.Harness.RequestsPerSecond)
	fmt.Fprintf(w, "harness.burst: %d\n", cfg.Harness.Burst)
	fmt.Fprintf(w, "store.backend: %s\n", cfg.Store.Backend)
	fmt.Fprintf(w, "store.path: %s\n", cfg.Store.Path)
}
