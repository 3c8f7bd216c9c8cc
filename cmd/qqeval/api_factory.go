package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/qqeval/internal/api"
	"github.com/ShayCichocki/qqeval/internal/config"
)

// newCompleter creates a throttled client for provider. Clients sharing
// limiter share its request budget.
func newCompleter(cfg *config.Config, provider, model string, limiter *rate.Limiter) (api.Completer, error) {
	key, err := config.APIKey(cfg, provider)
	if err != nil && !(provider == config.ProviderOpenAI && cfg.OpenAI.BaseURL != "") {
		return nil, err
	}

	var client api.Completer
	switch provider {
	case config.ProviderAnthropic:
		client, err = api.NewClient(api.ClientConfig{
			Model:         anthropic.Model(model),
			APIKey:        key,
			BaseURL:       cfg.Anthropic.BaseURL,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	case config.ProviderOpenAI:
		client, err = api.NewOpenAIClient(api.OpenAIConfig{
			Model:   model,
			APIKey:  key,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return tracked{Completer: api.Throttle(client, limiter), tracker: trackerOf(client)}, nil
}

// tracked keeps the token tracker reachable through the throttle wrapper.
type tracked struct {
	api.Completer
	tracker *api.TokenTracker
}

func (t tracked) Tracker() *api.TokenTracker {
	return t.tracker
}

func trackerOf(c api.Completer) *api.TokenTracker {
	if t, ok := c.(api.Tracked); ok {
		return t.Tracker()
	}
	return nil
}
