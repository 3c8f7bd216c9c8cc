// Package collect obtains responses from the model under test.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/qqeval/internal/api"
	"github.com/ShayCichocki/qqeval/internal/retry"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Collector defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTimeout     = 2 * time.Minute
)

// ErrInvalidTemperature is returned for a non-positive sampling temperature.
var ErrInvalidTemperature = errors.New("temperature must be greater than zero")

// Config configures how responses are sampled.
type Config struct {
	// Model overrides the completer's default model when set.
	Model       string
	Temperature float64
	MaxTokens   int64
	// Timeout bounds a single attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	Retry   retry.Policy
}

// DefaultConfig returns the sampling settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
		Retry:       retry.DefaultPolicy(),
	}
}

// Response is one sampled reply from the model under test.
type Response struct {
	Text string
	// Latency is the duration of the successful attempt.
	Latency      time.Duration
	Attempts     int
	InputTokens  int64
	OutputTokens int64
}

// Collector sends prompts to the model under test under a condition's
// system instruction.
type Collector struct {
	client api.Completer
	cfg    Config
	logger *zap.Logger
}

// New creates a collector. A nil logger discards output.
func New(client api.Completer, cfg Config, logger *zap.Logger) (*Collector, error) {
	if client == nil {
		return nil, errors.New("collector requires a completer")
	}
	if cfg.Temperature <= 0 {
		return nil, ErrInvalidTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = api.IsTransient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{client: client, cfg: cfg, logger: logger}, nil
}

// Temperature returns the configured sampling temperature.
func (c *Collector) Temperature() float64 {
	return c.cfg.Temperature
}

// Collect samples one response to prompt under cond. Transient failures are
// retried according to the configured policy; the returned error is either
// permanent, an *retry.ExhaustedError, or the context's error.
func (c *Collector) Collect(ctx context.Context, prompt models.TestPrompt, cond models.Condition) (Response, error) {
	req := api.Request{
		Model:       c.cfg.Model,
		System:      cond.SystemInstruction,
		User:        prompt.Text,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	policy := c.cfg.Retry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Info("collect failed, retrying",
			zap.String("condition", cond.ID),
			zap.String("prompt", prompt.ID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	var latency time.Duration
	resp, attempts, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*api.Response, error) {
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
		start := time.Now()
		resp, err := c.client.Complete(ctx, req)
		latency = time.Since(start)
		return resp, err
	})
	if err != nil {
		return Response{Attempts: attempts}, fmt.Errorf("collect %s/%s: %w", cond.ID, prompt.ID, err)
	}

	return Response{
		Text:         resp.Text,
		Latency:      latency,
		Attempts:     attempts,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
