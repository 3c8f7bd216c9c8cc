package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	// Model is the default model for requests that do not name one.
	Model string
	// APIKey is the API key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL points at an OpenAI-compatible server (vLLM, Ollama, proxies).
	BaseURL string
}

// OpenAIClient implements Completer on top of the chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	tracker *TokenTracker
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// Model returns the configured default model name.
func (o *OpenAIClient) Model() string {
	return o.model
}

// Tracker returns the token tracker for this client.
func (o *OpenAIClient) Tracker() *TokenTracker {
	return o.tracker
}

// Complete sends a single-turn chat completion.
func (o *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	// A zero temperature is dropped by omitempty; the smallest float keeps it explicit.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		Temperature:         temperature,
		MaxCompletionTokens: int(req.maxTokens()),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: %w", &StatusError{StatusCode: http.StatusBadGateway, Message: "no choices returned"})
	}

	in, out := int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens)
	o.tracker.Add(in, out)

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		StopReason:   string(resp.Choices[0].FinishReason),
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
