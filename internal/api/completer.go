package api

import "context"

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 1024

// Request is a single-turn completion request: a system instruction and one
// user message.
type Request struct {
	// Model overrides the client's default model when set.
	Model string
	// System is the system instruction. Empty means none.
	System string
	// User is the user message.
	User string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the response length.
	MaxTokens int64
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Response is the text returned by a model service.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Completer sends one request to a model service.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
