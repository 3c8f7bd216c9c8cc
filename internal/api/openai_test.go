package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Complete(t *testing.T) {
	var captured map[string]any
	srv := chatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Vaccines train the immune system."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 6, "total_tokens": 26}
	}`, &captured)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		System:      "Answer plainly.",
		User:        "How do vaccines work?",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != "Vaccines train the immune system." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.InputTokens != 20 || resp.OutputTokens != 6 {
		t.Errorf("tokens = %d/%d, want 20/6", resp.InputTokens, resp.OutputTokens)
	}
	if client.Tracker().Calls() != 1 {
		t.Errorf("tracker calls = %d, want 1", client.Tracker().Calls())
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages sent = %v, want system + user", captured["messages"])
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "Answer plainly." {
		t.Errorf("first message = %v", first)
	}
}

func TestOpenAIClient_ZeroTemperatureIsSent(t *testing.T) {
	var captured map[string]any
	srv := chatServer(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"{}"}}]}`, &captured)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	if _, err := client.Complete(context.Background(), Request{User: "classify", Temperature: 0}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	temp, ok := captured["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request: %v", captured)
	}
	if temp > 1e-6 {
		t.Errorf("temperature = %v, want effectively zero", temp)
	}
	if _, ok := captured["messages"].([]any); !ok {
		t.Errorf("messages missing")
	}
}

func TestOpenAIClient_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, `{"error":{"message":"nope","type":"test_error"}}`, nil)

			client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
			if err != nil {
				t.Fatalf("NewOpenAIClient failed: %v", err)
			}

			_, err = client.Complete(context.Background(), Request{User: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", got, tt.transient, err)
			}
		})
	}
}

func TestOpenAIClient_NoChoicesIsTransient(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[]}`, nil)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), Request{User: "hi"})
	if !IsTransient(err) {
		t.Errorf("empty choices should be retryable, got %v", err)
	}
}
