package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func echoCompleter() Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Text: req.User}, nil
	})
}

func TestNewLimiter(t *testing.T) {
	if NewLimiter(0, 1) != nil {
		t.Error("zero rps should disable limiting")
	}
	lim := NewLimiter(5, 0)
	if lim == nil {
		t.Fatal("expected limiter")
	}
	if lim.Burst() != 1 {
		t.Errorf("Burst = %d, want 1", lim.Burst())
	}
}

func TestThrottle_NilLimiterPassesThrough(t *testing.T) {
	inner := echoCompleter()
	if got := Throttle(inner, nil); got == nil {
		t.Fatal("Throttle returned nil")
	}
	resp, err := Throttle(inner, nil).Complete(context.Background(), Request{User: "x"})
	if err != nil || resp.Text != "x" {
		t.Errorf("Complete = %v, %v", resp, err)
	}
}

func TestThrottle_DeadlineTooShortIsRateLimited(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := Throttle(echoCompleter(), lim)

	// First call consumes the only token.
	if _, err := c.Complete(context.Background(), Request{User: "a"}); err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{User: "b"})
	if err == nil {
		t.Fatal("expected error when the limiter cannot admit the call before the deadline")
	}
	code, ok := StatusCode(err)
	if !ok || code != 429 {
		t.Errorf("StatusCode = %d, %v; want 429", code, ok)
	}
	if !IsTransient(err) {
		t.Errorf("local rate limiting should be transient")
	}
}

func TestThrottle_CancelledContext(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	lim.Allow()
	c := Throttle(echoCompleter(), lim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, Request{User: "b"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
