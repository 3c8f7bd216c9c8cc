package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// StatusError is a provider-neutral HTTP failure.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from an error returned by any of the
// supported clients.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.HTTPStatusCode != 0 {
		return openaiErr.HTTPStatusCode, true
	}
	var requestErr *openai.RequestError
	if errors.As(err, &requestErr) && requestErr.HTTPStatusCode != 0 {
		return requestErr.HTTPStatusCode, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying: rate limiting, timeouts,
// server-side failures and dropped connections. Authentication failures,
// malformed requests and unrecognized errors are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if code, ok := StatusCode(err); ok {
		return transientStatus(code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooManyRequests:
		return true
	case code >= http.StatusInternalServerError:
		// Includes Anthropic's 529 overloaded.
		return true
	default:
		return false
	}
}
