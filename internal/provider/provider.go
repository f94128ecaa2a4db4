// Package provider turns a text concept into an SVG document by calling a
// text-generation model.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ivlev/concept2video/internal/domain"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyResponse   = errors.New("empty completion")
	ErrMissingKey      = errors.New("api key is not set")
)

// Generator produces the raw model response for a concept. The response is
// free text that should contain one <svg> document.
type Generator interface {
	Generate(ctx context.Context, concept string) (string, error)
}

// HTTPError is a non-2xx answer from a model API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is a transient provider failure: rate
// limiting, a server error or a network failure. Cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// postJSON sends body to url and decodes the JSON answer into out.
func postJSON(ctx context.Context, client *http.Client, op, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Wrap(domain.KindInternal, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Wrap(domain.KindProvider, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return domain.Wrap(domain.KindCancelled, op, ctx.Err())
		}
		return domain.Wrap(domain.KindProvider, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Wrap(domain.KindProvider, op, err)
	}
	if resp.StatusCode >= 400 {
		return domain.Wrap(domain.KindProvider, op, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)})
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.Wrap(domain.KindProvider, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func nonEmpty(op, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.Wrap(domain.KindProvider, op, ErrEmptyResponse)
	}
	return text, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
