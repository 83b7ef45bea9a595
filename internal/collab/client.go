// Package collab holds the JSON-over-HTTP clients for the collaborator
// services the assistant routes actions to: task storage, reminder
// scheduling, track search and remote auto-play.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anvesh29/mitra/internal/reliability"
	"github.com/anvesh29/mitra/pkg/log"
)

// Config is shared by every collaborator client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(cfg Config) client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

// postJSON sends one request and decodes the response body into out when
// out is non-nil. It does not retry; retry policy belongs to the caller.
func (c client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(slurp))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// postJSONRetry retries a single time on retryable statuses and transport
// errors, with a short pause between attempts.
func (c client) postJSONRetry(ctx context.Context, path string, body, out any) error {
	status, err := c.postJSON(ctx, path, body, out)
	if err == nil {
		return nil
	}
	if status != 0 && !reliability.IsRetryableHTTPStatus(status) {
		return err
	}
	log.Debug(log.Fields{"path": path, "status": status, "error": err.Error()}, "collaborator call retrying")
	select {
	case <-time.After(reliability.ExponentialBackoff(0, 200*time.Millisecond, time.Second)):
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err = c.postJSON(ctx, path, body, out)
	return err
}
