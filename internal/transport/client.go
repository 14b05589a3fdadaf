// Package transport delivers webhook payloads with a bounded retry policy.
// It reports lifecycle events to the caller but never interprets the
// response body beyond JSON decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edugen/internal/contract"
	"edugen/internal/metrics"
)

// Fixed schedule: no delay before the first attempt.
var retryDelays = []time.Duration{0, 600 * time.Millisecond, 1200 * time.Millisecond}

// AttemptInfo is passed to OnAttempt before each delivery attempt. Purely
// observability; callers must not use it to alter control flow.
type AttemptInfo struct {
	Attempt       int
	TotalAttempts int
	IsRetry       bool
	Endpoint      string
	Timeout       time.Duration
}

// ResponseInfo is passed to OnResponse when an HTTP response arrives.
type ResponseInfo struct {
	Status  int
	Attempt int
}

// SendOptions configures one Send call.
type SendOptions struct {
	Endpoint   string
	Timeout    time.Duration
	OnAttempt  func(AttemptInfo)
	OnResponse func(ResponseInfo)
}

// StatusError is a non-2xx webhook response. Message carries the backend's
// own message when the body provided one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("webhook returned HTTP %d", e.Status)
}

type Client struct {
	httpClient *http.Client
}

func New() *Client {
	// Per-attempt timeouts are applied via context, not on the client.
	return &Client{httpClient: &http.Client{}}
}

// Send posts the payload to the endpoint, retrying transient failures on the
// fixed schedule. Retried failures are those with no response at all
// (network error, timeout) or a 5xx/429 status; anything else is terminal on
// first sight. On exhaustion the last error is returned.
func (c *Client) Send(ctx context.Context, payload contract.RequestPayload, opts SendOptions) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = contract.DefaultRequestTimeoutMs * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= len(retryDelays); attempt++ {
		if delay := retryDelays[attempt-1]; delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if opts.OnAttempt != nil {
			opts.OnAttempt(AttemptInfo{
				Attempt:       attempt,
				TotalAttempts: len(retryDelays),
				IsRetry:       attempt > 1,
				Endpoint:      opts.Endpoint,
				Timeout:       timeout,
			})
		}

		result, err := c.attempt(ctx, opts, body, timeout, attempt)
		if err == nil {
			metrics.RecordTransportAttempt(metrics.OutcomeSuccess)
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			metrics.RecordTransportAttempt(metrics.OutcomeTerminal)
			return nil, err
		}
		metrics.RecordTransportAttempt(metrics.OutcomeRetryable)
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, opts SendOptions, body []byte, timeout time.Duration, attempt int) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &StatusError{Message: fmt.Sprintf("build webhook request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if opts.OnResponse != nil {
		opts.OnResponse(ResponseInfo{Status: resp.StatusCode, Attempt: attempt})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Status: resp.StatusCode, Message: bodyMessage(raw)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &StatusError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed webhook response body: %v", err)}
	}
	return decoded, nil
}

// retryable reports whether an attempt error is worth another try: anything
// without a response, or a server-side/rate-limit status.
func retryable(err error) bool {
	if statusErr, ok := err.(*StatusError); ok {
		return statusErr.Status >= 500 || statusErr.Status == http.StatusTooManyRequests
	}
	return true
}

func bodyMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		return parsed.Message
	}
	return ""
}
