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
)

// Connection states reported by TestConnection.
const (
	ConnSuccess  = "success"
	ConnDegraded = "degraded"
	ConnError    = "error"
)

// ConnResult is the outcome of a single health-check probe.
type ConnResult struct {
	State   string
	Message string
	Payload map[string]any
}

// TestConnection sends one health-check request to the endpoint, without
// retries. The probe succeeds only when the endpoint answers 2xx with a body
// that explicitly reports healthy and success; a reachable endpoint with any
// other body is degraded.
func (c *Client) TestConnection(ctx context.Context, endpoint string, timeout time.Duration) ConnResult {
	if timeout <= 0 {
		timeout = contract.DefaultRequestTimeoutMs * time.Millisecond
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]any{
		"healthCheck": true,
		"source":      contract.UISource,
		"sentAt":      time.Now().UTC().Format(time.RFC3339),
	})

	req, err := http.NewRequestWithContext(probeCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ConnResult{State: ConnError, Message: fmt.Sprintf("build health-check request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConnResult{State: ConnError, Message: fmt.Sprintf("endpoint unreachable: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ConnResult{State: ConnError, Message: fmt.Sprintf("read health-check response: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return ConnResult{State: ConnError, Message: fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ConnResult{State: ConnDegraded, Message: "endpoint reachable but returned a non-JSON body"}
	}
	healthy, _ := decoded["healthy"].(bool)
	success, _ := decoded["success"].(bool)
	if healthy && success {
		return ConnResult{State: ConnSuccess, Message: "endpoint healthy", Payload: decoded}
	}
	return ConnResult{State: ConnDegraded, Message: "endpoint reachable but did not report healthy", Payload: decoded}
}
