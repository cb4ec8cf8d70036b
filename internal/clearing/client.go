// Package clearing is the outbound HTTP client to a clearing-system
// endpoint, invoked only from inside a dispatcher.Call so every call it
// makes is already subject to the Resilient Dispatcher's rate limiter,
// bulkhead, circuit breaker, retry, and time limiter. It never retries or
// rate-limits on its own, following the same split the fraud-engine
// client keeps with internal/fraud's Gate.
package clearing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/dispatcher"
	"github.com/ocx/paygate/internal/policy"
)

// wireEnvelope is the expected response shape from §6: "Outbound (to
// clearing systems)... Expected response shape:
// {status, responseCode, responseMessage, payload, processingTimeMs, timestamp}".
type wireEnvelope struct {
	Status           string                 `json:"status"`
	ResponseCode     string                 `json:"responseCode"`
	ResponseMessage  string                 `json:"responseMessage"`
	Payload          map[string]interface{} `json:"payload"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
	Timestamp        string                 `json:"timestamp"`
}

// Client posts a mapped interbank message to a clearing-system endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	auth       policy.AuthConfig
	oauthToken string
}

// NewClient builds a Client bound to one clearing-system endpoint and the
// AuthConfig resolved for its coordinate.
func NewClient(endpoint string, timeout time.Duration, auth policy.AuthConfig, oauthToken string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		auth:       auth,
		oauthToken: oauthToken,
	}
}

// Call adapts Send into a dispatcher.Call, the shape Registry.Get(...).Execute
// expects.
func (c *Client) Call(payload core.Message) dispatcher.Call {
	return func(ctx context.Context) (dispatcher.Response, error) {
		return c.Send(ctx, payload)
	}
}

// Send posts payload (already mapped to the interbank shape) to the
// clearing endpoint and parses the wire envelope into a dispatcher.Response.
// Errors returned here are untagged; the dispatcher's classifyDispatchError
// tags them DISPATCH_TRANSIENT, matching the "single flaky call should not
// permanently fail a flow" policy.
func (c *Client) Send(ctx context.Context, payload core.Message) (dispatcher.Response, error) {
	body, err := json.Marshal(payload.WithoutMetadata())
	if err != nil {
		return dispatcher.Response{}, fmt.Errorf("clearing: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return dispatcher.Response{}, fmt.Errorf("clearing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := policy.ApplyAuth(req, c.auth, c.oauthToken); err != nil {
		return dispatcher.Response{}, fmt.Errorf("clearing: apply auth: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dispatcher.Response{}, fmt.Errorf("clearing: endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return dispatcher.Response{}, fmt.Errorf("clearing: endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return dispatcher.Response{StatusCode: resp.StatusCode}, fmt.Errorf("clearing: endpoint rejected request: status %d", resp.StatusCode)
	}

	var envelope wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return dispatcher.Response{}, fmt.Errorf("clearing: decode response: %w", err)
	}

	return dispatcher.Response{
		StatusCode:      resp.StatusCode,
		ResponseCode:    envelope.ResponseCode,
		ResponseMessage: envelope.ResponseMessage,
		Payload:         core.Message(envelope.Payload),
	}, nil
}
