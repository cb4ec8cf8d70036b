package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ocx/paygate/internal/core"
)

// HTTPClient is the default fraud-engine client: a JSON POST authenticated
// per the tenant's AuthConfig, grounded on the teacher's entropy-service
// HTTP call in internal/escrow/gate.go (client construction, timeout, and
// status handling).
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	authHeader func(*http.Request)
}

// NewHTTPClient builds a client posting to endpoint. authHeader, if
// non-nil, is applied to every outbound request to attach the resolved
// AuthConfig.
func NewHTTPClient(endpoint string, timeout time.Duration, authHeader func(*http.Request)) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		authHeader: authHeader,
	}
}

func (c *HTTPClient) Assess(ctx context.Context, requestBody map[string]interface{}) (EngineResponse, error) {
	body, err := json.Marshal(requestBody)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != nil {
		c.authHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return EngineResponse{}, fmt.Errorf("fraud: engine returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Decision  core.FraudDecision `json:"decision"`
		RiskLevel core.RiskLevel     `json:"riskLevel"`
		RiskScore float64            `json:"riskScore"`
		Reason    string             `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: decode response: %w", err)
	}

	return EngineResponse{
		Decision:  decoded.Decision,
		RiskLevel: decoded.RiskLevel,
		RiskScore: decoded.RiskScore,
		Reason:    decoded.Reason,
	}, nil
}
