package clearing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/policy"
)

func TestClient_Send_ParsesWireEnvelope(t *testing.T) {
	var receivedAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("X-Api-Key")
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MSG-001", body["MsgId"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           "ACCEPTED",
			"responseCode":     "ACSC",
			"responseMessage":  "settled",
			"payload":          map[string]interface{}{"TxSts": "ACSC"},
			"processingTimeMs": 12,
			"timestamp":        "2026-07-31T10:00:00Z",
		})
	}))
	defer srv.Close()

	auth := policy.AuthConfig{Method: policy.AuthAPIKey, APIKey: &policy.APIKeyConfig{Key: "clearing-secret", HeaderName: "X-Api-Key"}}
	client := NewClient(srv.URL, 5*time.Second, auth, "")

	payload := core.NewMessage()
	payload.Set("MsgId", "MSG-001")

	resp, err := client.Send(t.Context(), payload)
	require.NoError(t, err)
	assert.Equal(t, "clearing-secret", receivedAuth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ACSC", resp.ResponseCode)
	txSts, ok := resp.Payload.Get("TxSts")
	require.True(t, ok)
	assert.Equal(t, "ACSC", txSts)
}

func TestClient_Send_ServerErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, policy.AuthConfig{Method: policy.AuthAPIKey, APIKey: &policy.APIKeyConfig{Key: "x"}}, "")
	_, err := client.Send(t.Context(), core.NewMessage())
	assert.Error(t, err)
}

func TestClient_Send_ClientErrorReturnsStatusCodeAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, policy.AuthConfig{Method: policy.AuthAPIKey, APIKey: &policy.APIKeyConfig{Key: "x"}}, "")
	resp, err := client.Send(t.Context(), core.NewMessage())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClient_Call_AdaptsSendToDispatcherCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"responseCode": "ACSC"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, policy.AuthConfig{Method: policy.AuthAPIKey, APIKey: &policy.APIKeyConfig{Key: "x"}}, "")
	call := client.Call(core.NewMessage())
	resp, err := call(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ACSC", resp.ResponseCode)
}
