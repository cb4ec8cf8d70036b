package policy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T) *http.Request {
	req, err := http.NewRequest(http.MethodPost, "https://clearing.example/payments", nil)
	require.NoError(t, err)
	return req
}

func TestApplyAuth_APIKey(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "secret-key", HeaderName: "X-Api-Key"}}
	require.NoError(t, ApplyAuth(req, cfg, ""))
	assert.Equal(t, "secret-key", req.Header.Get("X-Api-Key"))
}

func TestApplyAuth_APIKey_DefaultsHeaderName(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "secret-key"}}
	require.NoError(t, ApplyAuth(req, cfg, ""))
	assert.Equal(t, "secret-key", req.Header.Get("X-API-Key"))
}

func TestApplyAuth_Basic(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthBasic, Basic: &BasicConfig{Username: "alice", Password: "hunter2"}}
	require.NoError(t, ApplyAuth(req, cfg, ""))
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "hunter2", pass)
}

func TestApplyAuth_OAuth2RequiresPrefetchedToken(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthOAuth2}
	assert.Error(t, ApplyAuth(req, cfg, ""))

	req2 := newTestRequest(t)
	require.NoError(t, ApplyAuth(req2, cfg, "opaque-token"))
	assert.Equal(t, "Bearer opaque-token", req2.Header.Get("Authorization"))
}

func TestApplyAuth_JWT_SignsCompactToken(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthJWT, JWT: &JWTConfig{Secret: "shhh", Issuer: "ocx-gateway", Audience: "clearing-system"}}
	require.NoError(t, ApplyAuth(req, cfg, ""))

	auth := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "))
	parts := strings.Split(strings.TrimPrefix(auth, "Bearer "), ".")
	assert.Len(t, parts, 3, "a compact JWS has three dot-separated parts")
}

func TestApplyAuth_JWS_HS256(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: AuthJWS, JWS: &JWSConfig{Secret: "shhh", Algorithm: AlgHS256}}
	require.NoError(t, ApplyAuth(req, cfg, ""))
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer "))
}

func TestApplyAuth_UnknownMethod(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{Method: "BOGUS"}
	assert.Error(t, ApplyAuth(req, cfg, ""))
}

func TestApplyAuth_ClientHeadersLayeredOnTopOfPrimaryMethod(t *testing.T) {
	req := newTestRequest(t)
	cfg := AuthConfig{
		Method: AuthAPIKey,
		APIKey: &APIKeyConfig{Key: "secret-key", HeaderName: "X-Api-Key"},
		Headers: &ClientHeaders{
			Enabled:          true,
			ClientID:         "client-1",
			ClientSecret:     "client-secret",
			IDHeaderName:     "X-Client-Id",
			SecretHeaderName: "X-Client-Secret",
		},
	}
	require.NoError(t, ApplyAuth(req, cfg, ""))
	assert.Equal(t, "client-1", req.Header.Get("X-Client-Id"))
	assert.Equal(t, "client-secret", req.Header.Get("X-Client-Secret"))
	assert.Equal(t, "secret-key", req.Header.Get("X-Api-Key"))
}

func TestActiveJWSSecret_HonorsPreviousSecretDuringGraceWindow(t *testing.T) {
	cfg := &JWSConfig{
		Secret:            "new-secret",
		PreviousSecret:    "old-secret",
		GraceUntilUnixSec: time.Now().Add(time.Hour).Unix(),
	}

	secret, ok := ActiveJWSSecret(cfg, "new-secret")
	require.True(t, ok)
	assert.Equal(t, "new-secret", secret)

	secret, ok = ActiveJWSSecret(cfg, "old-secret")
	require.True(t, ok)
	assert.Equal(t, "old-secret", secret)

	_, ok = ActiveJWSSecret(cfg, "unknown-secret")
	assert.False(t, ok)
}

func TestActiveJWSSecret_RejectsPreviousSecretAfterGraceWindow(t *testing.T) {
	cfg := &JWSConfig{
		Secret:            "new-secret",
		PreviousSecret:    "old-secret",
		GraceUntilUnixSec: time.Now().Add(-time.Hour).Unix(),
	}
	_, ok := ActiveJWSSecret(cfg, "old-secret")
	assert.False(t, ok)
}

func TestApplyAuth_APIKeyUsableAgainstRealHTTPServer(t *testing.T) {
	var receivedKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	cfg := AuthConfig{Method: AuthAPIKey, APIKey: &APIKeyConfig{Key: "secret-key", HeaderName: "X-Api-Key"}}
	require.NoError(t, ApplyAuth(req, cfg, ""))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "secret-key", receivedKey)
}
