package policy

import (
	"encoding/json"
	"fmt"
)

// authConfigJSON is the wire representation of the AuthConfig tagged
// union persisted in a single JSON column per configuration record.
type authConfigJSON struct {
	Method  AuthMethod     `json:"method"`
	JWT     *JWTConfig     `json:"jwt,omitempty"`
	JWS     *JWSConfig     `json:"jws,omitempty"`
	OAuth2  *OAuth2Config  `json:"oauth2,omitempty"`
	APIKey  *APIKeyConfig  `json:"apiKey,omitempty"`
	Basic   *BasicConfig   `json:"basic,omitempty"`
	Headers *ClientHeaders `json:"headers,omitempty"`
}

// MarshalAuthConfig encodes an AuthConfig to its JSON wire form.
func MarshalAuthConfig(cfg AuthConfig) ([]byte, error) {
	return json.Marshal(authConfigJSON{
		Method:  cfg.Method,
		JWT:     cfg.JWT,
		JWS:     cfg.JWS,
		OAuth2:  cfg.OAuth2,
		APIKey:  cfg.APIKey,
		Basic:   cfg.Basic,
		Headers: cfg.Headers,
	})
}

// UnmarshalAuthConfig decodes an AuthConfig from its JSON wire form.
func UnmarshalAuthConfig(raw []byte) (AuthConfig, error) {
	var decoded authConfigJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return AuthConfig{}, fmt.Errorf("policy: decode auth config: %w", err)
	}
	switch decoded.Method {
	case AuthJWT, AuthJWS, AuthOAuth2, AuthAPIKey, AuthBasic:
	default:
		return AuthConfig{}, fmt.Errorf("policy: unknown auth method %q", decoded.Method)
	}
	return AuthConfig{
		Method:  decoded.Method,
		JWT:     decoded.JWT,
		JWS:     decoded.JWS,
		OAuth2:  decoded.OAuth2,
		APIKey:  decoded.APIKey,
		Basic:   decoded.Basic,
		Headers: decoded.Headers,
	}, nil
}
