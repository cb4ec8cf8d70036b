package policy

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"time"

	josejwt "github.com/go-jose/go-jose/v4"
)

// ApplyAuth attaches the credentials an AuthConfig variant describes to an
// outbound request, signing a fresh token where the variant requires one.
// OAUTH2 is handled by the caller supplying a pre-fetched bearer token in
// oauthToken, since token acquisition is itself a network call the
// Resilient Dispatcher should wrap, not this package.
func ApplyAuth(req *http.Request, cfg AuthConfig, oauthToken string) error {
	if cfg.Headers != nil && cfg.Headers.Enabled {
		if cfg.Headers.IDHeaderName != "" {
			req.Header.Set(cfg.Headers.IDHeaderName, cfg.Headers.ClientID)
		}
		if cfg.Headers.SecretHeaderName != "" {
			req.Header.Set(cfg.Headers.SecretHeaderName, cfg.Headers.ClientSecret)
		}
	}

	switch cfg.Method {
	case AuthAPIKey:
		if cfg.APIKey == nil {
			return fmt.Errorf("policy: API_KEY auth config missing")
		}
		header := cfg.APIKey.HeaderName
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, cfg.APIKey.Key)
		return nil

	case AuthBasic:
		if cfg.Basic == nil {
			return fmt.Errorf("policy: BASIC auth config missing")
		}
		req.SetBasicAuth(cfg.Basic.Username, cfg.Basic.Password)
		return nil

	case AuthOAuth2:
		if oauthToken == "" {
			return fmt.Errorf("policy: OAUTH2 auth requires a pre-fetched token")
		}
		req.Header.Set("Authorization", "Bearer "+oauthToken)
		return nil

	case AuthJWT:
		token, err := signJWT(cfg.JWT)
		if err != nil {
			return fmt.Errorf("policy: sign JWT: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil

	case AuthJWS:
		token, err := signJWS(cfg.JWS)
		if err != nil {
			return fmt.Errorf("policy: sign JWS: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil

	default:
		return fmt.Errorf("policy: unknown auth method %q", cfg.Method)
	}
}

// jwtClaims is the standard claim set the JWT variant signs. It carries no
// tenant-specific payload: the outbound body itself is the request the
// token merely authenticates.
type jwtClaims struct {
	Iss string `json:"iss,omitempty"`
	Aud string `json:"aud,omitempty"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// signJWT builds a JWT as a compact JWS over an HMAC-SHA256 claims payload
// — a JWT is a JWS whose payload happens to be a JSON claim set, so it is
// built directly on go-jose's JWS primitives rather than a second,
// redundant JWT library.
func signJWT(cfg *JWTConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("JWT auth config missing")
	}
	now := time.Now()
	expSeconds := cfg.ExpirationSeconds
	if expSeconds <= 0 {
		expSeconds = 3600
	}
	claims := jwtClaims{
		Iss: cfg.Issuer,
		Aud: cfg.Audience,
		Iat: now.Unix(),
		Exp: now.Add(time.Duration(expSeconds) * time.Second).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return signCompact(josejwt.HS256, []byte(cfg.Secret), payload)
}

// signJWS signs a request-authentication envelope carrying the variant's
// own claim shape. It always signs with the current key; PreviousSecret is
// not used here and is consulted only by ActiveJWSSecret.
func signJWS(cfg *JWSConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("JWS auth config missing")
	}
	alg, err := joseAlgorithm(cfg.Algorithm)
	if err != nil {
		return "", err
	}

	now := time.Now()
	expSeconds := cfg.ExpirationSeconds
	if expSeconds <= 0 {
		expSeconds = 3600
	}
	claims := jwtClaims{
		Iss: cfg.Issuer,
		Aud: cfg.Audience,
		Iat: now.Unix(),
		Exp: now.Add(time.Duration(expSeconds) * time.Second).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	key, err := jwsSigningKey(cfg, alg)
	if err != nil {
		return "", err
	}
	return signCompact(alg, key, payload)
}

// ActiveJWSSecret returns the secret that should currently be used to
// verify a previously-issued JWS token: the primary Secret, or
// PreviousSecret while within its GraceUntilUnixSec window.
func ActiveJWSSecret(cfg *JWSConfig, presented string) (string, bool) {
	if cfg == nil {
		return "", false
	}
	if presented == cfg.Secret {
		return cfg.Secret, true
	}
	if cfg.PreviousSecret != "" && time.Now().Unix() < cfg.GraceUntilUnixSec && presented == cfg.PreviousSecret {
		return cfg.PreviousSecret, true
	}
	return "", false
}

func joseAlgorithm(alg JWSAlgorithm) (josejwt.SignatureAlgorithm, error) {
	switch alg {
	case AlgHS256:
		return josejwt.HS256, nil
	case AlgHS384:
		return josejwt.HS384, nil
	case AlgHS512:
		return josejwt.HS512, nil
	case AlgRS256:
		return josejwt.RS256, nil
	case AlgRS384:
		return josejwt.RS384, nil
	case AlgRS512:
		return josejwt.RS512, nil
	default:
		return "", fmt.Errorf("policy: unsupported JWS algorithm %q", alg)
	}
}

func jwsSigningKey(cfg *JWSConfig, alg josejwt.SignatureAlgorithm) (interface{}, error) {
	switch alg {
	case josejwt.HS256, josejwt.HS384, josejwt.HS512:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("policy: HMAC algorithm requires Secret")
		}
		return []byte(cfg.Secret), nil
	case josejwt.RS256, josejwt.RS384, josejwt.RS512:
		if cfg.PublicKey == "" {
			return nil, fmt.Errorf("policy: RSA algorithm requires a configured key")
		}
		return parseRSAPrivateKey(cfg.PublicKey)
	default:
		return nil, fmt.Errorf("policy: unsupported algorithm %q", alg)
	}
}

func parseRSAPrivateKey(pemText string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("policy: invalid PEM block for RSA key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("policy: parse RSA key: %w", err)
	}
	return key, nil
}

func signCompact(alg josejwt.SignatureAlgorithm, key interface{}, payload []byte) (string, error) {
	signer, err := josejwt.NewSigner(josejwt.SigningKey{Algorithm: alg, Key: key}, nil)
	if err != nil {
		return "", fmt.Errorf("build signer: %w", err)
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return obj.CompactSerialize()
}
