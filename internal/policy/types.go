// Package policy implements the hierarchical Configuration Resolver:
// given a routing coordinate, it returns the single effective AuthConfig
// or MappingDocument, consulting four precedence levels and caching
// results until the underlying configuration is mutated.
package policy

import "github.com/ocx/paygate/internal/core"

// Level names one of the four configuration precedence levels, highest
// first.
type Level string

const (
	LevelDownstreamCall   Level = "DOWNSTREAM_CALL"
	LevelPaymentType      Level = "PAYMENT_TYPE"
	LevelTenant           Level = "TENANT"
	LevelClearingSystem   Level = "CLEARING_SYSTEM"
)

// Levels is the precedence order, highest first, consulted in sequence
// until one yields a match.
var Levels = []Level{LevelDownstreamCall, LevelPaymentType, LevelTenant, LevelClearingSystem}

// AuthMethod selects which AuthConfig variant is populated.
type AuthMethod string

const (
	AuthJWT    AuthMethod = "JWT"
	AuthJWS    AuthMethod = "JWS"
	AuthOAuth2 AuthMethod = "OAUTH2"
	AuthAPIKey AuthMethod = "API_KEY"
	AuthBasic  AuthMethod = "BASIC"
)

// ClientHeaders optionally layers a client-id/secret pair onto outbound
// headers, independent of the primary AuthMethod.
type ClientHeaders struct {
	Enabled        bool
	ClientID       string
	ClientSecret   string
	IDHeaderName   string
	SecretHeaderName string
}

// JWTConfig holds the JWT variant's attributes.
type JWTConfig struct {
	Secret            string
	Issuer            string
	Audience          string
	ExpirationSeconds int
}

// JWSAlgorithm enumerates the signature algorithms a JWS AuthConfig may use.
type JWSAlgorithm string

const (
	AlgHS256 JWSAlgorithm = "HS256"
	AlgHS384 JWSAlgorithm = "HS384"
	AlgHS512 JWSAlgorithm = "HS512"
	AlgRS256 JWSAlgorithm = "RS256"
	AlgRS384 JWSAlgorithm = "RS384"
	AlgRS512 JWSAlgorithm = "RS512"
)

// JWSConfig holds the JWS variant's attributes. Exactly one of Secret or
// PublicKey is populated, depending on Algorithm's family (HS* vs RS*).
// PreviousSecret, when set, is honored until GraceUntil to support
// zero-downtime key rotation.
type JWSConfig struct {
	Secret            string
	PublicKey         string
	Algorithm         JWSAlgorithm
	Issuer            string
	Audience          string
	ExpirationSeconds int
	PreviousSecret    string
	GraceUntilUnixSec int64
}

// OAuth2Config holds the OAUTH2 variant's attributes.
type OAuth2Config struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string
}

// APIKeyConfig holds the API_KEY variant's attributes.
type APIKeyConfig struct {
	Key        string
	HeaderName string
}

// BasicConfig holds the BASIC variant's attributes.
type BasicConfig struct {
	Username string
	Password string
}

// AuthConfig is a tagged variant: Method selects which of the embedded
// configs is meaningful. Only one is ever populated at a time.
type AuthConfig struct {
	Method  AuthMethod
	JWT     *JWTConfig
	JWS     *JWSConfig
	OAuth2  *OAuth2Config
	APIKey  *APIKeyConfig
	Basic   *BasicConfig
	Headers *ClientHeaders
}

// AuthRecord is one configured AuthConfig at a given level, scoped to a
// coordinate. Unspecified coordinate fields act as wildcards when matched
// against a lookup coordinate.
type AuthRecord struct {
	Name       string
	Level      Level
	Coordinate core.PolicyCoordinate
	Config     AuthConfig
	Priority   int
	Active     bool
}
