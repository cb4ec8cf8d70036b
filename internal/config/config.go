package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// OCX Payment Scheme Gateway - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server              ServerConfig              `yaml:"server"`
	Database            DatabaseConfig            `yaml:"database"`
	Security            SecurityConfig            `yaml:"security"`
	Redis               RedisConfig               `yaml:"redis"`
	PubSub              PubSubConfig              `yaml:"pubsub"`
	CloudTasks          CloudTasksConfig          `yaml:"cloud_tasks"`
	Webhook             WebhookConfig             `yaml:"webhook"`
	ISO20022            ISO20022Config            `yaml:"iso20022"`
	ResilienceDefaults  ResilienceDefaultsConfig  `yaml:"resilience_defaults"`
	Services            ServicesConfig            `yaml:"services"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// DatabaseConfig for Supabase, with an alternate Postgres DSN for the
// durable dedup store.
type DatabaseConfig struct {
	Supabase SupabaseConfig `yaml:"supabase"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SecurityConfig holds the HMAC secret used by the JWT/JWS AuthConfig
// signing path when a tenant's auth record doesn't carry its own key, plus
// the ingress API key hashing cost.
type SecurityConfig struct {
	HMACSecret   string `yaml:"hmac_secret"`
	BcryptCost   int    `yaml:"bcrypt_cost"`
	TokenTTLSec  int    `yaml:"token_ttl_sec"`
}

// RedisConfig backs the shared SequenceStore (SEQUENTIAL AutoGeneration
// counters).
// Addr empty means Redis is not configured; callers fall back to an
// in-memory, per-replica implementation.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PubSubConfig for the Google Cloud Pub/Sub flow/audit event bus.
type PubSubConfig struct {
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
	Enabled   bool   `yaml:"enabled"`
}

// CloudTasksConfig for durable webhook delivery via Google Cloud Tasks.
type CloudTasksConfig struct {
	ProjectID   string `yaml:"project_id"`
	LocationID  string `yaml:"location_id"`
	QueueID     string `yaml:"queue_id"`
	CallbackURL string `yaml:"callback_url"`
	Enabled     bool   `yaml:"enabled"`
}

// WebhookConfig for the Webhook Delivery Engine's in-process worker pool.
type WebhookConfig struct {
	WorkerCount      int `yaml:"worker_count"`
	MaxAttempts      int `yaml:"max_attempts"`
	BaseDelaySeconds int `yaml:"base_delay_seconds"`
}

// ISO20022Config bounds the ISO 20022 Canonicalizer's ingress handling.
type ISO20022Config struct {
	MaxPayloadBytes    int64 `yaml:"max_payload_bytes"`
	StrictValidation   bool  `yaml:"strict_validation"`
}

// ResilienceDefaultsConfig seeds the Resilient Dispatcher's package-wide
// defaults before any per-(serviceName, tenantId) override from the
// Configuration Resolver is applied.
type ResilienceDefaultsConfig struct {
	RetryMaxAttempts        int     `yaml:"retry_max_attempts"`
	RetryBaseWaitMs         int     `yaml:"retry_base_wait_ms"`
	RetryMaxWaitMs          int     `yaml:"retry_max_wait_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier"`
	BulkheadMaxConcurrent   int64   `yaml:"bulkhead_max_concurrent"`
	BulkheadMaxWaitMs       int     `yaml:"bulkhead_max_wait_ms"`
	TimeLimiterMs           int     `yaml:"time_limiter_ms"`
	RateLimitPerSecond      float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst          int     `yaml:"rate_limit_burst"`
	CircuitFailureThreshold float64 `yaml:"circuit_failure_threshold"`
	CircuitMinimumCalls     int     `yaml:"circuit_minimum_calls"`
}

// ServicesConfig carries URLs for bank-side services the gateway calls out
// to directly rather than through the per-tenant Configuration Resolver.
type ServicesConfig struct {
	ActivityRegistryURL string `yaml:"activity_registry_url"`
	FraudGRPCAddr       string `yaml:"fraud_grpc_addr"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance. It loads a .env file first
// (silently skipped when absent — production runs on real environment
// variables, not a dotfile), then the YAML config, then applies env
// overrides on top of both.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("Config: failed to load .env file", "error", err)
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("Config: failed to load config file: (using defaults)", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from YAML file
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	// Server
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("OCX_ENV", c.Server.Env)
	c.Server.Interface = getEnv("OCX_INTERFACE", c.Server.Interface)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	// Database
	c.Database.Supabase.URL = getEnv("SUPABASE_URL", c.Database.Supabase.URL)
	c.Database.Supabase.ServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Database.Supabase.ServiceKey)
	c.Database.Postgres.DSN = getEnv("DEDUP_DATABASE_URL", c.Database.Postgres.DSN)

	// Security
	c.Security.HMACSecret = getEnv("OCX_HMAC_SECRET", c.Security.HMACSecret)
	if v := getEnvInt("OCX_BCRYPT_COST", 0); v > 0 {
		c.Security.BcryptCost = v
	}
	if v := getEnvInt("OCX_TOKEN_TTL_SEC", 0); v > 0 {
		c.Security.TokenTTLSec = v
	}

	// Redis
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := getEnvInt("REDIS_DB", 0); v > 0 {
		c.Redis.DB = v
	}

	// Pub/Sub
	if projectID := getEnv("GCP_PROJECT_ID", ""); projectID != "" {
		c.PubSub.ProjectID = projectID
		c.CloudTasks.ProjectID = projectID // share project
	}
	c.PubSub.TopicID = getEnv("PUBSUB_TOPIC_ID", c.PubSub.TopicID)
	c.PubSub.Enabled = getEnvBool("PUBSUB_ENABLED", c.PubSub.Enabled)

	// Cloud Tasks
	c.CloudTasks.LocationID = getEnv("CLOUD_TASKS_LOCATION", c.CloudTasks.LocationID)
	c.CloudTasks.QueueID = getEnv("CLOUD_TASKS_QUEUE", c.CloudTasks.QueueID)
	c.CloudTasks.CallbackURL = getEnv("WEBHOOK_CALLBACK_URL", c.CloudTasks.CallbackURL)
	c.CloudTasks.Enabled = getEnvBool("CLOUD_TASKS_ENABLED", c.CloudTasks.Enabled)

	// Webhooks
	if v := getEnvInt("WEBHOOK_WORKERS", 0); v > 0 {
		c.Webhook.WorkerCount = v
	}
	if v := getEnvInt("WEBHOOK_MAX_ATTEMPTS", 0); v > 0 {
		c.Webhook.MaxAttempts = v
	}
	if v := getEnvInt("WEBHOOK_BASE_DELAY_SEC", 0); v > 0 {
		c.Webhook.BaseDelaySeconds = v
	}

	// ISO 20022
	if v := getEnvInt("ISO20022_MAX_PAYLOAD_BYTES", 0); v > 0 {
		c.ISO20022.MaxPayloadBytes = int64(v)
	}
	c.ISO20022.StrictValidation = getEnvBool("ISO20022_STRICT_VALIDATION", c.ISO20022.StrictValidation)

	// Resilience defaults
	if v := getEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 0); v > 0 {
		c.ResilienceDefaults.RetryMaxAttempts = v
	}
	if v := getEnvInt("RESILIENCE_RETRY_BASE_WAIT_MS", 0); v > 0 {
		c.ResilienceDefaults.RetryBaseWaitMs = v
	}
	if v := getEnvInt("RESILIENCE_RETRY_MAX_WAIT_MS", 0); v > 0 {
		c.ResilienceDefaults.RetryMaxWaitMs = v
	}
	if v := getEnvFloat("RESILIENCE_RETRY_MULTIPLIER", 0); v > 0 {
		c.ResilienceDefaults.RetryMultiplier = v
	}
	if v := getEnvInt("RESILIENCE_BULKHEAD_MAX_CONCURRENT", 0); v > 0 {
		c.ResilienceDefaults.BulkheadMaxConcurrent = int64(v)
	}
	if v := getEnvInt("RESILIENCE_BULKHEAD_MAX_WAIT_MS", 0); v > 0 {
		c.ResilienceDefaults.BulkheadMaxWaitMs = v
	}
	if v := getEnvInt("RESILIENCE_TIME_LIMITER_MS", 0); v > 0 {
		c.ResilienceDefaults.TimeLimiterMs = v
	}
	if v := getEnvFloat("RESILIENCE_RATE_LIMIT_PER_SECOND", 0); v > 0 {
		c.ResilienceDefaults.RateLimitPerSecond = v
	}
	if v := getEnvInt("RESILIENCE_RATE_LIMIT_BURST", 0); v > 0 {
		c.ResilienceDefaults.RateLimitBurst = v
	}
	if v := getEnvFloat("RESILIENCE_CIRCUIT_FAILURE_THRESHOLD", 0); v > 0 {
		c.ResilienceDefaults.CircuitFailureThreshold = v
	}
	if v := getEnvInt("RESILIENCE_CIRCUIT_MINIMUM_CALLS", 0); v > 0 {
		c.ResilienceDefaults.CircuitMinimumCalls = v
	}

	// Services
	c.Services.ActivityRegistryURL = getEnv("ACTIVITY_REGISTRY_URL", c.Services.ActivityRegistryURL)
	c.Services.FraudGRPCAddr = getEnv("FRAUD_GRPC_ADDR", c.Services.FraudGRPCAddr)

	// Apply defaults for zero values
	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}

	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 12
	}
	if c.Security.TokenTTLSec == 0 {
		c.Security.TokenTTLSec = 300 // 5 minutes
	}

	if c.Webhook.WorkerCount == 0 {
		c.Webhook.WorkerCount = 4
	}
	if c.Webhook.MaxAttempts == 0 {
		c.Webhook.MaxAttempts = 5
	}
	if c.Webhook.BaseDelaySeconds == 0 {
		c.Webhook.BaseDelaySeconds = 2
	}

	if c.PubSub.TopicID == "" {
		c.PubSub.TopicID = "ocx-flow-events"
	}
	if c.CloudTasks.LocationID == "" {
		c.CloudTasks.LocationID = "us-central1"
	}
	if c.CloudTasks.QueueID == "" {
		c.CloudTasks.QueueID = "ocx-webhooks"
	}

	if c.ISO20022.MaxPayloadBytes == 0 {
		c.ISO20022.MaxPayloadBytes = 5 << 20 // 5MiB
	}

	if c.ResilienceDefaults.RetryMaxAttempts == 0 {
		c.ResilienceDefaults.RetryMaxAttempts = 3
	}
	if c.ResilienceDefaults.RetryBaseWaitMs == 0 {
		c.ResilienceDefaults.RetryBaseWaitMs = 200
	}
	if c.ResilienceDefaults.RetryMaxWaitMs == 0 {
		c.ResilienceDefaults.RetryMaxWaitMs = 5000
	}
	if c.ResilienceDefaults.RetryMultiplier == 0 {
		c.ResilienceDefaults.RetryMultiplier = 2.0
	}
	if c.ResilienceDefaults.BulkheadMaxConcurrent == 0 {
		c.ResilienceDefaults.BulkheadMaxConcurrent = 20
	}
	if c.ResilienceDefaults.BulkheadMaxWaitMs == 0 {
		c.ResilienceDefaults.BulkheadMaxWaitMs = 2000
	}
	if c.ResilienceDefaults.TimeLimiterMs == 0 {
		c.ResilienceDefaults.TimeLimiterMs = 10000
	}
	if c.ResilienceDefaults.RateLimitPerSecond == 0 {
		c.ResilienceDefaults.RateLimitPerSecond = 50
	}
	if c.ResilienceDefaults.RateLimitBurst == 0 {
		c.ResilienceDefaults.RateLimitBurst = 100
	}
	if c.ResilienceDefaults.CircuitFailureThreshold == 0 {
		c.ResilienceDefaults.CircuitFailureThreshold = 0.5
	}
	if c.ResilienceDefaults.CircuitMinimumCalls == 0 {
		c.ResilienceDefaults.CircuitMinimumCalls = 10
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}

// GetSupabaseURL returns the Supabase URL
func (c *Config) GetSupabaseURL() string {
	return c.Database.Supabase.URL
}

// GetSupabaseKey returns the Supabase service key
func (c *Config) GetSupabaseKey() string {
	return c.Database.Supabase.ServiceKey
}
