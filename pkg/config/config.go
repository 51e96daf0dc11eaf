package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/storage/postgres"
)

// EnvPrefix prefixes every environment variable read by LoadConfig
const EnvPrefix = "COMMUNITYHUB_"

// Environment names the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	Environment Environment

	// Server configuration
	Server ServerConfig

	// Storage configuration
	Database DatabaseConfig
	Redis    RedisConfig

	// Access resolution caches and sessions
	Access AccessConfig

	RateLimit RateLimitConfig

	// Authorization audit trail
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	PostgresURL string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	AutoMigrate bool
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL        string
	MaxRetries int
	PoolSize   int
}

// AccessConfig holds identity and permission resolution settings
type AccessConfig struct {
	// PermissionCacheSize bounds the in-process permission set cache; 0 disables it
	PermissionCacheSize int
	PermissionCacheTTL  time.Duration
	IdentityCacheTTL    time.Duration
	SessionTTL          time.Duration
}

// RateLimitConfig holds request rate limit settings
type RateLimitConfig struct {
	Enabled           bool
	PrincipalRequests int
	AnonymousRequests int
	Window            time.Duration
}

// AuditConfig holds authorization audit trail settings
type AuditConfig struct {
	Enabled   bool
	// Retention is how long events are kept before the hourly purge removes them
	Retention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:   Environment(strings.ToLower(getEnv("ENVIRONMENT", string(EnvProduction)))),
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Access:        loadAccessConfig(),
		RateLimit:     loadRateLimitConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DevMode reports whether verification checks are bypassed
func (c *Config) DevMode() bool {
	return c.Environment == EnvDevelopment || c.Environment == EnvTest
}

// ConnectionConfig converts the database settings for the connection manager
func (c *Config) ConnectionConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		PrimaryURL:  c.Database.PostgresURL,
		ReplicaURLs: c.Database.ReplicaURLs,
		MaxConns:    c.Database.MaxConns,
		MinConns:    c.Database.MinConns,
		Timeout:     c.Database.Timeout,
		MaxLifetime: c.Database.MaxLifetime,
		MaxIdleTime: c.Database.MaxIdleTime,
	}
}

// RedisClientConfig converts the Redis settings for the client constructor
func (c *Config) RedisClientConfig() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:        c.Redis.URL,
		MaxRetries: c.Redis.MaxRetries,
		PoolSize:   c.Redis.PoolSize,
	}
}

// OTelConfig converts the OpenTelemetry settings for the observability package
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "8080"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		PostgresURL: getEnv("POSTGRES_URL", ""),
		ReplicaURLs: postgres.ParseReplicaURLs(getEnv("POSTGRES_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MaxRetries: getEnvInt("REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("REDIS_POOL_SIZE", 10),
	}
}

func loadAccessConfig() AccessConfig {
	return AccessConfig{
		PermissionCacheSize: getEnvInt("PERMISSION_CACHE_SIZE", 10000),
		PermissionCacheTTL:  getEnvDuration("PERMISSION_CACHE_TTL", 5*time.Minute),
		IdentityCacheTTL:    getEnvDuration("IDENTITY_CACHE_TTL", 5*time.Minute),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
		PrincipalRequests: getEnvInt("RATE_LIMIT_PRINCIPAL_REQUESTS", 1000),
		AnonymousRequests: getEnvInt("RATE_LIMIT_ANONYMOUS_REQUESTS", 100),
		Window:            getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:   getEnvBool("AUDIT_ENABLED", true),
		Retention: getEnvDuration("AUDIT_RETENTION", 90*24*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "communityhub"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s (must be development, test, or production)", c.Environment)
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Access.PermissionCacheSize < 0 {
		return fmt.Errorf("permission cache size must not be negative")
	}
	if c.Access.PermissionCacheSize > 0 && c.Access.PermissionCacheTTL <= 0 {
		return fmt.Errorf("permission cache TTL must be positive when the cache is enabled")
	}
	if c.Access.IdentityCacheTTL <= 0 {
		return fmt.Errorf("identity cache TTL must be positive")
	}
	if c.Access.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.PrincipalRequests <= 0 || c.RateLimit.AnonymousRequests <= 0 {
			return fmt.Errorf("rate limit request counts must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Audit.Enabled && c.Audit.Retention <= 0 {
		return fmt.Errorf("audit retention must be positive when auditing is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns a prefixed environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
