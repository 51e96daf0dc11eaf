// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Every setting is read from a COMMUNITYHUB_ prefixed environment variable
// and falls back to a default. LoadConfig validates the result before
// returning it.
//
// # Configuration Structure
//
// Environment and server settings:
//
//	COMMUNITYHUB_ENVIRONMENT="production"  # development, test, production
//	COMMUNITYHUB_HOST="0.0.0.0"
//	COMMUNITYHUB_PORT="8080"
//	COMMUNITYHUB_HEALTH_PORT="9090"
//	COMMUNITYHUB_SHUTDOWN_TIMEOUT="30s"
//
// In development and test the email verification check is bypassed.
//
// Storage settings:
//
//	COMMUNITYHUB_POSTGRES_URL="postgres://localhost/communityhub"  # required
//	COMMUNITYHUB_POSTGRES_REPLICA_URLS="postgres://r1/hub,postgres://r2/hub"
//	COMMUNITYHUB_POSTGRES_MAX_CONNS="20"
//	COMMUNITYHUB_AUTO_MIGRATE="false"
//	COMMUNITYHUB_REDIS_URL="redis://localhost:6379/0"
//
// Access resolution:
//
//	COMMUNITYHUB_PERMISSION_CACHE_SIZE="10000"  # 0 disables the cache
//	COMMUNITYHUB_PERMISSION_CACHE_TTL="5m"
//	COMMUNITYHUB_IDENTITY_CACHE_TTL="5m"
//	COMMUNITYHUB_SESSION_TTL="24h"
//	COMMUNITYHUB_RATE_LIMIT_ENABLED="true"
//	COMMUNITYHUB_RATE_LIMIT_PRINCIPAL_REQUESTS="1000"
//	COMMUNITYHUB_RATE_LIMIT_ANONYMOUS_REQUESTS="100"
//	COMMUNITYHUB_RATE_LIMIT_WINDOW="1m"
//
// Audit trail:
//
//	COMMUNITYHUB_AUDIT_ENABLED="true"
//	COMMUNITYHUB_AUDIT_RETENTION="2160h"  # 90 days
//
// Observability:
//
//	COMMUNITYHUB_LOG_LEVEL="info"
//	COMMUNITYHUB_METRICS_ENABLED="true"
//	COMMUNITYHUB_OTEL_ENABLED="false"
//	COMMUNITYHUB_OTEL_ENDPOINT="localhost:4317"
//	COMMUNITYHUB_OTEL_SAMPLE_RATIO="1.0"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	checker := guard.NewChecker(identities, directory, cfg.DevMode(), logger, metrics)
package config
