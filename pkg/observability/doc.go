// Package observability provides structured logging, Prometheus metrics,
// health probes, graceful shutdown, and OpenTelemetry tracing.
//
// # Logging
//
// Loggers are logrus JSON loggers. Request-scoped fields travel in the
// context:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("membership anomaly")
//
// # Metrics
//
// A nil *Metrics records nothing, so library packages accept one
// unconditionally:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordGuardDecision("admin", "deny", "not_member")
//	http.Handle("/metrics", metrics.Handler())
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// /healthz is liveness. /readyz fails when Postgres is unreachable and
// reports degraded when only Redis is.
//
// # Tracing
//
//	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "communityhub",
//	}, logger)
//	defer telemetry.Shutdown(ctx)
//
// Spans are exported over OTLP/gRPC; WithTraceFields stamps the request log
// line with trace_id and span_id.
package observability
