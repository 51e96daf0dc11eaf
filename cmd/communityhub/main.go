package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/communityhub/pkg/api"
	"github.com/platinummonkey/communityhub/pkg/audit"
	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/config"
	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
	"github.com/platinummonkey/communityhub/pkg/rbac"
	"github.com/platinummonkey/communityhub/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	purgeSchedule    = "@hourly"
	sessionRetention = 7 * 24 * time.Hour
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	log := logger.WithFields(logrus.Fields{
		"service":     "communityhub",
		"version":     version,
		"environment": cfg.Environment,
	})

	ctx := context.Background()

	telemetry, err := observability.InitOTel(ctx, cfg.OTelConfig(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	conns, err := postgres.NewConnectionManager(cfg.ConnectionConfig(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, conns.Primary(), log); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
	}

	rdb, err := postgres.NewRedisClient(ctx, cfg.RedisClientConfig())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// Slug lookups tolerate replica lag. Identities fill a cache that is only
	// invalidated once, so they are resolved from the primary along with
	// sessions and permission groups.
	directory := orgs.NewPostgresService(conns.Replica())
	memberships := orgs.NewPostgresService(conns.Primary())
	sessions := auth.NewPostgresSessionStore(conns.Primary(), cfg.Access.SessionTTL)

	identities := identity.NewCachedResolver(
		identity.NewResolver(memberships, log, metrics),
		rdb, cfg.Access.IdentityCacheTTL, log, metrics,
	)

	groupStore := rbac.NewStore(conns.Primary())
	aggregator := rbac.NewAggregator(groupStore, rbac.AggregatorConfig{
		CacheSize: cfg.Access.PermissionCacheSize,
		CacheTTL:  cfg.Access.PermissionCacheTTL,
	}, log, metrics)
	manager := rbac.NewManager(groupStore, orgs.MultiInvalidator{aggregator, identities}, log)

	var auditStore *audit.PostgresLogger
	if cfg.Audit.Enabled {
		auditStore = audit.NewPostgresLogger(conns.Primary())
		manager.WithAuditLogger(audit.MultiLogger{auditStore, audit.NewLogrusLogger(log)})
	}

	deps := api.Dependencies{
		Sessions:   sessions,
		Identities: identities,
		Checker:    guard.NewChecker(identities, directory, cfg.DevMode(), log, metrics),
		Groups:     rbac.NewHandlers(manager, aggregator),
		Metrics:    metrics,
		Logger:     log,
	}
	if auditStore != nil {
		deps.Audit = audit.NewHandlers(auditStore)
		deps.Permissions = aggregator
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimit = middleware.NewRateLimitMiddleware(rdb,
			middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimit.PrincipalRequests, WindowDuration: cfg.RateLimit.Window},
			middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimit.AnonymousRequests, WindowDuration: cfg.RateLimit.Window},
			log,
		)
	}
	server := api.NewServer(deps)

	handler := otelhttp.NewHandler(
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes)(server),
		"communityhub",
	)
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, observability.NewHealthChecker(conns.Primary(), rdb, version))
	if metrics != nil {
		healthRouter.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthRouter,
		ReadTimeout: 5 * time.Second,
	}

	scheduler := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log))))
	if _, err := scheduler.AddFunc(purgeSchedule, func() {
		n, err := sessions.PurgeExpiredSessions(context.Background(), sessionRetention)
		if err != nil {
			log.WithError(err).Error("Session purge failed")
			return
		}
		log.WithField("sessions", n).Info("Purged expired sessions")
	}); err != nil {
		log.WithError(err).Fatal("Failed to schedule session purge")
	}
	if auditStore != nil {
		if _, err := scheduler.AddFunc(purgeSchedule, func() {
			n, err := auditStore.Purge(context.Background(), cfg.Audit.Retention)
			if err != nil {
				log.WithError(err).Error("Audit purge failed")
				return
			}
			log.WithField("events", n).Info("Purged audit events")
		}); err != nil {
			log.WithError(err).Fatal("Failed to schedule audit purge")
		}
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(log, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.OnShutdown("otel", telemetry.Shutdown)
	shutdown.OnShutdown("redis", func(context.Context) error {
		return rdb.Close()
	})
	shutdown.OnShutdown("postgres", func(ctx context.Context) error {
		// Purge jobs hold pool connections
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		return conns.Close()
	})

	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			log.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).WithField("addr", srv.Addr).Fatal("HTTP server failed")
			}
		}(srv)
	}

	if err := shutdown.WaitForShutdown(); err != nil {
		log.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
