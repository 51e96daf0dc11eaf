package main

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/communityhub/pkg/audit"
	"github.com/platinummonkey/communityhub/pkg/cli"
	"github.com/platinummonkey/communityhub/pkg/config"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
	"github.com/platinummonkey/communityhub/pkg/rbac"
	"github.com/platinummonkey/communityhub/pkg/storage/postgres"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
	ctx := context.Background()

	conns, err := postgres.NewConnectionManager(cfg.ConnectionConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer conns.Close()

	rdb, err := postgres.NewRedisClient(ctx, cfg.RedisClientConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer rdb.Close()

	// Writes and the whois view go to the primary so an operator sees
	// their own changes immediately.
	db := conns.Primary()
	resolver := identity.NewResolver(orgs.NewPostgresService(db), logger, nil)
	cache := identity.NewCachedResolver(resolver, rdb, cfg.Access.IdentityCacheTTL, logger, nil)
	service := orgs.NewPostgresService(db).WithInvalidator(cache)

	groups := rbac.NewManager(rbac.NewStore(db), cache, logger)
	if cfg.Audit.Enabled {
		groups.WithAuditLogger(audit.MultiLogger{audit.NewPostgresLogger(db), audit.NewLogrusLogger(logger)})
	}

	root := cli.NewRootCommand(&cli.Backend{
		Orgs:       service,
		Groups:     groups,
		Identities: resolver,
		Migrate: func(ctx context.Context) error {
			return postgres.RunMigrations(ctx, db, logger)
		},
		Out: os.Stdout,
	})
	return root.Execute(os.Stdout, args)
}
