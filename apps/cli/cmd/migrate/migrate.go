package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	sqlassets "github.com/zenGate-Global/palmyra-fleet-migrator/database"
	entitlementsrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/repo"
	entitlementsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	migrationsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/service"
	registryrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/repo"
	registryservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
	platformlogging "github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/logging"
	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/persistence"
)

// sharedFlags carries the connection and tuning flags common to every
// migrate subcommand.
type sharedFlags struct {
	databaseURL string
	adminSchema string
	logLevel    string
	workers     int
	opTimeout   time.Duration
}

// Command groups the migration operations: report, apply, history.
func Command() *cobra.Command {
	flags := &sharedFlags{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and apply tenant schema migrations",
		Long:  "Inspect migration state across the tenant fleet, apply pending migrations, and read per-tenant audit history.",
	}

	cmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL connection string for the control-plane database")
	cmd.PersistentFlags().StringVar(&flags.adminSchema, "admin-schema", "admin", "Admin schema name for the tenant registry")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().IntVar(&flags.workers, "workers", 4, "Maximum concurrent tenants")
	cmd.PersistentFlags().DurationVar(&flags.opTimeout, "op-timeout", 30*time.Second, "Timeout per schema operation")

	_ = cmd.MarkPersistentFlagRequired("database-url")

	cmd.AddCommand(reportCommand(flags))
	cmd.AddCommand(applyCommand(flags))
	cmd.AddCommand(historyCommand(flags))
	return cmd
}

func reportCommand(flags *sharedFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Report migration state across the active fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, pool, err := buildService(ctx, flags)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			summary, err := svc.InspectAll(ctx)
			if err != nil {
				return fmt.Errorf("inspect fleet: %w", err)
			}
			return printJSON(cmd, summary)
		},
	}
}

func applyCommand(flags *sharedFlags) *cobra.Command {
	var tenantID string

	c := &cobra.Command{
		Use:   "apply",
		Short: "Apply pending migrations (whole fleet, or one tenant with --tenant)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, pool, err := buildService(ctx, flags)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			if tenantID != "" {
				id, err := uuid.Parse(tenantID)
				if err != nil {
					return fmt.Errorf("invalid tenant uuid: %w", err)
				}
				report, err := svc.ApplyOne(ctx, id)
				if err != nil {
					return fmt.Errorf("apply tenant migrations: %w", err)
				}
				return printJSON(cmd, report)
			}

			summary, err := svc.ApplyAll(ctx)
			if err != nil {
				return fmt.Errorf("apply fleet migrations: %w", err)
			}
			return printJSON(cmd, summary)
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (omit to apply across the whole active fleet)")
	return c
}

func historyCommand(flags *sharedFlags) *cobra.Command {
	var tenantID string

	c := &cobra.Command{
		Use:   "history",
		Short: "Show the applied-migration audit trail for one tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid tenant uuid: %w", err)
			}

			svc, pool, err := buildService(ctx, flags)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			history, err := svc.History(ctx, id)
			if err != nil {
				return fmt.Errorf("read tenant history: %w", err)
			}
			return printJSON(cmd, history)
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID")
	_ = c.MarkFlagRequired("tenant")
	return c
}

// buildService wires the orchestrator from the shared flags. The caller owns
// closing the returned pool.
func buildService(ctx context.Context, flags *sharedFlags) (*migrationsservice.Service, *pgxpool.Pool, error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "migration-cli",
		Level:     flags.logLevel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: flags.databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	catalog, err := engine.LoadCatalog(sqlassets.MigrationsFS, "migrations")
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("load migration catalog: %w", err)
	}

	registrySvc := registryservice.New(registryrepo.NewPostgresRepository(pool, flags.adminSchema))
	entitlementSvc := entitlementsservice.New(entitlementsrepo.NewPostgresRepository(pool, flags.adminSchema), logger)
	factory := engine.NewPostgresFactory(catalog, logger)

	svc := migrationsservice.New(
		registrySvc,
		entitlementSvc,
		factory,
		catalog,
		migrationsservice.Config{
			Workers:   flags.workers,
			OpTimeout: flags.opTimeout,
		},
		logger,
	)
	return svc, pool, nil
}

func printJSON(cmd *cobra.Command, payload any) error {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
