package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/persistence"
)

// Notes/constraints:
// - Bootstrap only prepares the control-plane database (admin schema, tenants
//   and module_entitlements tables). Tenant databases are never touched here;
//   the migrate commands own those.
// - The statements are idempotent, so re-running against an initialized
//   control plane is safe.

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap control-plane resources (admin schema, registry tables)",
		Long:  "Bootstrap control-plane resources: the admin schema with the tenant registry and module entitlement tables.",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL string
		adminSchema string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Create the admin schema and registry tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if strings.TrimSpace(adminSchema) == "" {
				return fmt.Errorf("admin schema is required")
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapAdminSchema(ctx, pool, adminSchema); err != nil {
				return fmt.Errorf("bootstrap admin schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Admin schema: %s\n", adminSchema)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string for the control-plane database")
	c.Flags().StringVar(&adminSchema, "admin-schema", "admin", "Admin schema name for the tenant registry")

	_ = c.MarkFlagRequired("database-url")

	return c
}
