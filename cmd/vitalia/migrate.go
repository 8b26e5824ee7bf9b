package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/persistence/postgres/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema and row-level security policies",
	Long: `Create tables, the application role and every row-level security policy.
Safe to run repeatedly; concurrent runs serialise on an advisory lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.Migrate(cmd.Context(), pool, cfg.PostgresAppRole); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("app_role", cfg.PostgresAppRole))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
