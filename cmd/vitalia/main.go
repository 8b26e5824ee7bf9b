// Command vitalia is the operator CLI: schema migration, row-level security
// inspection, dead-letter handling and development tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/config"
	"github.com/SrSebald/Vitalia/internal/observability"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "vitalia",
	Short:         "Operate the Vitalia database and event pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = observability.NewLogger(cfg.LogLevel)
		return err
	},
}

func init() {
	cfg = config.Load()
	rootCmd.PersistentFlags().StringVar(&cfg.PostgresURL, "postgres-url", cfg.PostgresURL, "PostgreSQL connection string (owner role)")
	rootCmd.PersistentFlags().StringVar(&cfg.PostgresAppRole, "app-role", cfg.PostgresAppRole, "role assumed by tenant units of work")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	return tenant.NewPool(ctx, tenant.PoolConfig{URL: cfg.PostgresURL, MaxConns: 2})
}
