package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/outbox"
)

var dlqBatchSize int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Manage the outbox dead-letter queue",
}

var dlqRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Requeue due dead-letter entries once",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
		requeued, err := manager.RunOnce(cmd.Context(), dlqBatchSize)
		if err != nil {
			return err
		}
		logger.Info("dead-letter pass complete", zap.Int("requeued", requeued))
		return nil
	},
}

var dlqStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many dead-letter entries await retry",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
		backlog, err := manager.Backlog(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "pending: %d\n", backlog)
		return err
	},
}

func init() {
	dlqRunCmd.Flags().IntVar(&dlqBatchSize, "batch", cfg.DLQBatchSize, "entries to examine")
	dlqCmd.AddCommand(dlqRunCmd, dlqStatusCmd)
	rootCmd.AddCommand(dlqCmd)
}
