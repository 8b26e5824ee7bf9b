package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SrSebald/Vitalia/internal/cache"
	"github.com/SrSebald/Vitalia/internal/consumer"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run event consumers",
}

var consumeInvalidationsCmd = &cobra.Command{
	Use:   "invalidations",
	Short: "Purge the edge cache for every exercise visibility change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.CacheInvalidationURL == "" {
			return errors.New("CACHE_INVALIDATION_URL must be set")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS must list at least one broker")
		}

		invalidator := cache.NewHTTPInvalidator(cfg.CacheInvalidationURL, cfg.CacheInvalidationToken, cfg.CacheInvalidationTimeout, logger)
		handler := consumer.NewInvalidationHandler(invalidator, logger)

		g, ctx := errgroup.WithContext(cmd.Context())
		for _, topic := range handler.Topics() {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:        cfg.KafkaBrokers,
				GroupID:        cfg.ConsumerGroup,
				Topic:          topic,
				MinBytes:       1e3,
				MaxBytes:       10e6,
				CommitInterval: time.Second,
			})
			proc := consumer.NewProcessor(reader, handler, logger.With(zap.String("topic", topic)))
			g.Go(func() error {
				defer reader.Close()
				logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroup))
				if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("consumer %s: %w", topic, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	consumeCmd.AddCommand(consumeInvalidationsCmd)
	rootCmd.AddCommand(consumeCmd)
}
