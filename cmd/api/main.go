package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SrSebald/Vitalia/internal/api"
	"github.com/SrSebald/Vitalia/internal/auth"
	"github.com/SrSebald/Vitalia/internal/cache"
	"github.com/SrSebald/Vitalia/internal/config"
	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/observability"
	"github.com/SrSebald/Vitalia/internal/outbox"
	"github.com/SrSebald/Vitalia/internal/persistence/postgres"
	"github.com/SrSebald/Vitalia/internal/planner"
	"github.com/SrSebald/Vitalia/internal/tenant"
	httptransport "github.com/SrSebald/Vitalia/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("vitalia api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := tenant.NewPool(ctx, tenant.PoolConfig{URL: cfg.PostgresURL, MaxConns: int32(cfg.PostgresMaxConns)})
	if err != nil {
		return err
	}
	defer pool.Close()

	manager := tenant.NewManager(pool, tenant.WithAppRole(cfg.PostgresAppRole), tenant.WithLogger(logger))
	store := postgres.NewStore(manager)

	opts := []domain.Option{domain.WithLogger(logger)}
	if cfg.AnthropicAPIKey != "" {
		opts = append(opts, domain.WithPlanner(planner.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, plan generation disabled")
	}
	if cfg.CacheInvalidationURL != "" {
		opts = append(opts, domain.WithInvalidator(cache.NewHTTPInvalidator(cfg.CacheInvalidationURL, cfg.CacheInvalidationToken, cfg.CacheInvalidationTimeout, logger)))
	}
	service := domain.NewService(store, opts...)

	mux := http.NewServeMux()
	api.NewHandler(service, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), authMiddleware.Wrap(requestLogger(logger, mux)))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("vitalia api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
		return nil
	})

	if cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})

		dlq := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
		g.Go(func() error {
			runDLQ(gctx, dlq, cfg.DLQPollInterval, cfg.DLQBatchSize, logger)
			return nil
		})
	}

	return g.Wait()
}

func runDLQ(ctx context.Context, manager *outbox.DLQManager, interval time.Duration, batchSize int, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("dlq manager started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requeued, err := manager.RunOnce(ctx, batchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dlq manager error", zap.Error(err))
			} else if requeued > 0 {
				logger.Info("dlq manager requeued entries", zap.Int("count", requeued))
			}
		}
	}
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("elapsed", time.Since(start)))
	})
}
