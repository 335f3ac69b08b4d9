package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/portfolio-enricher/internal/application/services"
	"github.com/bimakw/portfolio-enricher/internal/config"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/cache"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/database"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/providers"
	"github.com/bimakw/portfolio-enricher/internal/infrastructure/queue"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("Starting portfolio-enricher worker",
		zap.Int("workers", cfg.Enricher.WorkerCount),
		zap.Strings("fallback_chains", cfg.Enricher.FallbackChains),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis for the enrichment queue
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	enrichmentQueue := queue.NewRedisQueue(redisCache.Client(), cfg.Enricher.QueueKey, logger)

	// Primary portfolio provider (optional; fallback scans cover its absence)
	var portfolio services.PortfolioProvider
	debank, err := providers.NewDebankClient(cfg.Providers, logger)
	if err != nil {
		logger.Warn("Primary provider not configured, using chain scans only", zap.Error(err))
	} else {
		portfolio = debank
	}

	// Price source and per-chain scanners
	coingecko := providers.NewCoingeckoClient(cfg.Providers, logger)
	priceService := services.NewPriceService(coingecko, cfg.Enricher, logger)

	scanners := make([]*services.ChainScanner, 0, len(cfg.Enricher.FallbackChains))
	for _, chain := range cfg.Enricher.FallbackChains {
		provider, err := providers.NewAlchemyClient(cfg.Providers, chain, logger)
		if err != nil {
			logger.Fatal("Failed to create chain provider",
				zap.String("chain", chain),
				zap.Error(err),
			)
		}
		defer provider.Close()

		scanners = append(scanners, services.NewChainScanner(provider, priceService, cfg.Enricher.ScanPriceLimit, logger))
	}

	// Create repositories and services
	accountRepo := database.NewAccountRepo(db.DB())
	enrichmentService := services.NewEnrichmentService(accountRepo, portfolio, scanners, enrichmentQueue, cfg.Enricher, logger)

	// Start metrics server
	go startMetricsServer(cfg.Enricher.MetricsPort, logger)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.Enricher.WorkerCount; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, worker, enrichmentQueue, enrichmentService, cfg.Enricher.PollTimeout, logger)
		}(i)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping workers...")

	cancel()
	wg.Wait()

	logger.Info("Workers stopped")
}

// runWorker consumes the enrichment queue until the context is cancelled.
// Enrichment errors are logged and do not stop the worker; the failure state
// is already persisted on the account.
func runWorker(ctx context.Context, worker int, q *queue.RedisQueue, enricher *services.EnrichmentService, pollTimeout time.Duration, logger *zap.Logger) {
	logger.Info("Worker started", zap.Int("worker", worker))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopping", zap.Int("worker", worker))
			return
		default:
		}

		accountID, err := q.Dequeue(ctx, pollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || ctx.Err() != nil {
				continue
			}
			logger.Error("Failed to dequeue", zap.Int("worker", worker), zap.Error(err))
			continue
		}

		if err := enricher.Enrich(ctx, accountID); err != nil {
			if errors.Is(err, services.ErrAlreadySyncing) {
				logger.Debug("Enrichment already in progress",
					zap.Int("worker", worker),
					zap.Int64("account_id", accountID),
				)
				continue
			}
			logger.Error("Enrichment failed",
				zap.Int("worker", worker),
				zap.Int64("account_id", accountID),
				zap.Error(err),
			)
		}
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}

func startMetricsServer(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
