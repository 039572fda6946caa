package cli

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/api"
	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/outbox"
	"example.com/exercisetracker/internal/persistence/memory"
	"example.com/exercisetracker/internal/persistence/postgres"
	httptransport "example.com/exercisetracker/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		repo    domain.Repository
		workers sync.WaitGroup
	)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		repo = memory.NewRepository()
	default:
		if err := postgres.Migrate(ctx, cfg.PostgresURL, logger); err != nil {
			logger.Error("migrate postgres", zap.Error(err))
			return err
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("connect postgres", zap.Error(err))
			return err
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)

		if cfg.DispatcherEnabled() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer func() {
				if err := producer.Close(); err != nil {
					logger.Warn("close kafka producer", zap.Error(err))
				}
			}()

			dispatcher := outbox.NewDispatcher(pool, producer, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			workers.Add(1)
			go func() {
				defer workers.Done()
				dispatcher.Start(ctx)
			}()
			logger.Info("outbox dispatcher started", zap.Strings("brokers", cfg.KafkaBrokers))
		}
	}

	service := domain.NewService(repo, domain.WithDefaultLogLimit(cfg.LogDefaultLimit))
	handler := api.NewHandler(service, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	serverCfg.ShutdownTimeout = cfg.ShutdownTimeout
	server := httptransport.NewServer(serverCfg, httptransport.Chain(mux,
		httptransport.Metrics(),
		httptransport.RequestLogger(logger),
		httptransport.CORS(cfg.CORSAllowedOrigin),
	), logger)

	logger.Info("exercise tracker listening",
		zap.String("address", cfg.HTTPAddress),
		zap.String("store", cfg.StoreDriver),
	)
	runErr := httptransport.Run(ctx, server, serverCfg.ShutdownTimeout)

	cancel()
	workers.Wait()

	if runErr != nil {
		logger.Error("http server stopped", zap.Error(runErr))
		return fmt.Errorf("serve: %w", runErr)
	}
	logger.Info("shutdown complete")
	return nil
}
