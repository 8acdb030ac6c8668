package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/enrollment/internal/api"
	"example.com/enrollment/internal/catalog"
	catalogpg "example.com/enrollment/internal/catalog/postgres"
	"example.com/enrollment/internal/config"
	"example.com/enrollment/internal/domain"
	"example.com/enrollment/internal/observability"
	"example.com/enrollment/internal/outbox"
	httptransport "example.com/enrollment/internal/transport/http"
	"example.com/enrollment/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := loadCatalog(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("source", cfg.CatalogSource), zap.Error(err))
	}

	registry, err := domain.NewRegistry(seed, domain.WithCapacityEnforcement(cfg.EnforceCapacity))
	if err != nil {
		logger.Fatal("invalid catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.String("source", cfg.CatalogSource),
		zap.Int("activities", len(seed)),
		zap.Bool("enforce_capacity", cfg.EnforceCapacity),
	)

	serviceOpts := []domain.ServiceOption{domain.WithLogger(logger)}

	var (
		producer   *outbox.KafkaProducer
		dispatcher *outbox.Dispatcher
	)
	if cfg.PublishingEnabled() {
		producer = outbox.NewKafkaProducer(cfg.KafkaBrokers, logger.Named("kafka"))
		dispatcher = outbox.NewDispatcher(outbox.Config{
			Topic:         cfg.RosterTopic,
			BufferSize:    cfg.OutboxBuffer,
			BatchSize:     cfg.OutboxBatchSize,
			FlushInterval: cfg.OutboxFlushInterval,
		}, producer, logger.Named("outbox"))
		go dispatcher.Start(ctx)
		serviceOpts = append(serviceOpts, domain.WithPublisher(dispatcher))
		logger.Info("roster events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.RosterTopic))
	}

	service := domain.NewService(registry, serviceOpts...)

	handler := api.NewHandler(service, web.Static(), logger.Named("api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.Recover(logger),
			httptransport.RequestLogger(logger.Named("http")),
			httptransport.CORS(cfg.CORSAllowedOrigin),
		),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("enrollment api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	logger.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
		if err := producer.Close(); err != nil {
			logger.Warn("closing kafka producer", zap.Error(err))
		}
	}
}

func loadCatalog(ctx context.Context, cfg config.Config) ([]domain.Activity, error) {
	switch cfg.CatalogSource {
	case config.CatalogFile:
		return catalog.FileSource{Path: cfg.CatalogFile}.Load(ctx)
	case config.CatalogPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		return catalogpg.NewLoader(pool).Load(ctx)
	default:
		return catalog.BuiltinSource{}.Load(ctx)
	}
}
