package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"txengine/internal/config"
	"txengine/internal/engine"
	"txengine/internal/handler"
	"txengine/internal/infrastructure/cache"
	"txengine/internal/infrastructure/database"
	"txengine/internal/infrastructure/idempotency"
	"txengine/internal/infrastructure/mq"
	"txengine/internal/job"
	"txengine/internal/repository"
	"txengine/internal/service"
	"txengine/pkg/idgen"
	"txengine/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configPath := flags.String("config", "", "optional YAML config file")
	seedPath := flags.String("input", "", "optional transactions CSV applied before serving")
	flags.Int("port", 8080, "HTTP listen port")
	flags.Duration("snapshot-interval", time.Minute, "period between snapshot exports")
	flags.Int("workers", 1, "processing shards used for --input")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-env", logger.EnvironmentProduction, "log profile: production, development or local")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Environment: cfg.Log.Environment, Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := idgen.Init(1); err != nil {
		log.Fatal("init idgen", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := engine.New()
	ledger := service.NewLedgerService(eng, log)

	if *seedPath != "" {
		if err := seed(ctx, *seedPath, eng, ledger, cfg.Engine.Workers, log); err != nil {
			log.Fatal("seed transactions", zap.String("path", *seedPath), zap.Error(err))
		}
	}

	// ==================== optional integrations ====================

	var (
		exporters []service.Exporter
		store     service.SnapshotStore
		guard     handler.IdempotencyGuard
	)

	if cfg.MySQL.Enabled() {
		db, err := database.InitMySQL(&cfg.MySQL)
		if err != nil {
			log.Fatal("init mysql", zap.Error(err))
		}
		repo := repository.NewSnapshotRepository(db)
		exporters = append(exporters, repo)
		store = repo
		log.Info("mysql snapshot store enabled", zap.String("host", cfg.MySQL.Host))
	}

	if cfg.Kafka.Enabled() {
		producer, err := mq.NewSyncProducer(&cfg.Kafka)
		if err != nil {
			log.Fatal("init kafka", zap.Error(err))
		}
		defer producer.Close()
		exporters = append(exporters, mq.NewSnapshotPublisher(producer, cfg.Kafka.Topic.Snapshot))
		log.Info("kafka snapshot publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	if cfg.Redis.Enabled() {
		rdb, err := cache.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("init redis", zap.Error(err))
		}
		defer rdb.Close()
		guard = idempotency.NewGuard(rdb, cfg.Redis.IdempotencyTTL)
		log.Info("idempotency guard enabled", zap.Duration("ttl", cfg.Redis.IdempotencyTTL))
	}

	var (
		snapshots   *service.SnapshotService
		snapshotJob *job.SnapshotJob
	)
	jobDone := make(chan struct{})
	if len(exporters) > 0 {
		snapshots = service.NewSnapshotService(eng, log, exporters...)
		if store != nil {
			snapshots.WithStore(store)
		}
		snapshotJob, err = job.NewSnapshotJob(snapshots, cfg.Server.SnapshotInterval, log)
		if err != nil {
			log.Fatal("init snapshot job", zap.Error(err))
		}
		// stopped explicitly after HTTP has drained, not by the signal
		go func() {
			defer close(jobDone)
			snapshotJob.Start(context.Background())
		}()
	} else {
		close(jobDone)
	}

	// ==================== HTTP ====================

	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(handler.NewHandler(ledger, snapshots, guard, log), log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}

	// the job exports once more before returning
	if snapshotJob != nil {
		snapshotJob.Stop()
	}
	<-jobDone

	stats := ledger.Stats()
	log.Info("server stopped",
		zap.Int64("applied", stats.Applied),
		zap.Int64("rejected", stats.RejectedTotal()),
		zap.Int("accounts", eng.Len()),
	)
}

func seed(ctx context.Context, path string, eng *engine.Engine, ledger *service.LedgerService, workers int, log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = service.NewImportService(eng, ledger, workers, log).Import(ctx, bufio.NewReader(f))
	return err
}
