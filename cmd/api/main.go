package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/hub-transfers/internal/config"
	"github.com/josh-kwaku/hub-transfers/internal/handler"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/queue"
	"github.com/josh-kwaku/hub-transfers/internal/repository"
	"github.com/josh-kwaku/hub-transfers/internal/service/bulk"
	"github.com/josh-kwaku/hub-transfers/internal/service/ledger"
	"github.com/josh-kwaku/hub-transfers/internal/service/transfer"
)

type jobDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("hub-transfers", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		PingAttempts:     30,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	accounts := repository.NewAccountRepository(db)
	jobs := repository.NewBulkJobRepository(db)
	transferLedger := ledger.New(repository.NewTransferRepository(db))

	hubClient := hub.NewClient(hub.Config{
		BaseURL:        cfg.HubBaseURL,
		DisplayName:    cfg.HubDisplayName,
		SimulationMode: cfg.SimulationMode,
		Timeout:        cfg.HubTimeout(),
		MaxRetries:     cfg.HubMaxRetries,
		BackoffInitial: cfg.HubBackoffInitial(),
	})
	if cfg.SimulationMode {
		logger.Warn("simulation mode enabled, no transfer will reach the hub")
	}

	engine := bulk.NewEngine(jobs, accounts, hubClient, transferLedger)
	reporter := bulk.NewReporter(jobs, transferLedger)
	transfers := transfer.NewService(accounts, hubClient, transferLedger)
	health := handler.NewHealthHandler(db)

	var (
		dispatcher jobDispatcher
		background func(context.Context) error
	)

	if cfg.RabbitURL != "" {
		q := queue.New(&queue.Config{
			URL:               cfg.RabbitURL,
			ReconnectInterval: 5 * time.Second,
			ConnectTimeout:    10 * time.Second,
		})
		queue.NewJobConsumer(engine, cfg.BulkWorkers).Register(q)
		dispatcher = queue.NewJobDispatcher(q)
		background = q.Start
		health.WithCheck("broker", q.Ready)
		logger.Info("bulk jobs dispatched through rabbit mq", "workers", cfg.BulkWorkers)
	} else {
		pool := bulk.NewWorkerPool(engine, cfg.BulkWorkers, cfg.BulkQueueSize, logger)
		dispatcher = pool
		background = pool.Start
		logger.Info("bulk jobs dispatched to in-process workers", "workers", cfg.BulkWorkers)
	}

	sweeper := bulk.NewSweeper(jobs, transferLedger, dispatcher, bulk.SweeperConfig{
		Interval:    cfg.SweepInterval(),
		UploadGrace: cfg.UploadGrace(),
		StaleAfter:  cfg.StaleAfter(),
	}, logger)

	router := newRouter(routes{
		health:    health,
		transfers: handler.NewTransferHandler(transfers),
		bulk:      handler.NewBulkHandler(engine, dispatcher, reporter, cfg.MaxUploadBytes),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return background(gctx)
	})

	g.Go(func() error {
		return sweeper.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
