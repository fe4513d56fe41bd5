// Package main runs the crawl-job gateway: HTTP intake, job store,
// dispatch queue and the reconciliation sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ankemong/newsnexus-sub000/internal/api"
	"github.com/ankemong/newsnexus-sub000/internal/clock/system"
	"github.com/ankemong/newsnexus-sub000/internal/config"
	"github.com/ankemong/newsnexus-sub000/internal/id/uuid"
	"github.com/ankemong/newsnexus-sub000/internal/job"
	"github.com/ankemong/newsnexus-sub000/internal/logging"
	"github.com/ankemong/newsnexus-sub000/internal/metrics"
	amqpqueue "github.com/ankemong/newsnexus-sub000/internal/queue/amqp"
	memoryqueue "github.com/ankemong/newsnexus-sub000/internal/queue/memory"
	"github.com/ankemong/newsnexus-sub000/internal/results"
	memorystore "github.com/ankemong/newsnexus-sub000/internal/store/memory"
	postgresstore "github.com/ankemong/newsnexus-sub000/internal/store/postgres"
	redisstore "github.com/ankemong/newsnexus-sub000/internal/store/redis"
	"github.com/ankemong/newsnexus-sub000/internal/sweeper"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.String("provider", cfg.Store.Provider), zap.Error(err))
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("store close failed", zap.Error(closeErr))
		}
	}()

	queue, err := newQueue(cfg)
	if err != nil {
		logger.Fatal("queue init failed", zap.String("provider", cfg.Queue.Provider), zap.Error(err))
	}
	defer func() {
		if closeErr := queue.Close(); closeErr != nil {
			logger.Warn("queue close failed", zap.Error(closeErr))
		}
	}()

	resultStorage, err := results.New(cfg.Results.Dir)
	if err != nil {
		logger.Fatal("result storage init failed", zap.String("dir", cfg.Results.Dir), zap.Error(err))
	}

	clock := system.New()
	idGen := uuid.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	sweepDone := make(chan struct{})
	if cfg.Sweeper.Enabled {
		sw := sweeper.New(store, queue, clock, sweeper.Config{
			Interval:          cfg.SweepInterval(),
			QueuedStaleAfter:  cfg.QueuedStaleAfter(),
			ProcessingTimeout: cfg.ProcessingTimeout(),
		}, m, logger.Named("sweeper"))
		go func() {
			defer close(sweepDone)
			sw.Run(ctx)
		}()
	} else {
		close(sweepDone)
	}

	apiServer := api.NewServer(store, queue, resultStorage, idGen, clock, m, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	// The sweeper publishes to the queue; it must be stopped before the
	// deferred queue and store closes run.
	<-sweepDone
	logger.Info("shutdown complete")
}

func newStore(ctx context.Context, cfg config.Config) (job.Store, error) {
	switch cfg.Store.Provider {
	case "redis":
		return redisstore.New(ctx, redisstore.Config{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		})
	case "postgres":
		return postgresstore.New(ctx, postgresstore.Config{
			DSN:      cfg.Store.Postgres.DSN,
			Table:    cfg.Store.Postgres.Table,
			MaxConns: int32(cfg.Store.Postgres.MaxOpenConns),
		})
	case "memory":
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func newQueue(cfg config.Config) (job.Queue, error) {
	switch cfg.Queue.Provider {
	case "amqp":
		return amqpqueue.New(amqpqueue.Config{
			URL:       cfg.Queue.AMQP.URL,
			QueueName: cfg.Queue.AMQP.QueueName,
		})
	case "memory":
		return memoryqueue.New(cfg.Queue.Depth), nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Queue.Provider)
	}
}
