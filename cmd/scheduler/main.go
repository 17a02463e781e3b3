package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pointvest/pointvest/internal/config"
	"github.com/pointvest/pointvest/internal/infra"
	"github.com/pointvest/pointvest/internal/logging"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/routes"
)

func main() {
	once := flag.String("run", "", "run one job (daily_income or auto_renewal) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		if cache, err = infra.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	}

	var notifier notification.Notifier
	if cfg.AMQPURL != "" {
		conn, err := infra.NewAMQPConnection(ctx, cfg.AMQPURL, 5, 2*time.Second)
		if err != nil {
			logger.Error("connect amqp", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("open amqp channel", "error", err)
			os.Exit(1)
		}
		defer ch.Close()
		if err := notification.DeclareExchange(ch, cfg.AMQPExchange); err != nil {
			logger.Error("declare exchange", "error", err)
			os.Exit(1)
		}
		notifier = notification.NewAMQPNotifier(ch, cfg.AMQPExchange)
	}

	comps, err := routes.Build(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Metrics:  metrics.New(),
		Notifier: notifier,
	})
	if err != nil {
		logger.Error("build components", "error", err)
		os.Exit(1)
	}
	defer comps.Dispatcher.Wait()

	if *once != "" {
		report, err := comps.Runner.Trigger(ctx, *once)
		if err != nil {
			logger.Error("job failed", "job", *once, "error", err)
			os.Exit(1)
		}
		logger.Info("job done", "job", report.Job, "processed", report.Processed, "failed", report.Failed)
		return
	}

	if err := comps.ScheduleJobs(cfg.Jobs); err != nil {
		logger.Error("schedule jobs", "error", err)
		os.Exit(1)
	}
	comps.Runner.Start()
	logger.Info("scheduler started",
		"schedule", cfg.Jobs.Schedule,
		"timezone", cfg.Jobs.Location.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := comps.Runner.Stop(stopCtx); err != nil {
		logger.Warn("running job did not finish before shutdown", "error", err)
	}
	logger.Info("scheduler exited cleanly")
}
