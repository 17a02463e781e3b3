package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pointvest/pointvest/internal/config"
	"github.com/pointvest/pointvest/internal/infra"
	"github.com/pointvest/pointvest/internal/logging"
	"github.com/pointvest/pointvest/internal/storage"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	pool, err := infra.NewPostgresPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *down > 0 {
		if err := storage.Rollback(pool, *down); err != nil {
			logger.Error("rollback", "error", err)
			os.Exit(1)
		}
		logger.Info("rolled back", "steps", *down)
		return
	}
	if err := storage.Migrate(pool); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")
}
