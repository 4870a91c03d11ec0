package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"uniattend/internal/config"
	"uniattend/internal/logging"
	"uniattend/internal/store"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).Named("migrate")
	defer func() { _ = logger.Sync() }()

	if err := store.Migrate(cfg.DatabaseURL, *direction); err != nil {
		logger.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}
	logger.Info("migrations applied", zap.String("direction", *direction))
}
