package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"uniattend/internal/config"
	"uniattend/internal/logging"
	"uniattend/internal/queue"
	"uniattend/internal/store"
	"uniattend/internal/tally"
)

// Worker consumes attendance events and keeps the live per-session counts in Redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).Named("worker")
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("QUEUE_BACKEND=memory is consumed inside the api process; use redis or kafka")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr))
	}

	q, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Redis:        redisClient.Client,
		KafkaBrokers: cfg.KafkaBrokerList(),
		KafkaTopic:   cfg.KafkaTopic,
		KafkaGroupID: cfg.KafkaGroupID,
	})
	if err != nil {
		logger.Fatal("queue init failed", zap.Error(err))
	}
	if c, ok := q.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	if err := tally.Run(ctx, q, tally.New(redisClient.Client, ""), logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}
