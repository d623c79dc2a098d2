package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/slotwise/booking-engine/internal/config"
	"github.com/slotwise/booking-engine/internal/db"
	"github.com/slotwise/booking-engine/internal/events"
	"github.com/slotwise/booking-engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("event-relay starting up",
		zap.String("env", cfg.Env),
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.Duration("poll", cfg.RelayPoll),
		zap.Int("batch", cfg.RelayBatch))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	relay := events.NewRelay(pgPool, logger, events.RelayConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.RelayPoll,
		BatchSize: cfg.RelayBatch,
	})

	relay.Run(rootCtx)

	logger.Info("event-relay stopped")
}
