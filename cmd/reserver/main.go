package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/config"
	"github.com/example/orderly/internal/domain/inventory"
	"github.com/example/orderly/internal/infrastructure/eventlog"
	"github.com/example/orderly/internal/infrastructure/idempotency"
	"github.com/example/orderly/internal/infrastructure/store"
	"github.com/example/orderly/internal/saga"
)

// The reserver binary is the inventory worker: it consumes
// order.placed, reserves stock all-or-nothing and publishes
// order.confirmed or order.failed.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.InitSchema(db); err != nil {
		logger.Fatal("failed to initialize schema", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	pingCancel()
	defer redisClient.Close()

	log := eventlog.NewKafkaLog(cfg.KafkaBrokers, logger)
	defer log.Close()

	inv := inventory.NewService(store.NewPostgresProductStore(db), logger)
	processed := idempotency.NewRedisSet(redisClient, cfg.ProcessedTTL)
	consumer := saga.NewReservationConsumer(inv, log, processed, cfg.ReserverGroup, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("reservation consumer started",
			zap.String("group", cfg.ReserverGroup),
			zap.Strings("brokers", cfg.KafkaBrokers))
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reservation consumer stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	<-done
}
