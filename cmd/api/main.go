package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/api"
	"github.com/example/orderly/internal/auth"
	"github.com/example/orderly/internal/checkout"
	"github.com/example/orderly/internal/config"
	"github.com/example/orderly/internal/domain/cart"
	"github.com/example/orderly/internal/domain/order"
	"github.com/example/orderly/internal/infrastructure/cartstore"
	"github.com/example/orderly/internal/infrastructure/eventlog"
	"github.com/example/orderly/internal/infrastructure/store"
	"github.com/example/orderly/internal/saga"
)

// The api binary is the order service: HTTP surface, checkout
// orchestrator and the status propagator that applies order.confirmed
// and order.failed to the order store.
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
	logger.Info("connected to PostgreSQL")

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
	logger.Info("connected to Redis")

	log := eventlog.NewKafkaLog(cfg.KafkaBrokers, logger)
	defer log.Close()
	logger.Info("kafka producer ready", zap.Strings("brokers", cfg.KafkaBrokers))

	carts := cart.NewService(cartstore.NewRedisStore(redisClient, cfg.CartTTL, logger), logger)
	orders := order.NewService(store.NewPostgresOrderStore(db), logger)
	co := checkout.NewService(carts, orders, log, logger)

	propagator := saga.NewStatusPropagator(orders, log, cfg.PropagatorGroup, logger)
	go func() {
		if err := propagator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("status propagator stopped", zap.Error(err))
		}
	}()

	var jwtService *auth.JWTService
	if cfg.JWTSecret != "" {
		jwtService = auth.NewJWTService(cfg.JWTSecret, 15*time.Minute)
	} else {
		logger.Warn("JWT_SECRET not set, relying on X-User-Id header only")
	}

	handlers := api.NewHandlers(carts, orders, co, logger)
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: jwtService,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("order service listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
