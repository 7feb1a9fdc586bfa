package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bistro-pos/api/internal/board"
	"github.com/bistro-pos/api/internal/config"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/queue"
	"github.com/bistro-pos/api/internal/router"
	"github.com/bistro-pos/api/internal/service"
	"github.com/bistro-pos/api/internal/ws"
)

func main() {
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatalw("failed to ping database", "error", err)
	}
	logger.Info("connected to database")

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	// The event broker is optional; the POS works without it.
	var broker queue.Broker
	if cfg.RabbitMQURL != "" {
		broker, err = queue.NewRabbitMQBroker(queue.Config{
			URL:           cfg.RabbitMQURL,
			PrefetchCount: 10,
		})
		if err != nil {
			logger.Warnw("failed to connect to RabbitMQ, order events disabled", "error", err)
			broker = nil
		} else {
			defer broker.Close()
			logger.Info("connected to RabbitMQ")
		}
	}

	newStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	svc := service.NewOrderService(pool, queries, newStore, hub, broker, logger)

	sync := board.NewSynchronizer(svc, logger)
	if err := sync.Start(ctx, hub); err != nil {
		logger.Fatalw("failed to load active orders", "error", err)
	}
	defer sync.Stop()

	r := router.New(cfg, queries, svc, sync, hub)

	logger.Infow("starting server", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}
