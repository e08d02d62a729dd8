package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-checkout-payments/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-payments/internal/kafka"
	"github.com/ariefcatur/go-checkout-payments/internal/logging"
	"github.com/ariefcatur/go-checkout-payments/internal/postgres"
	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/projector"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log, err := logging.New(logging.Config{
		ServiceName: cfg.ServiceName + "-projector",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer logging.Sync(log)

	switch {
	case cfg.Storage != config.StoragePostgres:
		log.Fatal("projector reads transactions from Postgres; set STORAGE=postgres")
	case len(cfg.KafkaBrokers) == 0:
		log.Fatal("KAFKA_BROKERS is required")
	case cfg.RedisAddr == "":
		log.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions(cfg.Postgres))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis ping", zap.Error(err))
	}

	// Read side only: the projector never charges, so no gateway or publisher.
	txs := transactions.NewService(&transactions.Repo{DB: db}, &products.Repo{DB: db}, nil, nil, transactions.Config{}, log)
	svc := projector.New(redisx.NewCache(rdb), txs, "projector", log)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, transactions.TopicTransactionFinalized, cfg.ProjectorWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("projector consuming",
			zap.String("group", cfg.ProjectorGroup),
			zap.String("topic", transactions.TopicTransactionFinalized),
			zap.Int("workers", cfg.ProjectorWorkers))
		if err := cons.Start(ctx, svc.HandleTransactionFinalized); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
