package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-checkout-payments/internal/config"
	"github.com/ariefcatur/go-checkout-payments/internal/gateway"
	"github.com/ariefcatur/go-checkout-payments/internal/httpx"
	kafkax "github.com/ariefcatur/go-checkout-payments/internal/kafka"
	"github.com/ariefcatur/go-checkout-payments/internal/logging"
	"github.com/ariefcatur/go-checkout-payments/internal/memstore"
	"github.com/ariefcatur/go-checkout-payments/internal/postgres"
	"github.com/ariefcatur/go-checkout-payments/internal/products"
	"github.com/ariefcatur/go-checkout-payments/internal/redisx"
	"github.com/ariefcatur/go-checkout-payments/internal/transactions"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type catalogStore interface {
	products.Store
	transactions.ProductStore
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log, err := logging.New(logging.Config{
		ServiceName: cfg.ServiceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer logging.Sync(log)
	log.Info("starting", cfg.Fields()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		catalog catalogStore
		txStore transactions.Store
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
				log.Fatal("migrate", zap.Error(err))
			}
			log.Info("migrations applied")
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions(cfg.Postgres))
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		catalog = &products.Repo{DB: db}
		txStore = &transactions.Repo{DB: db}
	case config.StorageMemory:
		mem := memstore.New()
		catalog, txStore = mem, mem
		log.Warn("using in-memory storage; data is lost on restart")
	}

	// Redis
	var cache redisx.Cache = redisx.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis not reachable, continuing without a warm cache", zap.Error(err))
		}
		cache = redisx.NewCache(rdb)
	}

	// Kafka producer
	var events transactions.Publisher
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, transactions.TopicTransactionFinalized, 1024, log)
		prod.Start()
		events = prod
	} else {
		log.Info("KAFKA_BROKERS empty, finalized events are not published")
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL,
		PrivateKey:      cfg.Gateway.PrivateKey,
		IntegritySecret: cfg.Gateway.IntegritySecret,
		Timeout:         cfg.Gateway.Timeout,
	}, log)

	productSvc := products.NewService(catalog, log)
	txSvc := transactions.NewService(txStore, catalog, gw, events, transactions.Config{
		Fees: transactions.Fees{
			BaseCents:     cfg.Fees.BaseCents,
			DeliveryCents: cfg.Fees.DeliveryCents,
		},
		Currency:    cfg.Gateway.Currency,
		ServiceName: cfg.ServiceName,
	}, log)

	router := httpx.NewRouter(cfg.ServiceName, log)
	(&httpx.ProductsHandler{Svc: productSvc, Cache: cache, Log: log}).Register(router)
	(&httpx.TransactionsHandler{Svc: txSvc, Cache: cache, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// In-flight requests are done; flush their events.
	if prod != nil {
		prod.Close()
	}
}
