package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ordercore/order-platform/internal/catalog"
	"github.com/ordercore/order-platform/internal/config"
	"github.com/ordercore/order-platform/internal/httpx"
	"github.com/ordercore/order-platform/internal/idempotency"
	"github.com/ordercore/order-platform/internal/inventoryclient"
	kafkax "github.com/ordercore/order-platform/internal/kafka"
	"github.com/ordercore/order-platform/internal/logging"
	"github.com/ordercore/order-platform/internal/orders"
	"github.com/ordercore/order-platform/internal/payment"
	"github.com/ordercore/order-platform/internal/postgres"
	"github.com/ordercore/order-platform/internal/redisx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: 8, MinConns: 1})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := orders.InitializeSchema(ctx, db, log); err != nil {
		log.Fatal("schema init", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	catalogClient := catalog.New(cfg.CatalogBaseURL, &http.Client{Timeout: cfg.CatalogTimeout})
	paymentClient := payment.New(cfg.PaymentBaseURL, &http.Client{Timeout: cfg.PaymentTimeout})
	inventoryClient := inventoryclient.New(cfg.InventoryBaseURL, &http.Client{Timeout: cfg.InventoryTimeout})

	idemStore := idempotency.New(db, rdb, log)
	repo := &orders.Repo{DB: db}

	// nil TaxRate defers to totals.DefaultTaxRate; a parsed zero rate (an
	// operator explicitly setting TAX_RATE=0) is honored as-is.
	var taxRate *decimal.Decimal
	if parsed, err := decimal.NewFromString(cfg.TaxRate); err != nil {
		log.Warn("invalid TAX_RATE, using default", zap.String("value", cfg.TaxRate), zap.Error(err))
	} else {
		taxRate = &parsed
	}

	orchestrator := &orders.Orchestrator{
		Repo:        repo,
		Idempotency: idemStore,
		Catalog:     catalogClient,
		Payment:     paymentClient,
		Inventory:   inventoryClient,
		Producer:    prod,
		Log:         log,
		TaxRate:     taxRate,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Orchestrator: orchestrator, Repo: repo, Redis: rdb, Log: log}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	prod.Close()
	cancel()
	prod.WaitClosed()
}
