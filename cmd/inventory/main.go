package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ordercore/order-platform/internal/config"
	"github.com/ordercore/order-platform/internal/httpx"
	"github.com/ordercore/order-platform/internal/inventory"
	kafkax "github.com/ordercore/order-platform/internal/kafka"
	"github.com/ordercore/order-platform/internal/logging"
	"github.com/ordercore/order-platform/internal/postgres"
	"github.com/ordercore/order-platform/internal/redisx"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	serviceName := cfg.ServiceName + "-inventory"
	log := logging.New(serviceName)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: 16, MinConns: 2})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := inventory.InitializeSchema(ctx, db, log); err != nil {
		log.Fatal("schema init", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	engine := &inventory.Engine{
		Repo:              &inventory.Repo{DB: db, TTL: cfg.ReservationTTL},
		Producer:          prod,
		Redis:             rdb,
		Log:               log,
		ServiceName:       serviceName,
		LowStockThreshold: cfg.LowStockThreshold,
	}

	router := httpx.NewRouter()
	ih := &httpx.InventoryHandler{Engine: engine}
	ih.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// reaper ticker: a standalone loop in addition to the on-demand HTTP
	// trigger, so expired reservations are released even without external
	// polling, grounded on hilaldev's janitorLoop.
	go runReaperLoop(ctx, engine, cfg.ReaperInterval, log)

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

func runReaperLoop(ctx context.Context, engine *inventory.Engine, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.RunReaper(ctx); err != nil {
				log.Error("reaper pass failed", zap.Error(err))
			}
		}
	}
}
