// cmd/reconciler is a standalone consumer that watches the
// reconciliation-alert topic and surfaces anything the saga's compensation
// path could not complete on its own (spec §4.1's compensation-failure
// note), so a stuck release or cancel doesn't go unnoticed.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/joho/godotenv"
	"github.com/ordercore/order-platform/internal/config"
	"github.com/ordercore/order-platform/internal/events"
	kafkax "github.com/ordercore/order-platform/internal/kafka"
	"github.com/ordercore/order-platform/internal/logging"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-reconciler")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := cfg.ServiceName + "-reconciler"
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicReconciliationAlert, 2, log)

	go func() {
		log.Info("reconciler consumer started", zap.String("topic", events.TopicReconciliationAlert))
		if err := cons.Start(ctx, handleAlert(log)); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	cancel()
}

func handleAlert(log *zap.Logger) kafkax.Handler {
	return func(ctx context.Context, m kafkago.Message) error {
		var env events.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Warn("reconciler: malformed envelope", zap.Error(err))
			return nil
		}
		payload, err := events.Unwrap[events.ReconciliationAlertPayload](env.Payload)
		if err != nil {
			log.Warn("reconciler: malformed alert payload", zap.Error(err))
			return nil
		}
		log.Error("reconciliation alert",
			zap.String("orderId", payload.OrderID), zap.String("step", payload.Step), zap.String("detail", payload.Detail))
		return nil
	}
}
