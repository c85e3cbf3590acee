package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkax "github.com/ordercore/order-platform/internal/events"
	"github.com/ordercore/order-platform/internal/kafka"
	"github.com/ordercore/order-platform/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Engine is the HTTP-facing business logic layer over Repo: it adds the
// observable side effects (domain events, low-stock throttling) that sit
// outside the transactional core, generalized from the teacher's
// inventory.Service (which drove the same repo off a Kafka consumer
// instead of direct HTTP calls — spec §6 makes inventory a synchronous
// HTTP collaborator of the orchestrator, so Engine is called from handlers).
type Engine struct {
	Repo              *Repo
	Producer          *kafka.Producer
	Redis             *redis.Client
	Log               *zap.Logger
	ServiceName       string
	LowStockThreshold int
}

func (e *Engine) Reserve(ctx context.Context, orderID, idempotencyKey string, items []ItemRequest) (ReserveResult, error) {
	threshold := e.LowStockThreshold
	if threshold <= 0 {
		threshold = 10
	}

	result, signals, err := e.Repo.Reserve(ctx, orderID, idempotencyKey, items, threshold)
	if err != nil {
		return ReserveResult{}, err
	}

	for _, s := range signals {
		e.maybeWarnLowStock(ctx, s)
	}

	eventType := kafkax.TypeStockReserved
	if result.Status == ResultPartial {
		eventType = kafkax.TypeStockPartial
	}
	e.publish(eventType, orderID, kafkax.StockReservedPayload{
		OrderID:            orderID,
		AllocationStrategy: result.AllocationStrategy,
		Idempotent:         result.Idempotent,
	})

	return result, nil
}

func (e *Engine) Confirm(ctx context.Context, orderID string, reservationIDs []string) error {
	return e.Repo.Confirm(ctx, orderID, reservationIDs)
}

func (e *Engine) Release(ctx context.Context, orderID string) error {
	if err := e.Repo.Release(ctx, orderID, "release"); err != nil {
		return err
	}
	e.publish(kafkax.TypeStockReleased, orderID, kafkax.StockReleasedPayload{OrderID: orderID, Reason: "release"})
	return nil
}

func (e *Engine) Ship(ctx context.Context, orderID string, items []ShipItem) error {
	if err := e.Repo.Ship(ctx, orderID, items); err != nil {
		return err
	}
	e.publish(kafkax.TypeStockShipped, orderID, kafkax.StockShippedPayload{OrderID: orderID})
	return nil
}

// RunReaper runs one pass of the expiration reaper (spec §4.2.5).
func (e *Engine) RunReaper(ctx context.Context) ([]Reservation, error) {
	expired, err := e.Repo.ExpireReservations(ctx)
	if err != nil {
		return nil, err
	}
	for _, res := range expired {
		e.publish(kafkax.TypeReservationExpired, res.OrderID, kafkax.ReservationExpiredPayload{
			ReservationID: res.ID, OrderID: res.OrderID,
		})
	}
	if len(expired) > 0 {
		e.Log.Info("reaper expired reservations", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// maybeWarnLowStock throttles repeated alerts for the same (product,
// warehouse) pair via Redis so a burst of reservations against a depleted
// row doesn't spam the alert topic.
func (e *Engine) maybeWarnLowStock(ctx context.Context, s LowStockSignal) {
	key := fmt.Sprintf(redisx.KeyLowStockAlert, s.ProductID, s.Warehouse)
	if e.Redis != nil {
		exists, _ := redisx.Exists(ctx, e.Redis, key)
		if exists {
			return
		}
		_ = e.Redis.Set(ctx, key, "1", redisx.TTLLowStockAlert).Err()
	}
	e.Log.Warn("low stock warning",
		zap.String("productId", s.ProductID), zap.String("warehouse", s.Warehouse),
		zap.Int("available", s.Available), zap.Int("threshold", s.Threshold))
	e.publish(kafkax.TypeLowStockWarning, s.ProductID, kafkax.LowStockWarningPayload{
		ProductID: s.ProductID, Warehouse: s.Warehouse, Available: s.Available, Threshold: s.Threshold,
	})
}

func (e *Engine) publish(eventType, correlationID string, payload any) {
	if e.Producer == nil {
		return
	}
	env := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.ServiceName,
		CorrelationID: correlationID,
		Payload:       kafkax.Marshal(payload),
	}
	e.Producer.Publish(
		kafkax.TopicForEventType(eventType),
		[]byte(correlationID),
		kafkax.Marshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
