package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ordercore/order-platform/internal/catalog"
	kafkax "github.com/ordercore/order-platform/internal/events"
	"github.com/ordercore/order-platform/internal/idempotency"
	"github.com/ordercore/order-platform/internal/inventoryclient"
	"github.com/ordercore/order-platform/internal/kafka"
	"github.com/ordercore/order-platform/internal/payment"
	"github.com/ordercore/order-platform/internal/totals"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Orchestrator runs the order-creation saga described in spec §4.1: it
// owns no transport of its own, only the sequencing and compensation of
// the Catalog, Inventory, and Payment collaborators, generalized from the
// teacher's saga-less HandleOrderCreated into the full price/reserve/charge
// chain the specification calls for.
type Orchestrator struct {
	Repo        *Repo
	Idempotency *idempotency.Store
	Catalog     *catalog.Client
	Payment     *payment.Client
	Inventory   *inventoryclient.Client
	Producer    *kafka.Producer
	Log         *zap.Logger

	// TaxRate is nil when unconfigured (use totals.DefaultTaxRate); a
	// non-nil zero rate is a deliberate 0% configuration, not "unset".
	TaxRate     *decimal.Decimal
	ServiceName string
}

// CreateOrder implements the full saga: idempotency gate, pricing,
// persistence, reservation, payment, and finalization, with compensation
// on any failure after the order is persisted.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateRequest) (*Order, *SagaError) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	reqHash := hashRequest(req)
	acquired, err := o.Idempotency.Acquire(ctx, req.IdempotencyKey, "/v1/orders", reqHash)
	if err != nil {
		return nil, newSagaError(ErrInternal, "idempotency store unavailable")
	}

	switch acquired.Outcome {
	case idempotency.Replay:
		var replayed Order
		if err := json.Unmarshal(acquired.Record.ResponseBody, &replayed); err != nil {
			return nil, newSagaError(ErrInternal, "corrupt idempotency record")
		}
		return &replayed, nil
	case idempotency.Conflict:
		return nil, newSagaError(ErrConflict, "idempotency key already in use with a different outcome")
	}

	order, sagaErr := o.run(ctx, req)
	status := 201
	var body []byte
	if sagaErr != nil {
		status = sagaErr.Kind.HTTPStatus()
		body, _ = json.Marshal(map[string]any{
			"error":   sagaErr.Kind,
			"message": sagaErr.Message,
			"orderId": sagaErr.OrderID,
		})
	} else {
		body, _ = json.Marshal(order)
	}
	if ferr := o.Idempotency.Finalize(ctx, req.IdempotencyKey, status, body); ferr != nil {
		o.Log.Error("idempotency finalize failed", zap.Error(ferr), zap.String("key", req.IdempotencyKey))
	}

	return order, sagaErr
}

// run executes phases 2 through 6 of the saga. Callers must not call this
// directly; it assumes the idempotency gate has already been cleared.
func (o *Orchestrator) run(ctx context.Context, req CreateRequest) (*Order, *SagaError) {
	priced, sagaErr := o.priceItems(ctx, req.Items)
	if sagaErr != nil {
		return nil, sagaErr
	}

	lineItems := make([]totals.LineItem, len(priced))
	for i, it := range priced {
		lineItems[i] = totals.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	breakdown, err := totals.Compute(lineItems, totals.Options{TaxRate: o.TaxRate})
	if err != nil {
		return nil, newSagaError(ErrPricingFailed, err.Error())
	}

	order, err := o.Repo.CreatePending(ctx, req.CustomerID, priced, breakdown.Total, breakdown.Signature)
	if err != nil {
		o.Log.Error("saga: persist pending order failed", zap.Error(err))
		return nil, newSagaError(ErrOrderFailed, "failed to persist order")
	}
	order.Totals = &TotalsBreakdown{
		Subtotal: breakdown.Subtotal, TaxRate: breakdown.TaxRate,
		TaxAmount: breakdown.TaxAmount, ShippingCost: breakdown.ShippingCost, Total: breakdown.Total,
	}
	o.publish(kafkax.TypeOrderCreated, order.ID, kafkax.OrderCreatedPayload{
		OrderID: order.ID, CustomerID: order.CustomerID, Total: order.Total.StringFixed(2),
	})

	reserved, sagaErr := o.reserveInventory(ctx, order, req.IdempotencyKey)
	if sagaErr != nil {
		o.compensate(ctx, order.ID, "inventory reservation failed", reserved)
		return nil, sagaErr
	}

	chargeRef, sagaErr := o.chargePayment(ctx, order, req.PaymentMethod, req.IdempotencyKey)
	if sagaErr != nil {
		o.compensate(ctx, order.ID, "payment failed", reserved)
		return nil, sagaErr
	}

	if reserved {
		if err := o.Inventory.Confirm(ctx, order.ID); err != nil {
			o.Log.Warn("saga: inventory confirm failed after payment succeeded; reservation will expire via TTL",
				zap.String("orderId", order.ID), zap.Error(err))
		}
	}

	if err := o.Repo.MarkPaymentSuccess(ctx, order.ID, chargeRef); err != nil {
		o.Log.Error("saga: mark payment success failed", zap.Error(err), zap.String("orderId", order.ID))
		o.publish(kafkax.TypeReconciliationAlert, order.ID, kafkax.ReconciliationAlertPayload{
			OrderID: order.ID, Step: "mark_payment_success", Detail: err.Error(),
		})
	}
	order.PaymentStatus = PaymentSuccess
	order.PaymentRef = &chargeRef

	o.publish(kafkax.TypeOrderFinalized, order.ID, kafkax.OrderFinalizedPayload{
		OrderID: order.ID, FinalStatus: string(StatusPending), PaymentRef: chargeRef,
	})

	return order, nil
}

// priceItems implements phase 2 (spec §4.1): batch-price every line through
// the catalog, then fetch each line's SKU/name detail concurrently — one
// goroutine per product, fanned in with a WaitGroup — since the per-product
// detail lookups are independent reads with nothing to serialize.
func (o *Orchestrator) priceItems(ctx context.Context, items []ItemInput) ([]Item, *SagaError) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	prices, err := o.Catalog.Prices(ctx, ids)
	if err != nil {
		o.Log.Warn("saga: catalog pricing failed", zap.Error(err))
		return nil, newSagaError(ErrPricingFailed, "catalog lookup failed: "+err.Error())
	}

	details := make([]catalog.Details, len(items))
	detailErrs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, productID string) {
			defer wg.Done()
			details[i], detailErrs[i] = o.Catalog.Details(ctx, productID)
		}(i, it.ProductID)
	}
	wg.Wait()

	out := make([]Item, len(items))
	for i, it := range items {
		if err := detailErrs[i]; err != nil {
			if errors.Is(err, catalog.ErrMissingProduct) {
				return nil, newSagaError(ErrPricingFailed, "unknown product "+it.ProductID)
			}
			return nil, newSagaError(ErrPricingFailed, "catalog lookup failed: "+err.Error())
		}
		sku := it.SKU
		if sku == "" {
			sku = details[i].SKU
		}
		out[i] = Item{
			ProductID: it.ProductID,
			SKU:       sku,
			Name:      details[i].Name,
			Quantity:  it.Quantity,
			UnitPrice: prices[it.ProductID],
			TaxRate:   o.taxRateOrDefault(),
		}
	}
	return out, nil
}

func (o *Orchestrator) taxRateOrDefault() decimal.Decimal {
	if o.TaxRate == nil {
		return totals.DefaultTaxRate
	}
	return *o.TaxRate
}

// reserveInventory implements phase 4. A PARTIAL result is treated as a
// failure of the whole order: the saga requires every line fully
// reservable before payment is attempted (spec §4.1, §8).
func (o *Orchestrator) reserveInventory(ctx context.Context, order *Order, idemKey string) (bool, *SagaError) {
	items := make([]inventoryclient.ReserveItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = inventoryclient.ReserveItem{ProductID: it.ProductID, Qty: it.Quantity, SKU: it.SKU}
	}

	resp, err := o.Inventory.Reserve(ctx, inventoryclient.ReserveRequest{
		OrderID: order.ID, Items: items, IdempotencyKey: idemKey,
	})
	if err != nil {
		if errors.Is(err, inventoryclient.ErrDuplicateIdempotencyKey) {
			return false, newSagaErrorWithOrder(ErrInventoryFailed, "inventory reservation key conflict", order.ID)
		}
		o.Log.Warn("saga: inventory reserve failed", zap.Error(err), zap.String("orderId", order.ID))
		return false, newSagaErrorWithOrder(ErrInventoryFailed, "inventory service unavailable", order.ID)
	}

	if resp.Status == inventoryclient.StatusPartial {
		return true, newSagaErrorWithOrder(ErrInventoryFailed, "insufficient stock for one or more items", order.ID)
	}
	return true, nil
}

// chargePayment implements phase 5.
func (o *Orchestrator) chargePayment(ctx context.Context, order *Order, method, idemKey string) (string, *SagaError) {
	if method == "" {
		method = "default"
	}
	result, err := o.Payment.Charge(ctx, payment.ChargeRequest{
		OrderID: order.ID, Amount: order.Total, Method: method, IdempotencyKey: idemKey,
	})
	if err != nil {
		o.Log.Warn("saga: payment charge failed", zap.Error(err), zap.String("orderId", order.ID))
		o.publish(kafkax.TypePaymentFailed, order.ID, kafkax.PaymentFailedPayload{OrderID: order.ID, Reason: err.Error()})
		return "", newSagaErrorWithOrder(ErrPaymentFailed, "payment declined", order.ID)
	}
	o.publish(kafkax.TypePaymentAuthorized, order.ID, kafkax.PaymentAuthorizedPayload{OrderID: order.ID, PaymentRef: result.Reference})
	return result.Reference, nil
}

// compensate implements spec §4.1's compensation path: release any
// reservation, mark the order cancelled, and raise a reconciliation alert
// if the compensation itself cannot complete rather than masking the
// original failure.
func (o *Orchestrator) compensate(ctx context.Context, orderID, reason string, releaseInventory bool) {
	if releaseInventory {
		if err := o.Inventory.Release(ctx, orderID); err != nil {
			o.Log.Error("saga: compensation release failed", zap.Error(err), zap.String("orderId", orderID))
			o.publish(kafkax.TypeReconciliationAlert, orderID, kafkax.ReconciliationAlertPayload{
				OrderID: orderID, Step: "release_inventory", Detail: err.Error(),
			})
		}
	}
	if err := o.Repo.MarkCancelled(ctx, orderID); err != nil {
		o.Log.Error("saga: compensation mark-cancelled failed", zap.Error(err), zap.String("orderId", orderID))
		o.publish(kafkax.TypeReconciliationAlert, orderID, kafkax.ReconciliationAlertPayload{
			OrderID: orderID, Step: "mark_cancelled", Detail: err.Error(),
		})
		return
	}
	o.publish(kafkax.TypeOrderCancelled, orderID, kafkax.OrderCancelledPayload{OrderID: orderID, Reason: reason})
}

func (o *Orchestrator) publish(eventType, correlationID string, payload any) {
	if o.Producer == nil {
		return
	}
	env := kafkax.Envelope{
		EventID: uuid.NewString(), EventType: eventType, EventVersion: 1,
		Producer: o.ServiceName, CorrelationID: correlationID, Payload: kafkax.Marshal(payload),
	}
	o.Producer.Publish(kafkax.TopicForEventType(eventType), []byte(correlationID), kafkax.Marshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)})
}

func newSagaErrorWithOrder(kind ErrorKind, msg, orderID string) *SagaError {
	return &SagaError{Kind: kind, Message: msg, OrderID: orderID}
}

func validateCreateRequest(req CreateRequest) *SagaError {
	if req.CustomerID == "" {
		return newSagaError(ErrValidation, "customerId is required")
	}
	if req.IdempotencyKey == "" {
		return newSagaError(ErrValidation, "Idempotency-Key header is required")
	}
	if len(req.Items) == 0 {
		return newSagaError(ErrValidation, "at least one item is required")
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return newSagaError(ErrValidation, "item productId is required")
		}
		if it.Quantity <= 0 {
			return newSagaError(ErrValidation, "item quantity must be positive")
		}
	}
	return nil
}

// hashRequest produces a stable, item-order-independent fingerprint of a
// create request. It is stored with the idempotency record for auditing;
// the store does not compare it, so a replay is served even when the body
// differs.
func hashRequest(req CreateRequest) string {
	items := make([]ItemInput, len(req.Items))
	copy(items, req.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	payload := struct {
		CustomerID string      `json:"customerId"`
		Items      []ItemInput `json:"items"`
		Method     string      `json:"paymentMethod"`
	}{CustomerID: req.CustomerID, Items: items, Method: req.PaymentMethod}

	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
