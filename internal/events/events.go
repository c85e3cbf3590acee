// Package events defines the envelope-wrapped domain event stream published
// by both processes to Kafka, generalized from the teacher's
// internal/orders/events.go. This stream is the observable side-channel for
// saga suspension points (SPEC_FULL.md, SUPPLEMENTED FEATURES); it is not
// on the critical path of any saga phase.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeOrderCreated        = "OrderCreated"
	TypeOrderCancelled      = "OrderCancelled"
	TypeOrderFinalized      = "OrderFinalized"
	TypeStockReserved       = "StockReserved"
	TypeStockPartial        = "StockPartial"
	TypeStockReleased       = "StockReleased"
	TypeStockShipped        = "StockShipped"
	TypeReservationExpired  = "ReservationExpired"
	TypeLowStockWarning     = "LowStockWarning"
	TypePaymentAuthorized   = "PaymentAuthorized"
	TypePaymentFailed       = "PaymentFailed"
	TypeReconciliationAlert = "ReconciliationAlert"
)

// Envelope wraps every published event with tracing and versioning fields,
// matching the teacher's orders.Envelope shape.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"traceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Total      string `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type OrderFinalizedPayload struct {
	OrderID     string `json:"orderId"`
	FinalStatus string `json:"finalStatus"`
	PaymentRef  string `json:"paymentRef,omitempty"`
}

type StockReservedPayload struct {
	OrderID            string `json:"orderId"`
	AllocationStrategy string `json:"allocationStrategy"`
	Idempotent         bool   `json:"idempotent"`
}

type StockPartialPayload struct {
	OrderID string `json:"orderId"`
}

type StockReleasedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type StockShippedPayload struct {
	OrderID string `json:"orderId"`
}

type ReservationExpiredPayload struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
}

type LowStockWarningPayload struct {
	ProductID string `json:"productId"`
	Warehouse string `json:"warehouse"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
}

type PaymentAuthorizedPayload struct {
	OrderID    string `json:"orderId"`
	PaymentRef string `json:"paymentRef"`
}

type PaymentFailedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type ReconciliationAlertPayload struct {
	OrderID string `json:"orderId"`
	Step    string `json:"step"`
	Detail  string `json:"detail"`
}

func Marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Unwrap decodes an envelope's raw payload into its concrete type.
func Unwrap[T any](payload json.RawMessage) (T, error) {
	var t T
	err := json.Unmarshal(payload, &t)
	return t, err
}
