// Package orders implements the Order Orchestrator: saga-driven order
// creation, its persistence, and its compensation path (spec §4.1).
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order's lifecycle state (spec §3).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus tracks the payment leg of the order independently of Status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// ItemStatus is the per-line-item lifecycle state.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemShipped   ItemStatus = "SHIPPED"
	ItemCancelled ItemStatus = "CANCELLED"
)

var validOrderTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

var validPaymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {PaymentSuccess: true, PaymentFailed: true},
	PaymentSuccess: {},
	PaymentFailed:  {},
}

// CanTransition reports whether an order may move from `from` to `to`.
// Generalized from the teacher's order-status state machine.
func CanTransition(from, to Status) bool { return validOrderTransitions[from][to] }

// CanTransitionPayment is CanTransition's payment-status counterpart.
func CanTransitionPayment(from, to PaymentStatus) bool { return validPaymentTransitions[from][to] }

// Order is the persisted order header.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Total           decimal.Decimal `json:"total"`
	TotalsSignature string          `json:"totalsSignature"`
	PaymentRef      *string         `json:"paymentRef,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`

	Items  []Item           `json:"items"`
	Totals *TotalsBreakdown `json:"totals,omitempty"`
}

// TotalsBreakdown is the wire shape of a totals.Breakdown, kept separate
// from internal/totals so the orders package doesn't leak that package's
// signature-construction details into the HTTP surface.
type TotalsBreakdown struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
}

// Item is an order line snapshot: product, SKU, and price are frozen at
// creation time and never mutated afterward (spec §3).
type Item struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	TaxRate   decimal.Decimal `json:"taxRate"`
	Status    ItemStatus      `json:"status"`
}

// ItemInput is what a client supplies per line in the create-order request.
type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku,omitempty"`
}

// CreateRequest is the validated create-order request body.
type CreateRequest struct {
	CustomerID     string      `json:"customerId"`
	Items          []ItemInput `json:"items"`
	PaymentMethod  string      `json:"paymentMethod,omitempty"`
	IdempotencyKey string      `json:"-"`
}
