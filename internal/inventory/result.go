package inventory

import (
	"errors"
	"time"
)

// ErrDuplicateIdempotencyKey means a reservation already exists for this
// key with non-ACTIVE status (spec §4.2.1).
var ErrDuplicateIdempotencyKey = errors.New("inventory: duplicate idempotency key, no active reservation")

const (
	ResultReserved = "RESERVED"
	ResultPartial  = "PARTIAL"
)

// AllocatedItem is one successfully reserved line.
type AllocatedItem struct {
	ProductID        string
	SKU              string
	Warehouse        string
	QuantityReserved int
	ReservationID    string
}

// PartialItem is one line that could not be (fully) allocated.
type PartialItem struct {
	ProductID string
	SKU       string
	Requested int
	Available int
}

// ReserveResult is the outcome of Reserve (spec §4.2.1).
type ReserveResult struct {
	Status             string // RESERVED | PARTIAL
	AllocationStrategy string
	Idempotent         bool
	Items              []AllocatedItem
	Partial            []PartialItem
	ExpiresAt          time.Time
}

// ActionRequired is the hint attached to a PARTIAL result (spec §4.2.1,
// §8 boundary behaviors).
const ActionRequiredBackorderOrReduce = "BACKORDER_OR_REDUCE"

// LowStockSignal is an observable side effect of Reserve (spec §4.2.1):
// emitted whenever post-reservation availability drops below the
// configured threshold.
type LowStockSignal struct {
	ProductID string
	Warehouse string
	Available int
	Threshold int
}
