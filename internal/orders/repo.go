package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Repo persists orders and their items. Unlike the teacher's Repo, which
// keyed idempotency off external_id directly, idempotency here is owned by
// the idempotency.Store; Repo only knows how to write and read orders.
type Repo struct{ DB *pgxpool.Pool }

// CreatePending persists a new Order (status PENDING, payment PENDING) and
// its items in one transaction (spec §4.1 phase 3). Item insert order
// matches request order per spec's ordering guarantee.
func (r *Repo) CreatePending(ctx context.Context, customerID string, items []Item, total decimal.Decimal, signature string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "orders: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, status, payment_status, total_cents_exact, totals_signature)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orderID, customerID, StatusPending, PaymentPending, total.String(), signature)
	if err != nil {
		return nil, errors.Wrap(err, "orders: insert order")
	}

	out := &Order{
		ID:              orderID,
		CustomerID:      customerID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Total:           total,
		TotalsSignature: signature,
	}

	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].OrderID = orderID
		items[i].Status = ItemPending
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, sku, name, quantity, unit_price, tax_rate, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, items[i].ID, orderID, items[i].ProductID, items[i].SKU, items[i].Name,
			items[i].Quantity, items[i].UnitPrice.String(), items[i].TaxRate.String(), ItemPending)
		if err != nil {
			return nil, errors.Wrap(err, "orders: insert item")
		}
	}
	out.Items = items

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "orders: commit")
	}
	return out, nil
}

// MarkCancelled implements the compensation step (a) in spec §4.1.
func (r *Repo) MarkCancelled(ctx context.Context, orderID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1 AND status = $3
	`, orderID, StatusCancelled, StatusPending)
	return errors.Wrap(err, "orders: mark cancelled")
}

// MarkPaymentSuccess finalizes the order after a successful charge (phase 6).
func (r *Repo) MarkPaymentSuccess(ctx context.Context, orderID, paymentRef string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = $2, payment_ref = $3 WHERE id = $1 AND payment_status = $4
	`, orderID, PaymentSuccess, paymentRef, PaymentPending)
	return errors.Wrap(err, "orders: mark payment success")
}

// GetByID returns an order with its items, or pgx.ErrNoRows if absent.
func (r *Repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	var paymentRef *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, status, payment_status, total_cents_exact, totals_signature, payment_ref, created_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.CustomerID, &o.Status, &o.PaymentStatus, &o.Total, &o.TotalsSignature, &paymentRef, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.PaymentRef = paymentRef

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, sku, name, quantity, unit_price, tax_rate, status
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "orders: query items")
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Name, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.Status); err != nil {
			return nil, errors.Wrap(err, "orders: scan item")
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// ListRecent returns the last `limit` orders (50 when limit <= 0) by
// creation time, descending (spec §6: GET /v1/orders).
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, customer_id, status, payment_status, total_cents_exact, totals_signature, payment_ref, created_at
		FROM orders ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "orders: list recent")
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var paymentRef *string
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.PaymentStatus, &o.Total, &o.TotalsSignature, &paymentRef, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "orders: scan order")
		}
		o.PaymentRef = paymentRef
		out = append(out, o)
	}
	return out, rows.Err()
}

// ErrOrderNotFound wraps pgx's no-rows sentinel under a repo-local name so
// callers don't need to import pgx just to check for it.
var ErrOrderNotFound = pgx.ErrNoRows
