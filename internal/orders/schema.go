package orders

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InitializeSchema creates the orders/order_items/idempotency_records
// tables if they don't exist yet. Grounded on the schema-on-boot pattern
// of hilaldev's InitializeSchema (an example repo, not the teacher),
// adapted to this service's three tables.
func InitializeSchema(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("checking orders schema")

	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id                TEXT PRIMARY KEY,
		customer_id       TEXT NOT NULL,
		status            TEXT NOT NULL,
		payment_status    TEXT NOT NULL,
		total_cents_exact TEXT NOT NULL,
		totals_signature  TEXT NOT NULL,
		payment_ref       TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id         TEXT PRIMARY KEY,
		order_id   TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		sku        TEXT NOT NULL,
		name       TEXT NOT NULL,
		quantity   INT NOT NULL,
		unit_price TEXT NOT NULL,
		tax_rate   TEXT NOT NULL,
		status     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS idempotency_records (
		key             TEXT PRIMARY KEY,
		resource_path   TEXT NOT NULL,
		request_hash    TEXT NOT NULL,
		response_status INT,
		response_body   BYTEA,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
	`

	if _, err := db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "orders: initialize schema")
	}
	log.Info("orders schema ready")
	return nil
}
