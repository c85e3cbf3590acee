package inventory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InitializeSchema creates the inventory_rows/reservations/movements
// tables, grounded on the same boot-time-migration pattern as
// orders.InitializeSchema (itself ported from hilaldev's InitializeSchema).
func InitializeSchema(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("checking inventory schema")

	const schema = `
	CREATE TABLE IF NOT EXISTS inventory_rows (
		product_id TEXT NOT NULL,
		warehouse  TEXT NOT NULL,
		on_hand    INT NOT NULL DEFAULT 0,
		reserved   INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (product_id, warehouse),
		CONSTRAINT on_hand_nonneg CHECK (on_hand >= 0),
		CONSTRAINT reserved_bounded CHECK (reserved >= 0 AND reserved <= on_hand)
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id              TEXT PRIMARY KEY,
		order_id        TEXT NOT NULL,
		product_id      TEXT NOT NULL,
		sku             TEXT NOT NULL,
		warehouse       TEXT NOT NULL,
		quantity        INT NOT NULL,
		idempotency_key TEXT NOT NULL,
		reserved_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at      TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL,
		UNIQUE (idempotency_key, order_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS movements (
		id         BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL,
		sku        TEXT NOT NULL,
		warehouse  TEXT NOT NULL,
		type       TEXT NOT NULL,
		quantity   INT NOT NULL,
		order_id   TEXT NOT NULL,
		note       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_order ON reservations(order_id);
	CREATE INDEX IF NOT EXISTS idx_reservations_expiry ON reservations(expires_at) WHERE status = 'ACTIVE';
	CREATE INDEX IF NOT EXISTS idx_movements_product_warehouse ON movements(product_id, warehouse);
	`

	if _, err := db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "inventory: initialize schema")
	}
	log.Info("inventory schema ready")
	return nil
}
