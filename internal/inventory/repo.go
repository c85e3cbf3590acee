package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Repo owns the inventory_rows, reservations, and movements tables and
// implements the locking discipline of spec §5: row lock + conditional
// update, so concurrent reservers never push reserved above on_hand.
type Repo struct {
	DB  *pgxpool.Pool
	TTL time.Duration // reservation TTL, spec §4.2.1 default 15m
}

const uniqueViolation = "23505"

// Reserve implements spec §4.2.1.
func (r *Repo) Reserve(ctx context.Context, orderID, idempotencyKey string, items []ItemRequest, lowStockThreshold int) (ReserveResult, []LowStockSignal, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return ReserveResult{}, nil, errors.Wrap(err, "inventory: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := r.existingReservations(ctx, tx, idempotencyKey, orderID)
	if err != nil {
		return ReserveResult{}, nil, errors.Wrap(err, "inventory: check existing reservations")
	}
	if len(existing) > 0 {
		var active []Reservation
		for _, e := range existing {
			if e.Status == ReservationActive {
				active = append(active, e)
			}
		}
		if len(active) > 0 {
			return replayResult(active), nil, nil
		}
		return ReserveResult{}, nil, ErrDuplicateIdempotencyKey
	}

	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}

	stock, err := r.lockStock(ctx, tx, productIDs)
	if err != nil {
		return ReserveResult{}, nil, errors.Wrap(err, "inventory: lock stock")
	}

	plan := BuildPlan(stock, items)

	var allocated []AllocatedItem
	var partial []PartialItem
	lowStock := map[string]LowStockSignal{}

	for _, it := range items {
		reservation, available, ok, err := r.reserveItem(ctx, tx, orderID, idempotencyKey, it, plan.Candidates[it.ProductID])
		if err != nil {
			return ReserveResult{}, nil, errors.Wrap(err, "inventory: reserve item")
		}
		if !ok {
			partial = append(partial, PartialItem{ProductID: it.ProductID, SKU: it.SKU, Requested: it.Quantity, Available: available})
			continue
		}
		allocated = append(allocated, AllocatedItem{
			ProductID:        it.ProductID,
			SKU:              it.SKU,
			Warehouse:        reservation.Warehouse,
			QuantityReserved: it.Quantity,
			ReservationID:    reservation.ID,
		})
		if available-it.Quantity < lowStockThreshold {
			lowStock[reservation.Warehouse+"|"+it.ProductID] = LowStockSignal{
				ProductID: it.ProductID,
				Warehouse: reservation.Warehouse,
				Available: available - it.Quantity,
				Threshold: lowStockThreshold,
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ReserveResult{}, nil, errors.Wrap(err, "inventory: commit reserve")
	}

	status := ResultReserved
	if len(partial) > 0 {
		status = ResultPartial
	}

	signals := make([]LowStockSignal, 0, len(lowStock))
	for _, s := range lowStock {
		signals = append(signals, s)
	}

	return ReserveResult{
		Status:             status,
		AllocationStrategy: plan.Strategy,
		Items:              allocated,
		Partial:            partial,
		ExpiresAt:          time.Now().Add(r.ttl()),
	}, signals, nil
}

func (r *Repo) ttl() time.Duration {
	if r.TTL <= 0 {
		return 15 * time.Minute
	}
	return r.TTL
}

func replayResult(active []Reservation) ReserveResult {
	items := make([]AllocatedItem, 0, len(active))
	var expires time.Time
	for _, a := range active {
		items = append(items, AllocatedItem{
			ProductID:        a.ProductID,
			SKU:              a.SKU,
			Warehouse:        a.Warehouse,
			QuantityReserved: a.Quantity,
			ReservationID:    a.ID,
		})
		if a.ExpiresAt.After(expires) {
			expires = a.ExpiresAt
		}
	}
	return ReserveResult{Status: ResultReserved, Idempotent: true, Items: items, ExpiresAt: expires}
}

func (r *Repo) existingReservations(ctx context.Context, tx pgx.Tx, idempotencyKey, orderID string) ([]Reservation, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, product_id, sku, warehouse, quantity, idempotency_key, reserved_at, expires_at, status
		FROM reservations WHERE idempotency_key = $1 AND order_id = $2
	`, idempotencyKey, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.OrderID, &res.ProductID, &res.SKU, &res.Warehouse, &res.Quantity,
			&res.IdempotencyKey, &res.ReservedAt, &res.ExpiresAt, &res.Status); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// lockStock takes SELECT ... FOR UPDATE on every inventory row for the
// requested products, across all warehouses, implementing spec §5's
// locking discipline before any conditional update is attempted.
func (r *Repo) lockStock(ctx context.Context, tx pgx.Tx, productIDs []string) (map[string][]WarehouseStock, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, warehouse, on_hand, reserved
		FROM inventory_rows WHERE product_id = ANY($1)
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]WarehouseStock{}
	for rows.Next() {
		var pid, wh string
		var onHand, reserved int
		if err := rows.Scan(&pid, &wh, &onHand, &reserved); err != nil {
			return nil, err
		}
		out[pid] = append(out[pid], WarehouseStock{Warehouse: wh, Available: onHand - reserved})
	}
	return out, rows.Err()
}

// reserveItem walks the candidate warehouse list for one item, retrying
// the next candidate whenever the conditional update loses a race
// (spec §4.2.1 step 3).
func (r *Repo) reserveItem(ctx context.Context, tx pgx.Tx, orderID, idempotencyKey string, it ItemRequest, candidates []string) (Reservation, int, bool, error) {
	bestAvailable := 0
	for _, wh := range candidates {
		var available int
		if err := tx.QueryRow(ctx, `
			SELECT on_hand - reserved FROM inventory_rows WHERE product_id = $1 AND warehouse = $2
		`, it.ProductID, wh).Scan(&available); err != nil {
			continue
		}
		if available > bestAvailable {
			bestAvailable = available
		}
		if available < it.Quantity {
			continue
		}

		tag, err := tx.Exec(ctx, `
			UPDATE inventory_rows SET reserved = reserved + $3, updated_at = now()
			WHERE product_id = $1 AND warehouse = $2 AND on_hand - reserved >= $3
		`, it.ProductID, wh, it.Quantity)
		if err != nil {
			return Reservation{}, bestAvailable, false, err
		}
		if tag.RowsAffected() == 0 {
			// Lost the race to a concurrent reserver; try the next candidate.
			continue
		}

		reservation, err := r.insertReservation(ctx, tx, orderID, idempotencyKey, it, wh)
		if err != nil {
			return Reservation{}, bestAvailable, false, err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO movements (product_id, sku, warehouse, type, quantity, order_id, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ProductID, it.SKU, wh, MovementReserve, it.Quantity, orderID, "reserve"); err != nil {
			return Reservation{}, bestAvailable, false, err
		}

		return reservation, available, true, nil
	}
	return Reservation{}, bestAvailable, false, nil
}

// insertReservation handles the unique-key collision on
// (idempotency_key, order_id, product_id) described in spec §4.2.1 step 4:
// reuse the existing row instead of erroring.
func (r *Repo) insertReservation(ctx context.Context, tx pgx.Tx, orderID, idempotencyKey string, it ItemRequest, warehouse string) (Reservation, error) {
	id := uuid.NewString()
	expiresAt := time.Now().Add(r.ttl())

	_, err := tx.Exec(ctx, `
		INSERT INTO reservations (id, order_id, product_id, sku, warehouse, quantity, idempotency_key, reserved_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, $9)
	`, id, orderID, it.ProductID, it.SKU, warehouse, it.Quantity, idempotencyKey, expiresAt, ReservationActive)
	if err == nil {
		return Reservation{
			ID: id, OrderID: orderID, ProductID: it.ProductID, SKU: it.SKU, Warehouse: warehouse,
			Quantity: it.Quantity, IdempotencyKey: idempotencyKey, ExpiresAt: expiresAt, Status: ReservationActive,
		}, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		var existing Reservation
		scanErr := tx.QueryRow(ctx, `
			SELECT id, order_id, product_id, sku, warehouse, quantity, idempotency_key, reserved_at, expires_at, status
			FROM reservations WHERE idempotency_key = $1 AND order_id = $2 AND product_id = $3
		`, idempotencyKey, orderID, it.ProductID).Scan(&existing.ID, &existing.OrderID, &existing.ProductID, &existing.SKU,
			&existing.Warehouse, &existing.Quantity, &existing.IdempotencyKey, &existing.ReservedAt, &existing.ExpiresAt, &existing.Status)
		if scanErr != nil {
			return Reservation{}, errors.Wrap(scanErr, "inventory: read conflicting reservation")
		}
		return existing, nil
	}
	return Reservation{}, err
}

// Confirm implements spec §4.2.2: ACTIVE -> CONFIRMED.
func (r *Repo) Confirm(ctx context.Context, orderID string, reservationIDs []string) error {
	var err error
	if len(reservationIDs) > 0 {
		_, err = r.DB.Exec(ctx, `
			UPDATE reservations SET status = $1 WHERE order_id = $2 AND id = ANY($3) AND status = $4
		`, ReservationConfirmed, orderID, reservationIDs, ReservationActive)
	} else {
		_, err = r.DB.Exec(ctx, `
			UPDATE reservations SET status = $1 WHERE order_id = $2 AND status = $3
		`, ReservationConfirmed, orderID, ReservationActive)
	}
	return errors.Wrap(err, "inventory: confirm")
}

// Release implements spec §4.2.3: idempotent release of all ACTIVE
// reservations for an order.
func (r *Repo) Release(ctx context.Context, orderID, note string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "inventory: begin release tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, sku, warehouse, quantity FROM reservations
		WHERE order_id = $1 AND status = $2
		FOR UPDATE
	`, orderID, ReservationActive)
	if err != nil {
		return errors.Wrap(err, "inventory: query active reservations")
	}

	type rel struct {
		id, productID, sku, warehouse string
		qty                           int
	}
	var toRelease []rel
	for rows.Next() {
		var x rel
		if err := rows.Scan(&x.id, &x.productID, &x.sku, &x.warehouse, &x.qty); err != nil {
			rows.Close()
			return errors.Wrap(err, "inventory: scan reservation")
		}
		toRelease = append(toRelease, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range toRelease {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_rows SET reserved = GREATEST(reserved - $3, 0), updated_at = now()
			WHERE product_id = $1 AND warehouse = $2
		`, x.productID, x.warehouse, x.qty); err != nil {
			return errors.Wrap(err, "inventory: decrement reserved")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO movements (product_id, sku, warehouse, type, quantity, order_id, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, x.productID, x.sku, x.warehouse, MovementRelease, x.qty, orderID, note); err != nil {
			return errors.Wrap(err, "inventory: insert release movement")
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $1 WHERE order_id = $2 AND status = $3
	`, ReservationReleased, orderID, ReservationActive); err != nil {
		return errors.Wrap(err, "inventory: mark reservations released")
	}

	return errors.Wrap(tx.Commit(ctx), "inventory: commit release")
}

// ShipItem is one line of a ship request.
type ShipItem struct {
	ProductID string
	SKU       string
	Warehouse string
	Quantity  int
}

// Ship implements spec §4.2.4: consume reserved stock by decrementing both
// on_hand and reserved, clamped at zero.
func (r *Repo) Ship(ctx context.Context, orderID string, items []ShipItem) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "inventory: begin ship tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_rows
			SET on_hand = GREATEST(on_hand - $3, 0), reserved = GREATEST(reserved - $3, 0), updated_at = now()
			WHERE product_id = $1 AND warehouse = $2
		`, it.ProductID, it.Warehouse, it.Quantity); err != nil {
			return errors.Wrap(err, "inventory: decrement stock for ship")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO movements (product_id, sku, warehouse, type, quantity, order_id, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ProductID, it.SKU, it.Warehouse, MovementShip, it.Quantity, orderID, "ship"); err != nil {
			return errors.Wrap(err, "inventory: insert ship movement")
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE reservations SET status = $1
		WHERE order_id = $2 AND status IN ($1, $3)
	`, ReservationConfirmed, orderID, ReservationActive)
	if err != nil {
		return errors.Wrap(err, "inventory: touch reservations on ship")
	}

	return errors.Wrap(tx.Commit(ctx), "inventory: commit ship")
}

// ExpireReservations implements the reaper (spec §4.2.5): find every
// ACTIVE reservation whose TTL has elapsed, transition it to EXPIRED, and
// release its reserved quantity with an auto-release movement entry. Safe
// to run concurrently with user operations because it uses the same
// row-locking discipline as Reserve/Release.
func (r *Repo) ExpireReservations(ctx context.Context) ([]Reservation, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "inventory: begin reaper tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, order_id, product_id, sku, warehouse, quantity, idempotency_key, reserved_at, expires_at, status
		FROM reservations WHERE status = $1 AND expires_at < now()
		FOR UPDATE
	`, ReservationActive)
	if err != nil {
		return nil, errors.Wrap(err, "inventory: query expired reservations")
	}

	var expired []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.OrderID, &res.ProductID, &res.SKU, &res.Warehouse, &res.Quantity,
			&res.IdempotencyKey, &res.ReservedAt, &res.ExpiresAt, &res.Status); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, res := range expired {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_rows SET reserved = GREATEST(reserved - $3, 0), updated_at = now()
			WHERE product_id = $1 AND warehouse = $2
		`, res.ProductID, res.Warehouse, res.Quantity); err != nil {
			return nil, errors.Wrap(err, "inventory: decrement reserved on expiry")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO movements (product_id, sku, warehouse, type, quantity, order_id, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, res.ProductID, res.SKU, res.Warehouse, MovementRelease, res.Quantity, res.OrderID, "auto-release: reservation expired"); err != nil {
			return nil, errors.Wrap(err, "inventory: insert expiry movement")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reservations SET status = $1 WHERE id = $2 AND status = $3
		`, ReservationExpired, res.ID, ReservationActive); err != nil {
			return nil, errors.Wrap(err, "inventory: mark reservation expired")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "inventory: commit reaper")
	}
	return expired, nil
}
