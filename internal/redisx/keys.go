package redisx

import "time"

const (
	// KeyOrderStatus caches an order's JSON body for fast GETs:
	// order_status:{order_id} -> the marshalled order, items included
	KeyOrderStatus = "order_status:%s"

	// KeyDedup guards re-processing of an event: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"

	// KeyLowStockAlert throttles repeated low-stock warnings for the same
	// (product, warehouse) pair: low_stock:{product_id}:{warehouse}
	KeyLowStockAlert = "low_stock:%s:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLLowStockAlert = 10 * time.Minute
)
