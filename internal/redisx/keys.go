package redisx

import "time"

const (
	// Dedup webhook/worker event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cached product catalog listing (JSON array).
	KeyProductList = "catalog:products"

	// Per-product live stock: stock:product:{product_id} -> int
	KeyProductStock = "stock:product:%s"

	// Order status cache: order_status:{order_id} -> {"status":..,"payment_status":..}
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLProductList = 1 * time.Minute
	TTLStockCache  = 5 * time.Minute
	TTLStatusCache = 5 * time.Minute
)
