package redisx

import "time"

const (
	// Critical section lock: lock:{name} -> holder token
	KeyLock = "lock:%s"

	// Order summary cache: order_summary:{normalized order_id} -> OrderSummary JSON
	KeyOrderSummary = "order_summary:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSummaryCache = 30 * time.Second
	TTLDedup        = 48 * time.Hour
)
