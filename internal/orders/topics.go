package orders

const (
	TopicOrderCreated  = "order.created"
	TopicStatusChanged = "order.status.changed"
	TopicStockLow      = "product.stock.low"
)

// Partition key = order_id so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(NormalizeID(orderID)) }
