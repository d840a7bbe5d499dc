package events

// Topic names for the order lifecycle. Every event for one order is
// keyed by its orderId, so all three topics preserve per-order order.
const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderFailed    = "order.failed"
)
