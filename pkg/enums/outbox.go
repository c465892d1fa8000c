package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventPaymentCompleted OutboxEventType = "payment.completed"
	EventPaymentCancelled OutboxEventType = "payment.cancelled"
	EventOrderCancelled   OutboxEventType = "order.cancelled"
	EventPayoutCompleted  OutboxEventType = "payout.completed"
	EventPayoutFailed     OutboxEventType = "payout.failed"
)

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayout  OutboxAggregateType = "payout"
)
