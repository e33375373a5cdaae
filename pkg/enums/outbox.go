package enums

// OutboxAggregateType is the entity an outbox row describes.
type OutboxAggregateType string

const (
	AggregateInvoice      OutboxAggregateType = "invoice"
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
)

var aggregateTypes = values[OutboxAggregateType]{AggregateInvoice, AggregateOrder, AggregateSubscription}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType names a customer notification. The value doubles as the
// Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventInvoicePaymentLink OutboxEventType = "invoice.payment_link"
	EventInvoicePaid        OutboxEventType = "invoice.paid"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
)

var outboxEventTypes = values[OutboxEventType]{EventInvoicePaymentLink, EventInvoicePaid, EventOrderStatusChanged}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

// OutboxDLQErrorReason says why the relay gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = values[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
