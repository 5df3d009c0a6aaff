package event

import (
	"github.com/nyumbani/backend/internal/domain/billing"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Invoice events
	serializer.Register("InvoiceIssued", &billing.InvoiceIssuedEvent{})
	serializer.Register("InvoicePaid", &billing.InvoicePaidEvent{})
	serializer.Register("InvoicePartiallyPaid", &billing.InvoicePartiallyPaidEvent{})
	serializer.Register("InvoiceCancelled", &billing.InvoiceCancelledEvent{})

	// Payment events
	serializer.Register("PaymentRecorded", &billing.PaymentRecordedEvent{})
	serializer.Register("PaymentReversed", &billing.PaymentReversedEvent{})

	// Receipt events
	serializer.Register("ReceiptCreated", &billing.ReceiptCreatedEvent{})
	serializer.Register("ReceiptDeleted", &billing.ReceiptDeletedEvent{})
}
