package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// ReceiptCreatedEvent is raised when a receipt is created
type ReceiptCreatedEvent struct {
	shared.BaseDomainEvent
	ReceiptID      uuid.UUID            `json:"receipt_id"`
	ReceiptNumber  string               `json:"receipt_number"`
	Type           ReceiptType          `json:"receipt_type"`
	PayerName      string               `json:"payer_name"`
	AmountReceived decimal.Decimal      `json:"amount_received"`
	Currency       valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *ReceiptCreatedEvent) EventType() string {
	return "ReceiptCreated"
}

// NewReceiptCreatedEvent creates a new ReceiptCreatedEvent
func NewReceiptCreatedEvent(r *Receipt) *ReceiptCreatedEvent {
	return &ReceiptCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ReceiptCreated", "Receipt", r.ID, r.OrganizationID),
		ReceiptID:       r.ID,
		ReceiptNumber:   r.ReceiptNumber,
		Type:            r.Type,
		PayerName:       r.PayerName,
		AmountReceived:  r.AmountReceived,
		Currency:        r.Currency,
	}
}

// ReceiptDeletedEvent is raised when a receipt and all payments it produced
// have been reversed and removed
type ReceiptDeletedEvent struct {
	shared.BaseDomainEvent
	ReceiptID        uuid.UUID       `json:"receipt_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	AmountReceived   decimal.Decimal `json:"amount_received"`
	ReversedPayments int             `json:"reversed_payments"`
}

// EventType returns the event type name
func (e *ReceiptDeletedEvent) EventType() string {
	return "ReceiptDeleted"
}

// NewReceiptDeletedEvent creates a new ReceiptDeletedEvent
func NewReceiptDeletedEvent(r *Receipt, reversedPayments int) *ReceiptDeletedEvent {
	return &ReceiptDeletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("ReceiptDeleted", "Receipt", r.ID, r.OrganizationID),
		ReceiptID:        r.ID,
		ReceiptNumber:    r.ReceiptNumber,
		AmountReceived:   r.AmountReceived,
		ReversedPayments: reversedPayments,
	}
}
