package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// PaymentRecordedEvent is raised when a payment is recorded
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID            `json:"payment_id"`
	InvoiceID *uuid.UUID           `json:"invoice_id,omitempty"`
	ReceiptID *uuid.UUID           `json:"receipt_id,omitempty"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  valueobject.Currency `json:"currency"`
	Method    PaymentMethod        `json:"method"`
	Kind      PaymentKind          `json:"kind"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return "PaymentRecorded"
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentRecorded", "Payment", p.ID, p.OrganizationID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		ReceiptID:       p.ReceiptID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Method:          p.Method,
		Kind:            p.Kind,
	}
}

// PaymentReversedEvent is raised when a payment is deleted and its effect on
// the linked invoice has been reversed by reconciliation
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID            `json:"payment_id"`
	InvoiceID *uuid.UUID           `json:"invoice_id,omitempty"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *PaymentReversedEvent) EventType() string {
	return "PaymentReversed"
}

// NewPaymentReversedEvent creates a new PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentReversed", "Payment", p.ID, p.OrganizationID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		Currency:        p.Currency,
	}
}
