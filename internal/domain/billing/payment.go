package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// PaymentMethod represents the method of payment
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodMpesa        PaymentMethod = "MPESA"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque,
		PaymentMethodMpesa, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentKind distinguishes a payment applied against an invoice from a
// free-standing cash payment.
type PaymentKind string

const (
	PaymentKindApplyToBill PaymentKind = "APPLY_TO_BILL"
	PaymentKindCashPayment PaymentKind = "CASH_PAYMENT"
)

// IsValid checks if the payment kind is valid
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindApplyToBill || k == PaymentKindCashPayment
}

// Payment is a single monetary movement received from a payer, optionally
// bound to one invoice and/or produced by a receipt. Payments are immutable
// after creation; deleting one reverses its effect on the linked invoice by
// a full reconciliation, never by decrementing.
type Payment struct {
	shared.OrgAggregateRoot
	InvoiceID     *uuid.UUID      `json:"invoice_id,omitempty"`
	LeaseID       *uuid.UUID      `json:"lease_id,omitempty"`
	ReceiptID     *uuid.UUID      `json:"receipt_id,omitempty"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	SpotRate      decimal.Decimal `json:"spot_rate"`
	Method        PaymentMethod   `json:"method"`
	Kind          PaymentKind     `json:"kind"`
	ChequeNumber  string          `json:"cheque_number,omitempty"`
	ChequeDate    *time.Time      `json:"cheque_date,omitempty"`
	MobileReceipt string          `json:"mobile_receipt,omitempty"`
	MobilePhone   string          `json:"mobile_phone,omitempty"`
	PayeeName     string          `json:"payee_name,omitempty"`
	PaidFrom      string          `json:"paid_from,omitempty"`
	PaidTo        string          `json:"paid_to,omitempty"`
}

// NewPayment creates a payment record. InvoiceID, LeaseID, and ReceiptID are
// optional; the service layer validates the invoice-side constraints
// (overpayment, currency match) against a locked invoice row before calling
// this.
func NewPayment(
	orgID uuid.UUID,
	invoiceID, leaseID, receiptID *uuid.UUID,
	paymentDate time.Time,
	amount decimal.Decimal,
	currency valueobject.Currency,
	spotRate decimal.Decimal,
	method PaymentMethod,
	kind PaymentKind,
	recordedBy string,
) (*Payment, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Organization ID cannot be empty")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Payment date is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Payment amount must be positive")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Unsupported currency %q", currency))
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Payment method %q is not valid", method))
	}
	if kind == "" {
		kind = PaymentKindCashPayment
		if invoiceID != nil {
			kind = PaymentKindApplyToBill
		}
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Payment kind %q is not valid", kind))
	}
	if kind == PaymentKindApplyToBill && invoiceID == nil {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "An apply-to-bill payment requires an invoice reference")
	}

	p := &Payment{
		OrgAggregateRoot: shared.NewOrgAggregateRootWithActor(orgID, recordedBy),
		InvoiceID:        invoiceID,
		LeaseID:          leaseID,
		ReceiptID:        receiptID,
		PaymentDate:      paymentDate,
		Amount:           amount,
		Currency:         currency,
		SpotRate:         spotRate,
		Method:           method,
		Kind:             kind,
	}

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// WithChequeDetails attaches cheque reference fields
func (p *Payment) WithChequeDetails(number string, date *time.Time) *Payment {
	p.ChequeNumber = number
	p.ChequeDate = date
	return p
}

// WithMobileDetails attaches mobile-money reference fields
func (p *Payment) WithMobileDetails(receipt, phone string) *Payment {
	p.MobileReceipt = receipt
	p.MobilePhone = phone
	return p
}

// WithParties attaches payer/payee free-text fields
func (p *Payment) WithParties(payeeName, paidFrom, paidTo string) *Payment {
	p.PayeeName = payeeName
	p.PaidFrom = paidFrom
	p.PaidTo = paidTo
	return p
}

// AppliesToInvoice returns true if the payment is bound to an invoice
func (p *Payment) AppliesToInvoice() bool {
	return p.InvoiceID != nil
}

// GetAmountMoney returns the amount as Money value object
func (p *Payment) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}
