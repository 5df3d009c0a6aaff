package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// ReceiptType distinguishes a receipt applied against invoices from plain
// cash received.
type ReceiptType string

const (
	ReceiptTypeApplyToInvoice ReceiptType = "APPLY_TO_INVOICE"
	ReceiptTypeCashReceipt    ReceiptType = "CASH_RECEIPT"
)

// IsValid checks if the receipt type is valid
func (t ReceiptType) IsValid() bool {
	return t == ReceiptTypeApplyToInvoice || t == ReceiptTypeCashReceipt
}

// String returns the string representation of ReceiptType
func (t ReceiptType) String() string {
	return string(t)
}

// ReceiptCategory categorizes what was received for
type ReceiptCategory string

const (
	ReceiptCategoryRent    ReceiptCategory = "RENT"
	ReceiptCategoryGeneral ReceiptCategory = "GENERAL"
)

// IsValid checks if the receipt category is valid
func (c ReceiptCategory) IsValid() bool {
	return c == ReceiptCategoryRent || c == ReceiptCategoryGeneral
}

// ReceiptLine is the per-invoice application detail of a receipt. The amounts
// are a snapshot of the invoice taken at application time, so the printed
// receipt stays truthful even as the invoice moves on.
type ReceiptLine struct {
	ID               uuid.UUID       `json:"id"`
	ReceiptID        uuid.UUID       `json:"receipt_id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceTotal     decimal.Decimal `json:"invoice_total"`
	PreviousReceipts decimal.Decimal `json:"previous_receipts"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	Payment          decimal.Decimal `json:"payment"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	WithholdingTax   decimal.Decimal `json:"withholding_tax"`
}

// Receipt records a single money-received event, independent of how many
// invoices it settles. Its settlement detail is held in lock-step: every
// allocation to an invoice produces exactly one ReceiptLine and exactly one
// Payment stamped with the receipt id.
type Receipt struct {
	shared.OrgAggregateRoot
	ReceiptNumber  string          `json:"receipt_number"`
	Type           ReceiptType     `json:"receipt_type"`
	Category       ReceiptCategory `json:"category"`
	PayerName      string          `json:"payer_name"`
	LesseeID       *uuid.UUID      `json:"lessee_id,omitempty"`
	LandlordID     *uuid.UUID      `json:"landlord_id,omitempty"`
	Method         PaymentMethod   `json:"payment_method"`
	DepositAccount string          `json:"deposit_account,omitempty"`
	RecordingDate  time.Time       `json:"recording_date"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Currency       valueobject.Currency `json:"currency"`
	SpotRate       decimal.Decimal `json:"spot_rate"`
	BankingDate    *time.Time      `json:"banking_date,omitempty"`
	Lines          []ReceiptLine   `json:"lines,omitempty"`
}

// NewReceipt creates a receipt header. Allocations are added afterwards with
// AllocateToInvoice and checked as a whole with ValidateSettlement before
// anything is persisted.
func NewReceipt(
	orgID uuid.UUID,
	receiptNumber string,
	receiptType ReceiptType,
	category ReceiptCategory,
	payerName string,
	lesseeID, landlordID *uuid.UUID,
	method PaymentMethod,
	depositAccount string,
	recordingDate time.Time,
	amountReceived decimal.Decimal,
	currency valueobject.Currency,
	spotRate decimal.Decimal,
	bankingDate *time.Time,
	recordedBy string,
) (*Receipt, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Organization ID cannot be empty")
	}
	if receiptNumber == "" {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Receipt number cannot be empty")
	}
	if !receiptType.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Receipt type %q is not valid", receiptType))
	}
	if category == "" {
		category = ReceiptCategoryGeneral
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Receipt category %q is not valid", category))
	}
	if payerName == "" {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Payer name is required")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Payment method %q is not valid", method))
	}
	if recordingDate.IsZero() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Recording date is required")
	}
	if amountReceived.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Amount received must be positive")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Unsupported currency %q", currency))
	}

	r := &Receipt{
		OrgAggregateRoot: shared.NewOrgAggregateRootWithActor(orgID, recordedBy),
		ReceiptNumber:    receiptNumber,
		Type:             receiptType,
		Category:         category,
		PayerName:        payerName,
		LesseeID:         lesseeID,
		LandlordID:       landlordID,
		Method:           method,
		DepositAccount:   depositAccount,
		RecordingDate:    recordingDate,
		AmountReceived:   amountReceived,
		Currency:         currency,
		SpotRate:         spotRate,
		BankingDate:      bankingDate,
		Lines:            make([]ReceiptLine, 0),
	}

	r.AddDomainEvent(NewReceiptCreatedEvent(r))

	return r, nil
}

// AllocateToInvoice applies part of the receipt to one invoice and records
// the application snapshot as a receipt line. The invoice must already pass
// ValidatePayment for the amount; the caller creates the matching Payment and
// reconciles the invoice in the same transaction.
func (r *Receipt) AllocateToInvoice(inv *Invoice, amount, withholdingTax decimal.Decimal) (*ReceiptLine, error) {
	if inv == nil {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Invoice is required for an allocation")
	}
	if !inv.BelongsTo(r.OrganizationID) {
		// Never reveal that the invoice exists under another organization.
		return nil, shared.ErrNotFound
	}
	if withholdingTax.IsNegative() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Withholding tax must not be negative")
	}
	if err := inv.ValidatePayment(amount, r.Currency); err != nil {
		return nil, err
	}

	line := ReceiptLine{
		ID:               uuid.New(),
		ReceiptID:        r.ID,
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		InvoiceTotal:     inv.TotalAmount,
		PreviousReceipts: inv.PaidAmount,
		AmountDue:        inv.BalanceAmount,
		Payment:          amount,
		NewBalance:       inv.BalanceAmount.Sub(amount),
		WithholdingTax:   withholdingTax,
	}
	r.Lines = append(r.Lines, line)

	return &line, nil
}

// ValidateSettlement checks the receipt's settlement shape and conservation:
// an APPLY_TO_INVOICE receipt needs at least one line, a CASH_RECEIPT may
// have none, and whenever lines are present their payments must sum to the
// declared amount received within ConservationTolerance. Money is neither
// gained nor lost in the fan-out.
func (r *Receipt) ValidateSettlement() error {
	if r.Type == ReceiptTypeApplyToInvoice && len(r.Lines) == 0 {
		return shared.NewDomainError(shared.ErrCodeValidation, "An apply-to-invoice receipt requires at least one invoice allocation")
	}
	if len(r.Lines) == 0 {
		return nil
	}

	sum := decimal.Zero
	for i := range r.Lines {
		sum = sum.Add(r.Lines[i].Payment)
	}
	if sum.Sub(r.AmountReceived).Abs().GreaterThan(ConservationTolerance) {
		return shared.NewDomainError(shared.ErrCodeReconciliationMismatch,
			fmt.Sprintf("Receipt lines sum to %s but amount received is %s",
				sum.StringFixed(2), r.AmountReceived.StringFixed(2)))
	}
	return nil
}

// AllocatedAmount returns the sum of line payments
func (r *Receipt) AllocatedAmount() decimal.Decimal {
	sum := decimal.Zero
	for i := range r.Lines {
		sum = sum.Add(r.Lines[i].Payment)
	}
	return sum
}

// LineCount returns the number of invoice applications on the receipt
func (r *Receipt) LineCount() int {
	return len(r.Lines)
}

// GetAmountReceivedMoney returns the amount received as Money
func (r *Receipt) GetAmountReceivedMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(r.AmountReceived, r.Currency)
	return m
}
