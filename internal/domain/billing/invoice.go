package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"          // Created but not yet billed
	InvoiceStatusPending       InvoiceStatus = "PENDING"        // Issued, nothing paid, not past due
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < paid < total
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // balance <= 0
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Nothing paid and past due date
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"      // Voided; sticky
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// CanCancel returns true if the invoice can be cancelled from this status
func (s InvoiceStatus) CanCancel() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPending || s == InvoiceStatusPartiallyPaid
}

// TransactionClass classifies what an invoice bills for
type TransactionClass string

const (
	TransactionClassRent          TransactionClass = "RENT"
	TransactionClassWater         TransactionClass = "WATER"
	TransactionClassGarbage       TransactionClass = "GARBAGE"
	TransactionClassElectricity   TransactionClass = "ELECTRICITY"
	TransactionClassServiceCharge TransactionClass = "SERVICE_CHARGE"
	TransactionClassPenalty       TransactionClass = "PENALTY"
	TransactionClassOther         TransactionClass = "OTHER"
)

// IsValid checks if the transaction class is valid
func (c TransactionClass) IsValid() bool {
	switch c {
	case TransactionClassRent, TransactionClassWater, TransactionClassGarbage,
		TransactionClassElectricity, TransactionClassServiceCharge,
		TransactionClassPenalty, TransactionClassOther:
		return true
	}
	return false
}

// String returns the string representation of TransactionClass
func (c TransactionClass) String() string {
	return string(c)
}

// InvoiceItem is a line entry on an invoice. Items are immutable once the
// invoice is issued; no partial line editing is modeled.
type InvoiceItem struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Particular    string          `json:"particular"`
	IncomeAccount string          `json:"income_account,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// NewInvoiceItem creates an invoice line entry. A zero quantity defaults to 1.
func NewInvoiceItem(particular, incomeAccount string, quantity, unitCost, taxRate decimal.Decimal) (*InvoiceItem, error) {
	if particular == "" {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Item particular cannot be empty")
	}
	if quantity.IsNegative() || unitCost.IsNegative() || taxRate.IsNegative() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Item quantity, unit cost, and tax rate must not be negative")
	}
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	net := quantity.Mul(unitCost)
	tax := net.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	return &InvoiceItem{
		ID:            uuid.New(),
		Particular:    particular,
		IncomeAccount: incomeAccount,
		Quantity:      quantity,
		UnitCost:      unitCost,
		TaxRate:       taxRate,
		TaxAmount:     tax,
		LineTotal:     net.Add(tax),
	}, nil
}

// NetAmount returns the line total excluding tax
func (i *InvoiceItem) NetAmount() decimal.Decimal {
	return i.LineTotal.Sub(i.TaxAmount)
}

// Invoice is a bill issued against a lease or directly against a landlord.
// It is the aggregate root whose paid/balance amounts every payment and
// receipt operation reconciles against.
type Invoice struct {
	shared.OrgAggregateRoot
	InvoiceNumber string           `json:"invoice_number"`
	LandlordID    *uuid.UUID       `json:"landlord_id,omitempty"`
	LeaseID       *uuid.UUID       `json:"lease_id,omitempty"`
	Class         TransactionClass `json:"transaction_class"`
	BillTo        string           `json:"bill_to,omitempty"`
	IssueDate     time.Time        `json:"issue_date"`
	DueDate       time.Time        `json:"due_date"`
	Currency      valueobject.Currency `json:"currency"`
	SpotRate      decimal.Decimal  `json:"spot_rate"` // Informational only; never applied
	Amount        decimal.Decimal  `json:"amount"`    // Principal
	VATAmount     decimal.Decimal  `json:"vat_amount"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	BalanceAmount decimal.Decimal  `json:"balance_amount"`
	Status        InvoiceStatus    `json:"status"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason  string           `json:"cancel_reason,omitempty"`
	Items         []InvoiceItem    `json:"items,omitempty"`
}

// itemSumTolerance bounds rounding drift between an invoice's line items and
// its declared principal/VAT amounts.
var itemSumTolerance = decimal.NewFromFloat(0.01)

// NewInvoice creates an invoice. The invoice number must already be assigned
// (callers obtain one from the per-organization sequence). Balance is derived
// from total and paid; status defaults to PENDING unless draft is requested.
func NewInvoice(
	orgID uuid.UUID,
	invoiceNumber string,
	landlordID, leaseID *uuid.UUID,
	class TransactionClass,
	billTo string,
	issueDate, dueDate time.Time,
	currency valueobject.Currency,
	spotRate decimal.Decimal,
	amount, vatAmount decimal.Decimal,
	paidAmount decimal.Decimal,
	draft bool,
	items []InvoiceItem,
) (*Invoice, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Organization ID cannot be empty")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Invoice number cannot exceed 50 characters")
	}
	if !class.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Transaction class is not valid")
	}
	if issueDate.IsZero() || dueDate.IsZero() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Issue date and due date are required")
	}
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Due date cannot precede issue date")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Unsupported currency %q", currency))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Invoice amount must be positive")
	}
	if vatAmount.IsNegative() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "VAT amount must not be negative")
	}
	if paidAmount.IsNegative() {
		return nil, shared.NewDomainError(shared.ErrCodeValidation, "Paid amount must not be negative")
	}

	total := amount.Add(vatAmount)
	if paidAmount.GreaterThan(total) {
		return nil, shared.NewDomainError(shared.ErrCodeOverpayment,
			fmt.Sprintf("Paid amount %s exceeds total amount %s", paidAmount.StringFixed(2), total.StringFixed(2)))
	}

	if len(items) > 0 {
		var net, tax decimal.Decimal
		for _, item := range items {
			net = net.Add(item.NetAmount())
			tax = tax.Add(item.TaxAmount)
		}
		if net.Sub(amount).Abs().GreaterThan(itemSumTolerance) || tax.Sub(vatAmount).Abs().GreaterThan(itemSumTolerance) {
			return nil, shared.NewDomainError(shared.ErrCodeReconciliationMismatch,
				fmt.Sprintf("Invoice items sum to %s net / %s tax, but the invoice declares %s / %s",
					net.StringFixed(2), tax.StringFixed(2), amount.StringFixed(2), vatAmount.StringFixed(2)))
		}
	}

	inv := &Invoice{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		InvoiceNumber:    invoiceNumber,
		LandlordID:       landlordID,
		LeaseID:          leaseID,
		Class:            class,
		BillTo:           billTo,
		IssueDate:        issueDate,
		DueDate:          dueDate,
		Currency:         currency,
		SpotRate:         spotRate,
		Amount:           amount,
		VATAmount:        vatAmount,
		TotalAmount:      total,
		PaidAmount:       paidAmount,
		BalanceAmount:    total.Sub(paidAmount),
		Status:           InvoiceStatusPending,
		Items:            make([]InvoiceItem, 0, len(items)),
	}
	if draft {
		inv.Status = InvoiceStatusDraft
	}
	for _, item := range items {
		item.InvoiceID = inv.ID
		inv.Items = append(inv.Items, item)
	}

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))

	return inv, nil
}

// ValidatePayment checks whether a payment of the given amount and currency
// may be applied to the invoice. Overpayment is rejected, never clamped.
func (inv *Invoice) ValidatePayment(amount decimal.Decimal, currency valueobject.Currency) error {
	if !inv.Status.CanApplyPayment() {
		return shared.NewDomainError(shared.ErrCodeInvalidState,
			fmt.Sprintf("Cannot apply payment to invoice in %s status", inv.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.ErrCodeValidation, "Payment amount must be positive")
	}
	if currency != inv.Currency {
		return shared.NewDomainError(shared.ErrCodeCurrencyMismatch,
			fmt.Sprintf("Payment currency %s does not match invoice currency %s", currency, inv.Currency))
	}
	if amount.GreaterThan(inv.BalanceAmount) {
		return shared.NewDomainError(shared.ErrCodeOverpayment,
			fmt.Sprintf("Payment amount %s exceeds outstanding balance %s", amount.StringFixed(2), inv.BalanceAmount.StringFixed(2)))
	}
	return nil
}

// ApplyReconciliation replaces the invoice's paid/balance amounts and status
// with a freshly computed reconciliation result.
func (inv *Invoice) ApplyReconciliation(result ReconciliationResult) {
	previous := inv.Status

	inv.PaidAmount = result.PaidAmount
	inv.BalanceAmount = result.BalanceAmount
	inv.Status = result.Status
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	if inv.Status != previous {
		switch inv.Status {
		case InvoiceStatusPaid:
			inv.AddDomainEvent(NewInvoicePaidEvent(inv))
		case InvoiceStatusPartiallyPaid:
			inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv))
		}
	}
}

// Cancel voids the invoice. Allowed only from DRAFT, PENDING, or
// PARTIALLY_PAID. Already-recorded payments remain historical facts;
// cancellation voids future billing, not past receipts.
func (inv *Invoice) Cancel(reason string) error {
	if !inv.Status.CanCancel() {
		return shared.NewDomainError(shared.ErrCodeInvalidState,
			fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewDomainError(shared.ErrCodeValidation, "Cancel reason is required")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// IsCancelled returns true if the invoice has been cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// HasPayments returns true if any amount has been applied
func (inv *Invoice) HasPayments() bool {
	return inv.PaidAmount.GreaterThan(decimal.Zero)
}

// IsOverdue returns true if the invoice is past due and nothing has been paid
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status != InvoiceStatusCancelled &&
		inv.PaidAmount.IsZero() &&
		now.After(inv.DueDate)
}

// GetTotalAmountMoney returns total amount as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.TotalAmount, inv.Currency)
	return m
}

// GetBalanceAmountMoney returns the outstanding balance as Money
func (inv *Invoice) GetBalanceAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.BalanceAmount, inv.Currency)
	return m
}
