package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status     *InvoiceStatus    // Filter by status
	Class      *TransactionClass // Filter by transaction class
	LandlordID *uuid.UUID        // Filter by landlord
	LeaseID    *uuid.UUID        // Filter by lease
	DueFrom    *time.Time        // Filter by due date range start
	DueTo      *time.Time        // Filter by due date range end
	Overdue    *bool             // Filter only overdue invoices
	MinBalance *decimal.Decimal  // Filter by minimum outstanding balance
	MaxBalance *decimal.Decimal  // Filter by maximum outstanding balance
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	InvoiceID *uuid.UUID     // Filter by invoice
	LeaseID   *uuid.UUID     // Filter by lease
	ReceiptID *uuid.UUID     // Filter by receipt
	Method    *PaymentMethod // Filter by payment method
	FromDate  *time.Time     // Filter by payment date range start
	ToDate    *time.Time     // Filter by payment date range end
}

// ReceiptFilter defines filtering options for receipt queries
type ReceiptFilter struct {
	shared.Filter
	Type       *ReceiptType     // Filter by receipt type
	Category   *ReceiptCategory // Filter by category
	LesseeID   *uuid.UUID       // Filter by lessee
	LandlordID *uuid.UUID       // Filter by landlord
	FromDate   *time.Time       // Filter by recording date range start
	ToDate     *time.Time       // Filter by recording date range end
}

// InvoiceRepository defines the interface for invoice persistence.
// Every finder takes the caller's organization id; an invoice belonging to a
// different organization is reported as not found.
type InvoiceRepository interface {
	// FindByIDForOrg finds an invoice (with items) by ID for an organization
	FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)

	// FindByIDForOrgLocked is FindByIDForOrg with the invoice row locked for
	// the remainder of the enclosing transaction (SELECT ... FOR UPDATE).
	// Callers must hold a transaction; reconciliations against the same
	// invoice must not interleave their read and write phases.
	FindByIDForOrgLocked(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)

	// FindByNumberForOrg finds an invoice by its invoice number
	FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForOrg lists invoices for an organization with filtering
	FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// CountForOrg counts invoices matching the filter
	CountForOrg(ctx context.Context, orgID uuid.UUID, filter InvoiceFilter) (int64, error)

	// SumOutstandingForOrg sums the outstanding balance of open invoices
	SumOutstandingForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)

	// SumOverdueForOrg sums the outstanding balance of overdue invoices
	SumOverdueForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)

	// Create persists a new invoice together with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// Save updates an existing invoice (amounts and status)
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// DeleteForOrg hard deletes an invoice and its line items
	DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error

	// DeleteManyForOrg hard deletes several invoices, returning the number
	// actually removed
	DeleteManyForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByIDForOrg finds a payment by ID for an organization
	FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*Payment, error)

	// FindAllForOrg lists payments for an organization with filtering
	FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter PaymentFilter) ([]Payment, error)

	// CountForOrg counts payments matching the filter
	CountForOrg(ctx context.Context, orgID uuid.UUID, filter PaymentFilter) (int64, error)

	// FindByInvoice returns every payment recorded against an invoice
	FindByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) ([]Payment, error)

	// FindByReceipt returns every payment produced by a receipt
	FindByReceipt(ctx context.Context, orgID, receiptID uuid.UUID) ([]Payment, error)

	// CountByInvoice counts payments referencing an invoice
	CountByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (int64, error)

	// Create persists a new payment
	Create(ctx context.Context, payment *Payment) error

	// DeleteForOrg hard deletes a payment
	DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error
}

// ReceiptRepository defines the interface for receipt persistence
type ReceiptRepository interface {
	// FindByIDForOrg finds a receipt (with lines) by ID for an organization
	FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*Receipt, error)

	// FindByNumberForOrg finds a receipt by its receipt number
	FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, receiptNumber string) (*Receipt, error)

	// FindAllForOrg lists receipts for an organization with filtering
	FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter ReceiptFilter) ([]Receipt, error)

	// CountForOrg counts receipts matching the filter
	CountForOrg(ctx context.Context, orgID uuid.UUID, filter ReceiptFilter) (int64, error)

	// Create persists a new receipt together with its lines
	Create(ctx context.Context, receipt *Receipt) error

	// DeleteForOrg hard deletes a receipt and its lines
	DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error
}

// Document kinds for per-organization number sequences
const (
	DocumentKindInvoice = "INVOICE"
	DocumentKindReceipt = "RECEIPT"
)

// SequenceRepository hands out per-organization monotonic document numbers.
// Implementations must make Next safe under concurrent creation (row lock or
// unique constraint with retry), never an application-level read-then-write
// counter.
type SequenceRepository interface {
	// Next returns the next sequence value for the given document kind and
	// period (e.g. "202608") within an organization, starting at 1.
	Next(ctx context.Context, orgID uuid.UUID, kind, period string) (int64, error)
}

// DocumentPeriod formats the year-month period component of document numbers
func DocumentPeriod(t time.Time) string {
	return t.Format("200601")
}

// FormatInvoiceNumber renders an invoice number, e.g. INV-202608-0042
func FormatInvoiceNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", DocumentPeriod(t), seq)
}

// FormatReceiptNumber renders a receipt number, e.g. RCT-202608-0007
func FormatReceiptNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("RCT-%s-%04d", DocumentPeriod(t), seq)
}

// RepositorySet bundles the ledger repositories bound to one transaction
type RepositorySet struct {
	Invoices  InvoiceRepository
	Payments  PaymentRepository
	Receipts  ReceiptRepository
	Sequences SequenceRepository
}

// TransactionManager runs a function inside one atomic transaction against
// the backing store. The repositories passed to fn are bound to that
// transaction; on error nothing is committed.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, repos RepositorySet) error) error
}
