package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
	"github.com/nyumbani/backend/internal/infrastructure/telemetry"
)

// InvoiceService provides application-level invoice operations. All reads go
// through the plain repository set; every mutation runs inside one transaction
// from the transaction manager.
type InvoiceService struct {
	repos          billing.RepositorySet
	txManager      billing.TransactionManager
	eventPublisher shared.EventPublisher
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(repos billing.RepositorySet, txManager billing.TransactionManager) *InvoiceService {
	return &InvoiceService{
		repos:     repos,
		txManager: txManager,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// InvoiceItemRequest represents one line entry on an invoice creation request
type InvoiceItemRequest struct {
	Particular    string          `json:"particular" binding:"required"`
	IncomeAccount string          `json:"income_account"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost" binding:"required"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

// IssueInvoiceRequest represents a request to issue an invoice
type IssueInvoiceRequest struct {
	LandlordID *uuid.UUID           `json:"landlord_id"`
	LeaseID    *uuid.UUID           `json:"lease_id"`
	Class      string               `json:"transaction_class" binding:"required"`
	BillTo     string               `json:"bill_to"`
	IssueDate  time.Time            `json:"issue_date" binding:"required"`
	DueDate    time.Time            `json:"due_date" binding:"required"`
	Currency   string               `json:"currency"`
	SpotRate   decimal.Decimal      `json:"spot_rate"`
	Amount     decimal.Decimal      `json:"amount" binding:"required"`
	VATAmount  decimal.Decimal      `json:"vat_amount"`
	Draft      bool                 `json:"draft"`
	Items      []InvoiceItemRequest `json:"items"`
}

// InvoiceItemResponse represents an invoice line item in API responses
type InvoiceItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	Particular    string          `json:"particular"`
	IncomeAccount string          `json:"income_account,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID             uuid.UUID             `json:"id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	InvoiceNumber  string                `json:"invoice_number"`
	LandlordID     *uuid.UUID            `json:"landlord_id,omitempty"`
	LeaseID        *uuid.UUID            `json:"lease_id,omitempty"`
	Class          string                `json:"transaction_class"`
	BillTo         string                `json:"bill_to,omitempty"`
	IssueDate      time.Time             `json:"issue_date"`
	DueDate        time.Time             `json:"due_date"`
	Currency       string                `json:"currency"`
	SpotRate       decimal.Decimal       `json:"spot_rate"`
	Amount         decimal.Decimal       `json:"amount"`
	VATAmount      decimal.Decimal       `json:"vat_amount"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	PaidAmount     decimal.Decimal       `json:"paid_amount"`
	BalanceAmount  decimal.Decimal       `json:"balance_amount"`
	Status         string                `json:"status"`
	CancelledAt    *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason   string                `json:"cancel_reason,omitempty"`
	Items          []InvoiceItemResponse `json:"items,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Version        int                   `json:"version"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Search     string     `form:"search"`
	Status     string     `form:"status"`
	Class      string     `form:"transaction_class"`
	LandlordID *uuid.UUID `form:"landlord_id"`
	LeaseID    *uuid.UUID `form:"lease_id"`
	DueFrom    *time.Time `form:"due_from"`
	DueTo      *time.Time `form:"due_to"`
	Overdue    *bool      `form:"overdue"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// IssueInvoice issues a new invoice. The invoice number is drawn from the
// organization's monotonic sequence inside the same transaction that persists
// the invoice, so a rolled-back issue never burns a gap into the ledger.
func (s *InvoiceService) IssueInvoice(ctx context.Context, oc shared.OrgContext, req IssueInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	items := make([]billing.InvoiceItem, 0, len(req.Items))
	for _, ir := range req.Items {
		item, err := billing.NewInvoiceItem(ir.Particular, ir.IncomeAccount, ir.Quantity, ir.UnitCost, ir.TaxRate)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		items = append(items, *item)
	}

	var invoice *billing.Invoice
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		seq, err := repos.Sequences.Next(ctx, oc.OrganizationID(), billing.DocumentKindInvoice, billing.DocumentPeriod(req.IssueDate))
		if err != nil {
			return err
		}

		invoice, err = billing.NewInvoice(
			oc.OrganizationID(),
			billing.FormatInvoiceNumber(req.IssueDate, seq),
			req.LandlordID,
			req.LeaseID,
			billing.TransactionClass(req.Class),
			req.BillTo,
			req.IssueDate,
			req.DueDate,
			valueobject.Currency(req.Currency),
			req.SpotRate,
			req.Amount,
			req.VATAmount,
			decimal.Zero,
			req.Draft,
			items,
		)
		if err != nil {
			return err
		}
		invoice.RecordedBy = oc.Actor()

		return repos.Invoices.Create(ctx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceNumber, invoice.InvoiceNumber)
	s.publishEvents(ctx, invoice.GetDomainEvents())
	invoice.ClearDomainEvents()

	return toInvoiceResponse(invoice), nil
}

// GetInvoice gets an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, oc shared.OrgContext, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.repos.Invoices.FindByIDForOrg(ctx, oc.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
	}
	return toInvoiceResponse(invoice), nil
}

// GetInvoiceByNumber gets an invoice by its invoice number
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, oc shared.OrgContext, invoiceNumber string) (*InvoiceResponse, error) {
	invoice, err := s.repos.Invoices.FindByNumberForOrg(ctx, oc.OrganizationID(), invoiceNumber)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
	}
	return toInvoiceResponse(invoice), nil
}

// ListInvoices lists invoices with filtering
func (s *InvoiceService) ListInvoices(ctx context.Context, oc shared.OrgContext, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter := billing.InvoiceFilter{
		LandlordID: filter.LandlordID,
		LeaseID:    filter.LeaseID,
		DueFrom:    filter.DueFrom,
		DueTo:      filter.DueTo,
		Overdue:    filter.Overdue,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Status != "" {
		status := billing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Unknown invoice status %q", filter.Status))
		}
		domainFilter.Status = &status
	}
	if filter.Class != "" {
		class := billing.TransactionClass(filter.Class)
		if !class.IsValid() {
			return nil, 0, shared.NewDomainError(shared.ErrCodeValidation, fmt.Sprintf("Unknown transaction class %q", filter.Class))
		}
		domainFilter.Class = &class
	}

	invoices, err := s.repos.Invoices.FindAllForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repos.Invoices.CountForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = *toInvoiceResponse(&invoices[i])
	}
	return responses, total, nil
}

// InvoiceSummary aggregates the organization's open position
type InvoiceSummary struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	PendingCount     int64           `json:"pending_count"`
	PartialCount     int64           `json:"partial_count"`
	OverdueCount     int64           `json:"overdue_count"`
}

// GetInvoiceSummary gets a summary of open invoices for an organization
func (s *InvoiceService) GetInvoiceSummary(ctx context.Context, oc shared.OrgContext) (*InvoiceSummary, error) {
	orgID := oc.OrganizationID()

	totalOutstanding, err := s.repos.Invoices.SumOutstandingForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	totalOverdue, err := s.repos.Invoices.SumOverdueForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	countByStatus := func(status billing.InvoiceStatus) (int64, error) {
		filter := billing.InvoiceFilter{Status: &status}
		return s.repos.Invoices.CountForOrg(ctx, orgID, filter)
	}
	pendingCount, err := countByStatus(billing.InvoiceStatusPending)
	if err != nil {
		return nil, err
	}
	partialCount, err := countByStatus(billing.InvoiceStatusPartiallyPaid)
	if err != nil {
		return nil, err
	}
	overdueCount, err := countByStatus(billing.InvoiceStatusOverdue)
	if err != nil {
		return nil, err
	}

	return &InvoiceSummary{
		TotalOutstanding: totalOutstanding,
		TotalOverdue:     totalOverdue,
		PendingCount:     pendingCount,
		PartialCount:     partialCount,
		OverdueCount:     overdueCount,
	}, nil
}

// CancelInvoice voids an invoice. Recorded payments remain on the ledger.
func (s *InvoiceService) CancelInvoice(ctx context.Context, oc shared.OrgContext, id uuid.UUID, reason string) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrInvoiceID, id.String(),
	)

	var invoice *billing.Invoice
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		var err error
		invoice, err = repos.Invoices.FindByIDForOrgLocked(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
		}
		if err := invoice.Cancel(reason); err != nil {
			return err
		}
		return repos.Invoices.SaveWithLock(ctx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, invoice.GetDomainEvents())
	invoice.ClearDomainEvents()

	return toInvoiceResponse(invoice), nil
}

// DeleteInvoice hard deletes an invoice. An invoice with recorded payments
// cannot be deleted; the payments must be removed (or the invoice cancelled)
// first, otherwise payment rows would be left pointing at nothing.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, oc shared.OrgContext, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrInvoiceID, id.String(),
	)

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		invoice, err := repos.Invoices.FindByIDForOrg(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
		}
		count, err := repos.Payments.CountByInvoice(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError(shared.ErrCodeConflict,
				fmt.Sprintf("Invoice %s has %d recorded payment(s) and cannot be deleted", invoice.InvoiceNumber, count))
		}
		return repos.Invoices.DeleteForOrg(ctx, oc.OrganizationID(), id)
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// DeleteInvoices hard deletes several invoices atomically. If any of them has
// recorded payments the whole batch is rejected.
func (s *InvoiceService) DeleteInvoices(ctx context.Context, oc shared.OrgContext, ids []uuid.UUID) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete_many")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrgID, oc.OrganizationID().String())

	if len(ids) == 0 {
		return 0, shared.NewDomainError(shared.ErrCodeValidation, "No invoice ids provided")
	}

	var deleted int64
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		for _, id := range ids {
			count, err := repos.Payments.CountByInvoice(ctx, oc.OrganizationID(), id)
			if err != nil {
				return err
			}
			if count > 0 {
				return shared.NewDomainError(shared.ErrCodeConflict,
					fmt.Sprintf("Invoice %s has recorded payments and cannot be deleted", id))
			}
		}
		var err error
		deleted, err = repos.Invoices.DeleteManyForOrg(ctx, oc.OrganizationID(), ids)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	return deleted, nil
}

func (s *InvoiceService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func toInvoiceResponse(inv *billing.Invoice) *InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:            item.ID,
			Particular:    item.Particular,
			IncomeAccount: item.IncomeAccount,
			Quantity:      item.Quantity,
			UnitCost:      item.UnitCost,
			TaxRate:       item.TaxRate,
			TaxAmount:     item.TaxAmount,
			LineTotal:     item.LineTotal,
		}
	}
	return &InvoiceResponse{
		ID:             inv.ID,
		OrganizationID: inv.OrganizationID,
		InvoiceNumber:  inv.InvoiceNumber,
		LandlordID:     inv.LandlordID,
		LeaseID:        inv.LeaseID,
		Class:          inv.Class.String(),
		BillTo:         inv.BillTo,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Currency:       inv.Currency.String(),
		SpotRate:       inv.SpotRate,
		Amount:         inv.Amount,
		VATAmount:      inv.VATAmount,
		TotalAmount:    inv.TotalAmount,
		PaidAmount:     inv.PaidAmount,
		BalanceAmount:  inv.BalanceAmount,
		Status:         inv.Status.String(),
		CancelledAt:    inv.CancelledAt,
		CancelReason:   inv.CancelReason,
		Items:          items,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
		Version:        inv.GetVersion(),
	}
}
