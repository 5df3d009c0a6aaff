package billing

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
	"github.com/nyumbani/backend/internal/infrastructure/telemetry"
)

// ReceiptService creates and reverses receipts. A receipt's settlement is
// held in lock-step: each invoice allocation produces exactly one receipt
// line and exactly one payment stamped with the receipt id, all inside one
// transaction.
type ReceiptService struct {
	repos          billing.RepositorySet
	txManager      billing.TransactionManager
	eventPublisher shared.EventPublisher
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(repos billing.RepositorySet, txManager billing.TransactionManager) *ReceiptService {
	return &ReceiptService{
		repos:     repos,
		txManager: txManager,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReceiptService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ReceiptAllocationRequest applies part of a receipt to one invoice
type ReceiptAllocationRequest struct {
	InvoiceID      uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	WithholdingTax decimal.Decimal `json:"withholding_tax"`
}

// CreateReceiptRequest represents a request to create a receipt
type CreateReceiptRequest struct {
	Type           string                     `json:"receipt_type" binding:"required"`
	Category       string                     `json:"category"`
	PayerName      string                     `json:"payer_name" binding:"required"`
	LesseeID       *uuid.UUID                 `json:"lessee_id"`
	LandlordID     *uuid.UUID                 `json:"landlord_id"`
	Method         string                     `json:"payment_method" binding:"required"`
	DepositAccount string                     `json:"deposit_account"`
	RecordingDate  time.Time                  `json:"recording_date" binding:"required"`
	AmountReceived decimal.Decimal            `json:"amount_received" binding:"required"`
	Currency       string                     `json:"currency"`
	SpotRate       decimal.Decimal            `json:"spot_rate"`
	BankingDate    *time.Time                 `json:"banking_date"`
	Allocations    []ReceiptAllocationRequest `json:"allocations"`
}

// ReceiptLineResponse represents a receipt line in API responses
type ReceiptLineResponse struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceTotal     decimal.Decimal `json:"invoice_total"`
	PreviousReceipts decimal.Decimal `json:"previous_receipts"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	Payment          decimal.Decimal `json:"payment"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	WithholdingTax   decimal.Decimal `json:"withholding_tax"`
}

// ReceiptResponse represents a receipt in API responses
type ReceiptResponse struct {
	ID             uuid.UUID             `json:"id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	ReceiptNumber  string                `json:"receipt_number"`
	Type           string                `json:"receipt_type"`
	Category       string                `json:"category"`
	PayerName      string                `json:"payer_name"`
	LesseeID       *uuid.UUID            `json:"lessee_id,omitempty"`
	LandlordID     *uuid.UUID            `json:"landlord_id,omitempty"`
	Method         string                `json:"payment_method"`
	DepositAccount string                `json:"deposit_account,omitempty"`
	RecordingDate  time.Time             `json:"recording_date"`
	AmountReceived decimal.Decimal       `json:"amount_received"`
	Currency       string                `json:"currency"`
	SpotRate       decimal.Decimal       `json:"spot_rate"`
	BankingDate    *time.Time            `json:"banking_date,omitempty"`
	Lines          []ReceiptLineResponse `json:"lines,omitempty"`
	RecordedBy     string                `json:"recorded_by,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ReceiptListFilter defines filtering options for receipt list queries
type ReceiptListFilter struct {
	Search     string     `form:"search"`
	Type       string     `form:"receipt_type"`
	Category   string     `form:"category"`
	LesseeID   *uuid.UUID `form:"lessee_id"`
	LandlordID *uuid.UUID `form:"landlord_id"`
	FromDate   *time.Time `form:"from_date"`
	ToDate     *time.Time `form:"to_date"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// CreateReceipt creates a receipt and settles it against its invoices. Every
// allocation locks its invoice, snapshots a receipt line, records a payment
// stamped with the receipt id, and reconciles the invoice; the conservation
// check over the full line set runs before anything is persisted.
func (s *ReceiptService) CreateReceipt(ctx context.Context, oc shared.OrgContext, req CreateReceiptRequest) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrAmount, req.AmountReceived.String(),
	)

	// Lock invoices in a stable order so two overlapping receipts cannot
	// deadlock each other.
	allocations := make([]ReceiptAllocationRequest, len(req.Allocations))
	copy(allocations, req.Allocations)
	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].InvoiceID[:], allocations[j].InvoiceID[:]) < 0
	})

	var receipt *billing.Receipt
	var invoices []*billing.Invoice
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		seq, err := repos.Sequences.Next(ctx, oc.OrganizationID(), billing.DocumentKindReceipt, billing.DocumentPeriod(req.RecordingDate))
		if err != nil {
			return err
		}

		receipt, err = billing.NewReceipt(
			oc.OrganizationID(),
			billing.FormatReceiptNumber(req.RecordingDate, seq),
			billing.ReceiptType(req.Type),
			billing.ReceiptCategory(req.Category),
			req.PayerName,
			req.LesseeID,
			req.LandlordID,
			billing.PaymentMethod(req.Method),
			req.DepositAccount,
			req.RecordingDate,
			req.AmountReceived,
			valueobject.Currency(req.Currency),
			req.SpotRate,
			req.BankingDate,
			oc.Actor(),
		)
		if err != nil {
			return err
		}

		// One allocation per invoice; a second line against the same invoice
		// would validate against a stale balance snapshot.
		seen := make(map[uuid.UUID]bool, len(allocations))
		invoices = invoices[:0]
		for _, alloc := range allocations {
			if seen[alloc.InvoiceID] {
				return shared.NewDomainError(shared.ErrCodeValidation, "Duplicate invoice allocation on receipt")
			}
			seen[alloc.InvoiceID] = true
			invoice, err := repos.Invoices.FindByIDForOrgLocked(ctx, oc.OrganizationID(), alloc.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil {
				return shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
			}
			if _, err := receipt.AllocateToInvoice(invoice, alloc.Amount, alloc.WithholdingTax); err != nil {
				return err
			}
			invoices = append(invoices, invoice)
		}

		if err := receipt.ValidateSettlement(); err != nil {
			return err
		}
		if err := repos.Receipts.Create(ctx, receipt); err != nil {
			return err
		}

		receiptID := receipt.ID
		for i, alloc := range allocations {
			payment, err := billing.NewPayment(
				oc.OrganizationID(),
				&invoices[i].ID,
				invoices[i].LeaseID,
				&receiptID,
				req.RecordingDate,
				alloc.Amount,
				receipt.Currency,
				req.SpotRate,
				receipt.Method,
				billing.PaymentKindApplyToBill,
				oc.Actor(),
			)
			if err != nil {
				return err
			}
			payment.WithParties(req.PayerName, "", "")
			if err := repos.Payments.Create(ctx, payment); err != nil {
				return err
			}
			if err := reconcileInvoice(ctx, repos, invoices[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrReceiptNumber, receipt.ReceiptNumber)
	s.publishEvents(ctx, receipt.GetDomainEvents())
	receipt.ClearDomainEvents()
	for _, invoice := range invoices {
		s.publishEvents(ctx, invoice.GetDomainEvents())
		invoice.ClearDomainEvents()
	}

	return toReceiptResponse(receipt), nil
}

// GetReceipt gets a receipt by ID
func (s *ReceiptService) GetReceipt(ctx context.Context, oc shared.OrgContext, id uuid.UUID) (*ReceiptResponse, error) {
	receipt, err := s.repos.Receipts.FindByIDForOrg(ctx, oc.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNotFound, "Receipt not found")
	}
	return toReceiptResponse(receipt), nil
}

// GetReceiptByNumber gets a receipt by its receipt number
func (s *ReceiptService) GetReceiptByNumber(ctx context.Context, oc shared.OrgContext, receiptNumber string) (*ReceiptResponse, error) {
	receipt, err := s.repos.Receipts.FindByNumberForOrg(ctx, oc.OrganizationID(), receiptNumber)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNotFound, "Receipt not found")
	}
	return toReceiptResponse(receipt), nil
}

// ListReceipts lists receipts with filtering
func (s *ReceiptService) ListReceipts(ctx context.Context, oc shared.OrgContext, filter ReceiptListFilter) ([]ReceiptResponse, int64, error) {
	domainFilter := billing.ReceiptFilter{
		LesseeID:   filter.LesseeID,
		LandlordID: filter.LandlordID,
		FromDate:   filter.FromDate,
		ToDate:     filter.ToDate,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Type != "" {
		receiptType := billing.ReceiptType(filter.Type)
		if !receiptType.IsValid() {
			return nil, 0, shared.NewDomainError(shared.ErrCodeValidation, "Unknown receipt type")
		}
		domainFilter.Type = &receiptType
	}
	if filter.Category != "" {
		category := billing.ReceiptCategory(filter.Category)
		if !category.IsValid() {
			return nil, 0, shared.NewDomainError(shared.ErrCodeValidation, "Unknown receipt category")
		}
		domainFilter.Category = &category
	}

	receipts, err := s.repos.Receipts.FindAllForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repos.Receipts.CountForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ReceiptResponse, len(receipts))
	for i := range receipts {
		responses[i] = *toReceiptResponse(&receipts[i])
	}
	return responses, total, nil
}

// DeleteReceipt removes a receipt together with the payments it produced and
// reconciles every invoice those payments had settled. The settlement is
// reversed as a unit; partial reversal of a receipt is not representable.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, oc shared.OrgContext, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrReceiptID, id.String(),
	)

	var receipt *billing.Receipt
	var invoices []*billing.Invoice
	var payments []billing.Payment
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		var err error
		receipt, err = repos.Receipts.FindByIDForOrg(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}
		if receipt == nil {
			return shared.NewDomainError(shared.ErrCodeNotFound, "Receipt not found")
		}

		payments, err = repos.Payments.FindByReceipt(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}

		// Stable lock order across the settled invoices.
		invoiceIDs := make([]uuid.UUID, 0, len(payments))
		seen := make(map[uuid.UUID]bool)
		for i := range payments {
			if payments[i].InvoiceID != nil && !seen[*payments[i].InvoiceID] {
				seen[*payments[i].InvoiceID] = true
				invoiceIDs = append(invoiceIDs, *payments[i].InvoiceID)
			}
		}
		sort.Slice(invoiceIDs, func(i, j int) bool {
			return bytes.Compare(invoiceIDs[i][:], invoiceIDs[j][:]) < 0
		})

		invoices = invoices[:0]
		for _, invoiceID := range invoiceIDs {
			invoice, err := repos.Invoices.FindByIDForOrgLocked(ctx, oc.OrganizationID(), invoiceID)
			if err != nil {
				return err
			}
			if invoice != nil {
				invoices = append(invoices, invoice)
			}
		}

		for i := range payments {
			if err := repos.Payments.DeleteForOrg(ctx, oc.OrganizationID(), payments[i].ID); err != nil {
				return err
			}
		}
		if err := repos.Receipts.DeleteForOrg(ctx, oc.OrganizationID(), id); err != nil {
			return err
		}

		for _, invoice := range invoices {
			if err := reconcileInvoice(ctx, repos, invoice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	receipt.AddDomainEvent(billing.NewReceiptDeletedEvent(receipt, len(payments)))
	s.publishEvents(ctx, receipt.GetDomainEvents())
	receipt.ClearDomainEvents()
	for _, invoice := range invoices {
		s.publishEvents(ctx, invoice.GetDomainEvents())
		invoice.ClearDomainEvents()
	}
	return nil
}

func (s *ReceiptService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func toReceiptResponse(r *billing.Receipt) *ReceiptResponse {
	lines := make([]ReceiptLineResponse, len(r.Lines))
	for i, line := range r.Lines {
		lines[i] = ReceiptLineResponse{
			ID:               line.ID,
			InvoiceID:        line.InvoiceID,
			InvoiceNumber:    line.InvoiceNumber,
			InvoiceTotal:     line.InvoiceTotal,
			PreviousReceipts: line.PreviousReceipts,
			AmountDue:        line.AmountDue,
			Payment:          line.Payment,
			NewBalance:       line.NewBalance,
			WithholdingTax:   line.WithholdingTax,
		}
	}
	return &ReceiptResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		ReceiptNumber:  r.ReceiptNumber,
		Type:           r.Type.String(),
		Category:       string(r.Category),
		PayerName:      r.PayerName,
		LesseeID:       r.LesseeID,
		LandlordID:     r.LandlordID,
		Method:         r.Method.String(),
		DepositAccount: r.DepositAccount,
		RecordingDate:  r.RecordingDate,
		AmountReceived: r.AmountReceived,
		Currency:       r.Currency.String(),
		SpotRate:       r.SpotRate,
		BankingDate:    r.BankingDate,
		Lines:          lines,
		RecordedBy:     r.RecordedBy,
		CreatedAt:      r.CreatedAt,
	}
}
