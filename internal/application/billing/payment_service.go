package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/domain/shared"
	"github.com/nyumbani/backend/internal/domain/shared/valueobject"
	"github.com/nyumbani/backend/internal/infrastructure/telemetry"
)

// PaymentService records and reverses payments. A payment bound to an invoice
// is always validated against the locked invoice row and followed by a full
// reconciliation inside the same transaction.
type PaymentService struct {
	repos          billing.RepositorySet
	txManager      billing.TransactionManager
	eventPublisher shared.EventPublisher
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repos billing.RepositorySet, txManager billing.TransactionManager) *PaymentService {
	return &PaymentService{
		repos:     repos,
		txManager: txManager,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	InvoiceID     *uuid.UUID      `json:"invoice_id"`
	LeaseID       *uuid.UUID      `json:"lease_id"`
	PaymentDate   time.Time       `json:"payment_date" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency"`
	SpotRate      decimal.Decimal `json:"spot_rate"`
	Method        string          `json:"payment_method" binding:"required"`
	Kind          string          `json:"kind"`
	ChequeNumber  string          `json:"cheque_number"`
	ChequeDate    *time.Time      `json:"cheque_date"`
	MobileReceipt string          `json:"mobile_receipt"`
	MobilePhone   string          `json:"mobile_phone"`
	PayeeName     string          `json:"payee_name"`
	PaidFrom      string          `json:"paid_from"`
	PaidTo        string          `json:"paid_to"`
}

// PaymentResponse represents a payment in API responses. When the payment was
// applied to an invoice, the invoice's post-reconciliation state rides along.
type PaymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	InvoiceID      *uuid.UUID      `json:"invoice_id,omitempty"`
	LeaseID        *uuid.UUID      `json:"lease_id,omitempty"`
	ReceiptID      *uuid.UUID      `json:"receipt_id,omitempty"`
	PaymentDate    time.Time       `json:"payment_date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	SpotRate       decimal.Decimal `json:"spot_rate"`
	Method         string          `json:"payment_method"`
	Kind           string          `json:"kind"`
	ChequeNumber   string          `json:"cheque_number,omitempty"`
	ChequeDate     *time.Time      `json:"cheque_date,omitempty"`
	MobileReceipt  string          `json:"mobile_receipt,omitempty"`
	MobilePhone    string          `json:"mobile_phone,omitempty"`
	PayeeName      string          `json:"payee_name,omitempty"`
	PaidFrom       string          `json:"paid_from,omitempty"`
	PaidTo         string          `json:"paid_to,omitempty"`
	RecordedBy     string          `json:"recorded_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Invoice        *InvoiceResponse `json:"invoice,omitempty"`
}

// PaymentListFilter defines filtering options for payment list queries
type PaymentListFilter struct {
	InvoiceID *uuid.UUID `form:"invoice_id"`
	LeaseID   *uuid.UUID `form:"lease_id"`
	ReceiptID *uuid.UUID `form:"receipt_id"`
	Method    string     `form:"payment_method"`
	FromDate  *time.Time `form:"from_date"`
	ToDate    *time.Time `form:"to_date"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// RecordPayment records a payment. When an invoice is referenced, the invoice
// row is locked first, the payment is validated against its current balance,
// and the invoice is reconciled from its full payment set before commit.
func (s *PaymentService) RecordPayment(ctx context.Context, oc shared.OrgContext, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	currency := valueobject.Currency(req.Currency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	var payment *billing.Payment
	var invoice *billing.Invoice
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		if req.InvoiceID != nil {
			var err error
			invoice, err = repos.Invoices.FindByIDForOrgLocked(ctx, oc.OrganizationID(), *req.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil {
				return shared.NewDomainError(shared.ErrCodeNotFound, "Invoice not found")
			}
			if err := invoice.ValidatePayment(req.Amount, currency); err != nil {
				return err
			}
		}

		var err error
		payment, err = billing.NewPayment(
			oc.OrganizationID(),
			req.InvoiceID,
			req.LeaseID,
			nil,
			req.PaymentDate,
			req.Amount,
			currency,
			req.SpotRate,
			billing.PaymentMethod(req.Method),
			billing.PaymentKind(req.Kind),
			oc.Actor(),
		)
		if err != nil {
			return err
		}
		payment.WithChequeDetails(req.ChequeNumber, req.ChequeDate).
			WithMobileDetails(req.MobileReceipt, req.MobilePhone).
			WithParties(req.PayeeName, req.PaidFrom, req.PaidTo)

		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}

		if invoice != nil {
			return reconcileInvoice(ctx, repos, invoice)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID.String())
	s.publishEvents(ctx, payment.GetDomainEvents())
	payment.ClearDomainEvents()
	if invoice != nil {
		s.publishEvents(ctx, invoice.GetDomainEvents())
		invoice.ClearDomainEvents()
	}

	return toPaymentResponse(payment, invoice), nil
}

// GetPayment gets a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, oc shared.OrgContext, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.repos.Payments.FindByIDForOrg(ctx, oc.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNotFound, "Payment not found")
	}
	return toPaymentResponse(payment, nil), nil
}

// ListPayments lists payments with filtering
func (s *PaymentService) ListPayments(ctx context.Context, oc shared.OrgContext, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := billing.PaymentFilter{
		InvoiceID: filter.InvoiceID,
		LeaseID:   filter.LeaseID,
		ReceiptID: filter.ReceiptID,
		FromDate:  filter.FromDate,
		ToDate:    filter.ToDate,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize

	if filter.Method != "" {
		method := billing.PaymentMethod(filter.Method)
		if !method.IsValid() {
			return nil, 0, shared.NewDomainError(shared.ErrCodeValidation, "Unknown payment method")
		}
		domainFilter.Method = &method
	}

	payments, err := s.repos.Payments.FindAllForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repos.Payments.CountForOrg(ctx, oc.OrganizationID(), domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = *toPaymentResponse(&payments[i], nil)
	}
	return responses, total, nil
}

// DeletePayment removes a payment and reverses its effect on the linked
// invoice by a full recomputation from the remaining payments. A payment that
// was produced by a receipt cannot be deleted on its own; the receipt owns the
// settlement and must be deleted as a whole.
func (s *PaymentService) DeletePayment(ctx context.Context, oc shared.OrgContext, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, oc.OrganizationID().String(),
		telemetry.SpanAttrPaymentID, id.String(),
	)

	var payment *billing.Payment
	var invoice *billing.Invoice
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		var err error
		payment, err = repos.Payments.FindByIDForOrg(ctx, oc.OrganizationID(), id)
		if err != nil {
			return err
		}
		if payment == nil {
			return shared.NewDomainError(shared.ErrCodeNotFound, "Payment not found")
		}
		if payment.ReceiptID != nil {
			return shared.NewDomainError(shared.ErrCodeConflict,
				"Payment belongs to a receipt settlement; delete the receipt instead")
		}

		if payment.InvoiceID != nil {
			invoice, err = repos.Invoices.FindByIDForOrgLocked(ctx, oc.OrganizationID(), *payment.InvoiceID)
			if err != nil {
				return err
			}
		}

		if err := repos.Payments.DeleteForOrg(ctx, oc.OrganizationID(), id); err != nil {
			return err
		}

		if invoice != nil {
			return reconcileInvoice(ctx, repos, invoice)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	payment.AddDomainEvent(billing.NewPaymentReversedEvent(payment))
	s.publishEvents(ctx, payment.GetDomainEvents())
	payment.ClearDomainEvents()
	if invoice != nil {
		s.publishEvents(ctx, invoice.GetDomainEvents())
		invoice.ClearDomainEvents()
	}
	return nil
}

// reconcileInvoice recomputes a locked invoice from its full current payment
// set and saves it. Shared by every operation that changes the payment set.
func reconcileInvoice(ctx context.Context, repos billing.RepositorySet, invoice *billing.Invoice) error {
	payments, err := repos.Payments.FindByInvoice(ctx, invoice.OrganizationID, invoice.ID)
	if err != nil {
		return err
	}
	result := billing.Reconcile(invoice, payments, time.Now())
	invoice.ApplyReconciliation(result)
	return repos.Invoices.SaveWithLock(ctx, invoice)
}

func (s *PaymentService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func toPaymentResponse(p *billing.Payment, inv *billing.Invoice) *PaymentResponse {
	resp := &PaymentResponse{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		InvoiceID:      p.InvoiceID,
		LeaseID:        p.LeaseID,
		ReceiptID:      p.ReceiptID,
		PaymentDate:    p.PaymentDate,
		Amount:         p.Amount,
		Currency:       p.Currency.String(),
		SpotRate:       p.SpotRate,
		Method:         p.Method.String(),
		Kind:           string(p.Kind),
		ChequeNumber:   p.ChequeNumber,
		ChequeDate:     p.ChequeDate,
		MobileReceipt:  p.MobileReceipt,
		MobilePhone:    p.MobilePhone,
		PayeeName:      p.PayeeName,
		PaidFrom:       p.PaidFrom,
		PaidTo:         p.PaidTo,
		RecordedBy:     p.RecordedBy,
		CreatedAt:      p.CreatedAt,
	}
	if inv != nil {
		resp.Invoice = toInvoiceResponse(inv)
	}
	return resp
}
