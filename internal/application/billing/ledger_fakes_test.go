package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyumbani/backend/internal/domain/billing"
)

// In-memory repository set backing the service tests. One memStore plays both
// the ambient repositories and the transaction-bound ones; the fake
// transaction manager hands the same store back, which is enough to exercise
// the orchestration logic (validation, sequencing, reconciliation ordering).

type memStore struct {
	invoices  map[uuid.UUID]*billing.Invoice
	payments  map[uuid.UUID]*billing.Payment
	receipts  map[uuid.UUID]*billing.Receipt
	sequences map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		invoices:  make(map[uuid.UUID]*billing.Invoice),
		payments:  make(map[uuid.UUID]*billing.Payment),
		receipts:  make(map[uuid.UUID]*billing.Receipt),
		sequences: make(map[string]int64),
	}
}

func (s *memStore) repos() billing.RepositorySet {
	return billing.RepositorySet{
		Invoices:  (*memInvoiceRepo)(s),
		Payments:  (*memPaymentRepo)(s),
		Receipts:  (*memReceiptRepo)(s),
		Sequences: (*memSequenceRepo)(s),
	}
}

// memTxManager runs the function against the shared store. It does not
// snapshot state, so a failed "transaction" is not rolled back; tests that
// exercise failure paths assert on the error, not on store contents.
type memTxManager struct {
	store *memStore
}

func (m *memTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, repos billing.RepositorySet) error) error {
	return fn(ctx, m.store.repos())
}

// ---- invoices ----

type memInvoiceRepo memStore

func (r *memInvoiceRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || !inv.BelongsTo(orgID) {
		return nil, nil
	}
	return inv, nil
}

func (r *memInvoiceRepo) FindByIDForOrgLocked(ctx context.Context, orgID, id uuid.UUID) (*billing.Invoice, error) {
	return r.FindByIDForOrg(ctx, orgID, id)
}

func (r *memInvoiceRepo) FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.InvoiceNumber == invoiceNumber {
			return inv, nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if invoiceMatches(inv, orgID, filter) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	var n int64
	for _, inv := range r.invoices {
		if invoiceMatches(inv, orgID, filter) {
			n++
		}
	}
	return n, nil
}

func invoiceMatches(inv *billing.Invoice, orgID uuid.UUID, filter billing.InvoiceFilter) bool {
	if !inv.BelongsTo(orgID) {
		return false
	}
	if filter.Status != nil && inv.Status != *filter.Status {
		return false
	}
	if filter.Class != nil && inv.Class != *filter.Class {
		return false
	}
	if filter.Search != "" && !strings.Contains(inv.InvoiceNumber, filter.Search) {
		return false
	}
	return true
}

func (r *memInvoiceRepo) SumOutstandingForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.Status != billing.InvoiceStatusCancelled && inv.Status != billing.InvoiceStatusPaid {
			sum = sum.Add(inv.BalanceAmount)
		}
	}
	return sum, nil
}

func (r *memInvoiceRepo) SumOverdueForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.IsOverdue(time.Now()) {
			sum = sum.Add(inv.BalanceAmount)
		}
	}
	return sum, nil
}

func (r *memInvoiceRepo) Create(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *memInvoiceRepo) Save(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *memInvoiceRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if inv, ok := r.invoices[id]; ok && inv.BelongsTo(orgID) {
		delete(r.invoices, id)
	}
	return nil
}

func (r *memInvoiceRepo) DeleteManyForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if inv, ok := r.invoices[id]; ok && inv.BelongsTo(orgID) {
			delete(r.invoices, id)
			n++
		}
	}
	return n, nil
}

// ---- payments ----

type memPaymentRepo memStore

func (r *memPaymentRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Payment, error) {
	p, ok := r.payments[id]
	if !ok || !p.BelongsTo(orgID) {
		return nil, nil
	}
	return p, nil
}

func (r *memPaymentRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.PaymentFilter) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if paymentMatches(p, orgID, filter) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.PaymentFilter) (int64, error) {
	var n int64
	for _, p := range r.payments {
		if paymentMatches(p, orgID, filter) {
			n++
		}
	}
	return n, nil
}

func paymentMatches(p *billing.Payment, orgID uuid.UUID, filter billing.PaymentFilter) bool {
	if !p.BelongsTo(orgID) {
		return false
	}
	if filter.InvoiceID != nil && (p.InvoiceID == nil || *p.InvoiceID != *filter.InvoiceID) {
		return false
	}
	if filter.ReceiptID != nil && (p.ReceiptID == nil || *p.ReceiptID != *filter.ReceiptID) {
		return false
	}
	if filter.Method != nil && p.Method != *filter.Method {
		return false
	}
	return true
}

func (r *memPaymentRepo) FindByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.BelongsTo(orgID) && p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) FindByReceipt(ctx context.Context, orgID, receiptID uuid.UUID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.BelongsTo(orgID) && p.ReceiptID != nil && *p.ReceiptID == receiptID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) CountByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (int64, error) {
	payments, _ := r.FindByInvoice(ctx, orgID, invoiceID)
	return int64(len(payments)), nil
}

func (r *memPaymentRepo) Create(ctx context.Context, payment *billing.Payment) error {
	r.payments[payment.ID] = payment
	return nil
}

func (r *memPaymentRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if p, ok := r.payments[id]; ok && p.BelongsTo(orgID) {
		delete(r.payments, id)
	}
	return nil
}

// ---- receipts ----

type memReceiptRepo memStore

func (r *memReceiptRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Receipt, error) {
	rc, ok := r.receipts[id]
	if !ok || !rc.BelongsTo(orgID) {
		return nil, nil
	}
	return rc, nil
}

func (r *memReceiptRepo) FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, receiptNumber string) (*billing.Receipt, error) {
	for _, rc := range r.receipts {
		if rc.BelongsTo(orgID) && rc.ReceiptNumber == receiptNumber {
			return rc, nil
		}
	}
	return nil, nil
}

func (r *memReceiptRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) ([]billing.Receipt, error) {
	var out []billing.Receipt
	for _, rc := range r.receipts {
		if receiptMatches(rc, orgID, filter) {
			out = append(out, *rc)
		}
	}
	return out, nil
}

func (r *memReceiptRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) (int64, error) {
	var n int64
	for _, rc := range r.receipts {
		if receiptMatches(rc, orgID, filter) {
			n++
		}
	}
	return n, nil
}

func receiptMatches(rc *billing.Receipt, orgID uuid.UUID, filter billing.ReceiptFilter) bool {
	if !rc.BelongsTo(orgID) {
		return false
	}
	if filter.Type != nil && rc.Type != *filter.Type {
		return false
	}
	if filter.Category != nil && rc.Category != *filter.Category {
		return false
	}
	return true
}

func (r *memReceiptRepo) Create(ctx context.Context, receipt *billing.Receipt) error {
	r.receipts[receipt.ID] = receipt
	return nil
}

func (r *memReceiptRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if rc, ok := r.receipts[id]; ok && rc.BelongsTo(orgID) {
		delete(r.receipts, id)
	}
	return nil
}

// ---- sequences ----

type memSequenceRepo memStore

func (r *memSequenceRepo) Next(ctx context.Context, orgID uuid.UUID, kind, period string) (int64, error) {
	key := fmt.Sprintf("%s|%s|%s", orgID, kind, period)
	r.sequences[key]++
	return r.sequences[key], nil
}
