package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	billingapp "github.com/nyumbani/backend/internal/application/billing"
	"github.com/nyumbani/backend/internal/domain/billing"
	"github.com/nyumbani/backend/internal/interfaces/http/middleware"
)

// In-memory ledger store backing the billing handler tests. The handlers are
// exercised through a real gin router with real application services, so the
// tests cover binding, organization scoping, and error-to-status mapping end
// to end without a database.

type ledgerStore struct {
	invoices  map[uuid.UUID]*billing.Invoice
	payments  map[uuid.UUID]*billing.Payment
	receipts  map[uuid.UUID]*billing.Receipt
	sequences map[string]int64
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		invoices:  make(map[uuid.UUID]*billing.Invoice),
		payments:  make(map[uuid.UUID]*billing.Payment),
		receipts:  make(map[uuid.UUID]*billing.Receipt),
		sequences: make(map[string]int64),
	}
}

func (s *ledgerStore) repos() billing.RepositorySet {
	return billing.RepositorySet{
		Invoices:  (*ledgerInvoiceRepo)(s),
		Payments:  (*ledgerPaymentRepo)(s),
		Receipts:  (*ledgerReceiptRepo)(s),
		Sequences: (*ledgerSequenceRepo)(s),
	}
}

type ledgerTxManager struct {
	store *ledgerStore
}

func (m *ledgerTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, repos billing.RepositorySet) error) error {
	return fn(ctx, m.store.repos())
}

type ledgerInvoiceRepo ledgerStore

func (r *ledgerInvoiceRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || !inv.BelongsTo(orgID) {
		return nil, nil
	}
	return inv, nil
}

func (r *ledgerInvoiceRepo) FindByIDForOrgLocked(ctx context.Context, orgID, id uuid.UUID) (*billing.Invoice, error) {
	return r.FindByIDForOrg(ctx, orgID, id)
}

func (r *ledgerInvoiceRepo) FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.InvoiceNumber == invoiceNumber {
			return inv, nil
		}
	}
	return nil, nil
}

func (r *ledgerInvoiceRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if r.matches(inv, orgID, filter) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *ledgerInvoiceRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	var n int64
	for _, inv := range r.invoices {
		if r.matches(inv, orgID, filter) {
			n++
		}
	}
	return n, nil
}

func (r *ledgerInvoiceRepo) matches(inv *billing.Invoice, orgID uuid.UUID, filter billing.InvoiceFilter) bool {
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

func (r *ledgerInvoiceRepo) SumOutstandingForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.Status != billing.InvoiceStatusCancelled && inv.Status != billing.InvoiceStatusPaid {
			sum = sum.Add(inv.BalanceAmount)
		}
	}
	return sum, nil
}

func (r *ledgerInvoiceRepo) SumOverdueForOrg(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.invoices {
		if inv.BelongsTo(orgID) && inv.IsOverdue(time.Now()) {
			sum = sum.Add(inv.BalanceAmount)
		}
	}
	return sum, nil
}

func (r *ledgerInvoiceRepo) Create(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *ledgerInvoiceRepo) Save(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *ledgerInvoiceRepo) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *ledgerInvoiceRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if inv, ok := r.invoices[id]; ok && inv.BelongsTo(orgID) {
		delete(r.invoices, id)
	}
	return nil
}

func (r *ledgerInvoiceRepo) DeleteManyForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if inv, ok := r.invoices[id]; ok && inv.BelongsTo(orgID) {
			delete(r.invoices, id)
			n++
		}
	}
	return n, nil
}

type ledgerPaymentRepo ledgerStore

func (r *ledgerPaymentRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Payment, error) {
	p, ok := r.payments[id]
	if !ok || !p.BelongsTo(orgID) {
		return nil, nil
	}
	return p, nil
}

func (r *ledgerPaymentRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.PaymentFilter) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.BelongsTo(orgID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *ledgerPaymentRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.PaymentFilter) (int64, error) {
	var n int64
	for _, p := range r.payments {
		if p.BelongsTo(orgID) {
			n++
		}
	}
	return n, nil
}

func (r *ledgerPaymentRepo) FindByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.BelongsTo(orgID) && p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *ledgerPaymentRepo) FindByReceipt(ctx context.Context, orgID, receiptID uuid.UUID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.BelongsTo(orgID) && p.ReceiptID != nil && *p.ReceiptID == receiptID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *ledgerPaymentRepo) CountByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (int64, error) {
	payments, _ := r.FindByInvoice(ctx, orgID, invoiceID)
	return int64(len(payments)), nil
}

func (r *ledgerPaymentRepo) Create(ctx context.Context, payment *billing.Payment) error {
	r.payments[payment.ID] = payment
	return nil
}

func (r *ledgerPaymentRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if p, ok := r.payments[id]; ok && p.BelongsTo(orgID) {
		delete(r.payments, id)
	}
	return nil
}

type ledgerReceiptRepo ledgerStore

func (r *ledgerReceiptRepo) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*billing.Receipt, error) {
	rc, ok := r.receipts[id]
	if !ok || !rc.BelongsTo(orgID) {
		return nil, nil
	}
	return rc, nil
}

func (r *ledgerReceiptRepo) FindByNumberForOrg(ctx context.Context, orgID uuid.UUID, receiptNumber string) (*billing.Receipt, error) {
	for _, rc := range r.receipts {
		if rc.BelongsTo(orgID) && rc.ReceiptNumber == receiptNumber {
			return rc, nil
		}
	}
	return nil, nil
}

func (r *ledgerReceiptRepo) FindAllForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) ([]billing.Receipt, error) {
	var out []billing.Receipt
	for _, rc := range r.receipts {
		if rc.BelongsTo(orgID) {
			out = append(out, *rc)
		}
	}
	return out, nil
}

func (r *ledgerReceiptRepo) CountForOrg(ctx context.Context, orgID uuid.UUID, filter billing.ReceiptFilter) (int64, error) {
	var n int64
	for _, rc := range r.receipts {
		if rc.BelongsTo(orgID) {
			n++
		}
	}
	return n, nil
}

func (r *ledgerReceiptRepo) Create(ctx context.Context, receipt *billing.Receipt) error {
	r.receipts[receipt.ID] = receipt
	return nil
}

func (r *ledgerReceiptRepo) DeleteForOrg(ctx context.Context, orgID, id uuid.UUID) error {
	if rc, ok := r.receipts[id]; ok && rc.BelongsTo(orgID) {
		delete(r.receipts, id)
	}
	return nil
}

type ledgerSequenceRepo ledgerStore

func (r *ledgerSequenceRepo) Next(ctx context.Context, orgID uuid.UUID, kind, period string) (int64, error) {
	key := fmt.Sprintf("%s|%s|%s", orgID, kind, period)
	r.sequences[key]++
	return r.sequences[key], nil
}

// newBillingRouter wires the billing handlers behind a stub scope middleware
// that trusts the X-Org-ID header, standing in for the JWT chain.
func newBillingRouter(store *ledgerStore) *gin.Engine {
	repos := store.repos()
	txManager := &ledgerTxManager{store: store}

	invoiceHandler := NewInvoiceHandler(billingapp.NewInvoiceService(repos, txManager))
	paymentHandler := NewPaymentHandler(billingapp.NewPaymentService(repos, txManager))
	receiptHandler := NewReceiptHandler(billingapp.NewReceiptService(repos, txManager))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if orgID := c.GetHeader("X-Org-ID"); orgID != "" {
			c.Set(middleware.OrganizationIDKey, orgID)
		}
		c.Next()
	})

	v1 := router.Group("/api/v1")
	{
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", invoiceHandler.IssueInvoice)
			invoices.GET("", invoiceHandler.ListInvoices)
			invoices.GET("/summary", invoiceHandler.GetInvoiceSummary)
			invoices.GET("/number/:number", invoiceHandler.GetInvoiceByNumber)
			invoices.GET("/:id", invoiceHandler.GetInvoiceByID)
			invoices.POST("/:id/cancel", invoiceHandler.CancelInvoice)
			invoices.DELETE("/:id", invoiceHandler.DeleteInvoice)
			invoices.POST("/bulk-delete", invoiceHandler.BulkDeleteInvoices)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.RecordPayment)
			payments.GET("", paymentHandler.ListPayments)
			payments.GET("/:id", paymentHandler.GetPaymentByID)
			payments.DELETE("/:id", paymentHandler.DeletePayment)
		}

		receipts := v1.Group("/receipts")
		{
			receipts.POST("", receiptHandler.CreateReceipt)
			receipts.GET("", receiptHandler.ListReceipts)
			receipts.GET("/number/:number", receiptHandler.GetReceiptByNumber)
			receipts.GET("/:id", receiptHandler.GetReceiptByID)
			receipts.DELETE("/:id", receiptHandler.DeleteReceipt)
		}
	}

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, orgID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// seedInvoice issues an invoice over HTTP and returns its response fields
func seedInvoice(t *testing.T, router *gin.Engine, orgID string, amount, vat string) map[string]any {
	t.Helper()

	body := fmt.Sprintf(`{
		"transaction_class": "RENT",
		"bill_to": "Unit 4B",
		"issue_date": "2026-08-01T00:00:00Z",
		"due_date": "2099-12-31T00:00:00Z",
		"amount": %q,
		"vat_amount": %q
	}`, amount, vat)

	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices", orgID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}
