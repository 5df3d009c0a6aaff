package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "github.com/nyumbani/backend/internal/application/billing"
	"github.com/nyumbani/backend/internal/interfaces/http/dto"
)

func TestIssueInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	body := `{
		"transaction_class": "RENT",
		"bill_to": "Apartment 12, Kilimani",
		"issue_date": "2026-08-01T00:00:00Z",
		"due_date": "2026-08-31T00:00:00Z",
		"amount": "25000",
		"vat_amount": "4000"
	}`

	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices", orgID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool                       `json:"success"`
		Data    billingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "INV-202608-0001", resp.Data.InvoiceNumber)
	assert.Equal(t, orgID, resp.Data.OrganizationID.String())
	assert.Equal(t, "PENDING", resp.Data.Status)
	assert.Equal(t, "29000", resp.Data.TotalAmount.String())
	assert.Equal(t, "29000", resp.Data.BalanceAmount.String())
	assert.Equal(t, "KES", resp.Data.Currency)
}

func TestIssueInvoiceSequenceIncrements(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	first := seedInvoice(t, router, orgID, "1000", "0")
	second := seedInvoice(t, router, orgID, "2000", "0")

	assert.Equal(t, "INV-202608-0001", first["invoice_number"])
	assert.Equal(t, "INV-202608-0002", second["invoice_number"])
}

func TestIssueInvoiceValidation(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	tests := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{
			name:         "malformed JSON",
			body:         `{"transaction_class":`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing required fields",
			body:         `{"bill_to": "Unit 1"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "due date before issue date",
			body: `{
				"transaction_class": "RENT",
				"issue_date": "2026-08-31T00:00:00Z",
				"due_date": "2026-08-01T00:00:00Z",
				"amount": "1000"
			}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "unknown transaction class",
			body: `{
				"transaction_class": "FREIGHT",
				"issue_date": "2026-08-01T00:00:00Z",
				"due_date": "2026-08-31T00:00:00Z",
				"amount": "1000"
			}`,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/invoices", orgID, tt.body)
			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
		})
	}
}

func TestIssueInvoiceRequiresOrganization(t *testing.T) {
	router := newBillingRouter(newLedgerStore())

	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices", "", `{"transaction_class": "RENT"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetInvoiceByID(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "5000", "800")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/"+invoiceID, orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, invoiceID, resp.Data.ID.String())
	assert.Equal(t, "5800", resp.Data.TotalAmount.String())
}

func TestGetInvoiceNotFound(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/"+uuid.New().String(), orgID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestGetInvoiceInvalidID(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/not-a-uuid", orgID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoiceCrossOrganization(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgA := uuid.New().String()
	orgB := uuid.New().String()

	seeded := seedInvoice(t, router, orgA, "5000", "0")
	invoiceID := seeded["id"].(string)

	// The other organization must not see the invoice or learn it exists
	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/"+invoiceID, orgB, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInvoiceByNumber(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seedInvoice(t, router, orgID, "3000", "0")

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/number/INV-202608-0001", orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INV-202608-0001", resp.Data.InvoiceNumber)
}

func TestListInvoices(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seedInvoice(t, router, orgID, "1000", "0")
	seedInvoice(t, router, orgID, "2000", "0")
	seedInvoice(t, router, uuid.New().String(), "9000", "0") // other org

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices?page=1&page_size=10", orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool                         `json:"success"`
		Data    []billingapp.InvoiceResponse `json:"data"`
		Meta    *dto.Meta                    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 10, resp.Meta.PageSize)
}

func TestListInvoicesUnknownStatus(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices?status=SHIPPED", orgID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoiceSummary(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seedInvoice(t, router, orgID, "10000", "0")
	seedInvoice(t, router, orgID, "5000", "0")

	w := doJSON(t, router, http.MethodGet, "/api/v1/invoices/summary", orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.InvoiceSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "15000", resp.Data.TotalOutstanding.String())
	assert.Equal(t, int64(2), resp.Data.PendingCount)
}

func TestCancelInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "5000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/cancel", orgID, `{"reason": "Lease terminated"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Data.Status)
	assert.Equal(t, "Lease terminated", resp.Data.CancelReason)
	assert.NotNil(t, resp.Data.CancelledAt)
}

func TestCancelPaidInvoiceRejected(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "5000", "0")
	invoiceID := seeded["id"].(string)

	payBody := fmt.Sprintf(`{
		"invoice_id": %q,
		"payment_date": "2026-08-10T00:00:00Z",
		"amount": "5000",
		"payment_method": "MPESA"
	}`, invoiceID)
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, payBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Fully settled invoices cannot be cancelled
	w = doJSON(t, router, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/cancel", orgID, `{"reason": "mistake"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
}

func TestDeleteInvoiceWithPaymentsRejected(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "5000", "0")
	invoiceID := seeded["id"].(string)

	payBody := fmt.Sprintf(`{
		"invoice_id": %q,
		"payment_date": "2026-08-10T00:00:00Z",
		"amount": "2000",
		"payment_method": "CASH"
	}`, invoiceID)
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, payBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodDelete, "/api/v1/invoices/"+invoiceID, orgID, "")
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeConflict, resp.Error.Code)
}

func TestDeleteInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "5000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/invoices/"+invoiceID, orgID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/invoices/"+invoiceID, orgID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkDeleteInvoices(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	first := seedInvoice(t, router, orgID, "1000", "0")
	second := seedInvoice(t, router, orgID, "2000", "0")

	body := fmt.Sprintf(`{"ids": [%q, %q, %q]}`, first["id"], second["id"], uuid.New())
	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices/bulk-delete", orgID, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data BulkDeleteInvoicesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Deleted)
}

func TestBulkDeleteInvoicesEmptyIDs(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodPost, "/api/v1/invoices/bulk-delete", orgID, `{"ids": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
