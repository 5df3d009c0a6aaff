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

func recordPaymentBody(invoiceID, amount, method string) string {
	return fmt.Sprintf(`{
		"invoice_id": %q,
		"payment_date": "2026-08-10T00:00:00Z",
		"amount": %q,
		"payment_method": %q
	}`, invoiceID, amount, method)
}

func TestRecordPayment(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, "4000", "MPESA"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool                       `json:"success"`
		Data    billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "4000", resp.Data.Amount.String())
	assert.Equal(t, "MPESA", resp.Data.Method)

	// The reconciled invoice rides along on the response
	require.NotNil(t, resp.Data.Invoice)
	assert.Equal(t, "PARTIALLY_PAID", resp.Data.Invoice.Status)
	assert.Equal(t, "4000", resp.Data.Invoice.PaidAmount.String())
	assert.Equal(t, "6000", resp.Data.Invoice.BalanceAmount.String())
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, "10000", "BANK_TRANSFER"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Invoice)
	assert.Equal(t, "PAID", resp.Data.Invoice.Status)
	assert.True(t, resp.Data.Invoice.BalanceAmount.IsZero())
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, "10001", "CASH"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeOverpayment, resp.Error.Code)
}

func TestRecordPaymentCurrencyMismatchRejected(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0") // KES invoice
	invoiceID := seeded["id"].(string)

	body := fmt.Sprintf(`{
		"invoice_id": %q,
		"payment_date": "2026-08-10T00:00:00Z",
		"amount": "100",
		"currency": "USD",
		"payment_method": "CASH"
	}`, invoiceID)
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeCurrencyMismatch, resp.Error.Code)
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(uuid.New().String(), "100", "CASH"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordPaymentCrossOrganizationInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgA := uuid.New().String()
	orgB := uuid.New().String()

	seeded := seedInvoice(t, router, orgA, "10000", "0")
	invoiceID := seeded["id"].(string)

	// Paying another organization's invoice reads as not found
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgB, recordPaymentBody(invoiceID, "100", "CASH"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordStandalonePayment(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	body := `{
		"payment_date": "2026-08-10T00:00:00Z",
		"amount": "1500",
		"payment_method": "CASH",
		"payee_name": "John Otieno"
	}`
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Data.InvoiceID)
	assert.Nil(t, resp.Data.Invoice)
	assert.Equal(t, "John Otieno", resp.Data.PayeeName)
}

func TestRecordPaymentValidation(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"amount":`},
		{"missing method", `{"payment_date": "2026-08-10T00:00:00Z", "amount": "100"}`},
		{"unknown method", `{"payment_date": "2026-08-10T00:00:00Z", "amount": "100", "payment_method": "BARTER"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetPaymentByID(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, "4000", "MPESA"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, router, http.MethodGet, "/api/v1/payments/"+created.Data.ID.String(), orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.Data.ID, resp.Data.ID)
	assert.Equal(t, "4000", resp.Data.Amount.String())
}

func TestGetPaymentNotFound(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodGet, "/api/v1/payments/"+uuid.New().String(), orgID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPayments(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	for _, amount := range []string{"1000", "2000"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, amount, "CASH"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/payments", orgID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []billingapp.PaymentResponse `json:"data"`
		Meta *dto.Meta                    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
}

func TestDeletePaymentReconcilesInvoice(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	seeded := seedInvoice(t, router, orgID, "10000", "0")
	invoiceID := seeded["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", orgID, recordPaymentBody(invoiceID, "10000", "BANK_TRANSFER"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data billingapp.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Data.Invoice)
	require.Equal(t, "PAID", created.Data.Invoice.Status)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/payments/"+created.Data.ID.String(), orgID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Reversal recomputes the invoice back to an open position
	w = doJSON(t, router, http.MethodGet, "/api/v1/invoices/"+invoiceID, orgID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var inv struct {
		Data billingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, "PENDING", inv.Data.Status)
	assert.True(t, inv.Data.PaidAmount.IsZero())
	assert.Equal(t, "10000", inv.Data.BalanceAmount.String())
}

func TestDeletePaymentNotFound(t *testing.T) {
	router := newBillingRouter(newLedgerStore())
	orgID := uuid.New().String()

	w := doJSON(t, router, http.MethodDelete, "/api/v1/payments/"+uuid.New().String(), orgID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
