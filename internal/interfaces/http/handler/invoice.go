package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/nyumbani/backend/internal/application/billing"
)

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
	}
}

// IssueInvoice issues a new invoice for the organization.
// POST /api/v1/invoices
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var req billingapp.IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.IssueInvoice(c.Request.Context(), oc, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, invoice)
}

// ListInvoices lists invoices with filtering and pagination.
// GET /api/v1/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var filter billingapp.InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), oc, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// GetInvoiceSummary returns open-invoice statistics for the organization.
// GET /api/v1/invoices/summary
func (h *InvoiceHandler) GetInvoiceSummary(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	summary, err := h.invoiceService.GetInvoiceSummary(c.Request.Context(), oc)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// GetInvoiceByID retrieves an invoice by its ID.
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), oc, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// GetInvoiceByNumber retrieves an invoice by its document number.
// GET /api/v1/invoices/number/:number
func (h *InvoiceHandler) GetInvoiceByNumber(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Invoice number is required")
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByNumber(c.Request.Context(), oc, number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// CancelInvoiceRequest carries the cancellation reason
type CancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

// CancelInvoice cancels an invoice that has no recorded payments.
// POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), oc, invoiceID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// DeleteInvoice deletes an invoice and its payment history.
// DELETE /api/v1/invoices/:id
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), oc, invoiceID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// BulkDeleteInvoicesRequest carries the invoice IDs to delete
type BulkDeleteInvoicesRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// BulkDeleteInvoicesResponse reports how many invoices were deleted
type BulkDeleteInvoicesResponse struct {
	Deleted int64 `json:"deleted"`
}

// BulkDeleteInvoices deletes a batch of invoices in one transaction.
// POST /api/v1/invoices/bulk-delete
func (h *InvoiceHandler) BulkDeleteInvoices(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var req BulkDeleteInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	deleted, err := h.invoiceService.DeleteInvoices(c.Request.Context(), oc, req.IDs)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, BulkDeleteInvoicesResponse{Deleted: deleted})
}
