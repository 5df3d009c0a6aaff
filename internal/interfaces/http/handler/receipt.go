package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/nyumbani/backend/internal/application/billing"
)

// ReceiptHandler handles receipt API endpoints
type ReceiptHandler struct {
	BaseHandler
	receiptService *billingapp.ReceiptService
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receiptService *billingapp.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
	}
}

// CreateReceipt creates a receipt and settles its allocations against their
// invoices in one transaction.
// POST /api/v1/receipts
func (h *ReceiptHandler) CreateReceipt(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var req billingapp.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	receipt, err := h.receiptService.CreateReceipt(c.Request.Context(), oc, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, receipt)
}

// ListReceipts lists receipts with filtering and pagination.
// GET /api/v1/receipts
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var filter billingapp.ReceiptListFilter
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

	receipts, total, err := h.receiptService.ListReceipts(c.Request.Context(), oc, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, receipts, total, filter.Page, filter.PageSize)
}

// GetReceiptByID retrieves a receipt by its ID.
// GET /api/v1/receipts/:id
func (h *ReceiptHandler) GetReceiptByID(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid receipt ID format")
		return
	}

	receipt, err := h.receiptService.GetReceipt(c.Request.Context(), oc, receiptID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, receipt)
}

// GetReceiptByNumber retrieves a receipt by its document number.
// GET /api/v1/receipts/number/:number
func (h *ReceiptHandler) GetReceiptByNumber(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Receipt number is required")
		return
	}

	receipt, err := h.receiptService.GetReceiptByNumber(c.Request.Context(), oc, number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, receipt)
}

// DeleteReceipt deletes a receipt, reversing its payments and re-reconciling
// every invoice the receipt touched.
// DELETE /api/v1/receipts/:id
func (h *ReceiptHandler) DeleteReceipt(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid receipt ID format")
		return
	}

	if err := h.receiptService.DeleteReceipt(c.Request.Context(), oc, receiptID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
