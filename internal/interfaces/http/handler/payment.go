package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/nyumbani/backend/internal/application/billing"
)

// PaymentHandler handles payment API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *billingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *billingapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RecordPayment records a payment, reconciling the target invoice when one
// is referenced.
// POST /api/v1/payments
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var req billingapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), oc, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, payment)
}

// ListPayments lists payments with filtering and pagination.
// GET /api/v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	var filter billingapp.PaymentListFilter
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

	payments, total, err := h.paymentService.ListPayments(c.Request.Context(), oc, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}

// GetPaymentByID retrieves a payment by its ID.
// GET /api/v1/payments/:id
func (h *PaymentHandler) GetPaymentByID(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), oc, paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, payment)
}

// DeletePayment reverses a payment and re-reconciles the affected invoice.
// DELETE /api/v1/payments/:id
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	oc, err := getOrgContext(c)
	if err != nil {
		h.Unauthorized(c, "Organization scope required")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	if err := h.paymentService.DeletePayment(c.Request.Context(), oc, paymentID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
