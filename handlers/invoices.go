package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/invoicing"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/render"
	"github.com/yourusername/clientbook/store"
)

type InvoiceHandler struct {
	invoices *invoicing.Service
	store    *store.Store
	Mutations
}

func NewInvoiceHandler(svc *invoicing.Service, s *store.Store, m Mutations) *InvoiceHandler {
	return &InvoiceHandler{invoices: svc, store: s, Mutations: m}
}

type CreateInvoiceRequest struct {
	ClientID      string                `json:"client_id" binding:"required"`
	ProjectID     *string               `json:"project_id"`
	InvoiceNumber string                `json:"invoice_number" binding:"required,max=50"`
	IssueDate     string                `json:"issue_date" binding:"required"`
	DueDate       string                `json:"due_date" binding:"required"`
	Status        models.InvoiceStatus  `json:"status"`
	TaxRate       decimal.Decimal       `json:"tax_rate"`
	Notes         *string               `json:"notes"`
	LineItems     []invoicing.LineInput `json:"line_items" binding:"dive"`
}

func (r CreateInvoiceRequest) input() (invoicing.CreateInput, error) {
	in := invoicing.CreateInput{
		ClientID:      r.ClientID,
		ProjectID:     r.ProjectID,
		InvoiceNumber: r.InvoiceNumber,
		Status:        r.Status,
		TaxRate:       r.TaxRate,
		Notes:         r.Notes,
		LineItems:     r.LineItems,
	}
	issue, err := requiredDate("issue_date", r.IssueDate)
	if err != nil {
		return in, err
	}
	due, err := requiredDate("due_date", r.DueDate)
	if err != nil {
		return in, err
	}
	in.IssueDate, in.DueDate = *issue, *due
	return in, nil
}

type UpdateInvoiceRequest struct {
	ClientID      *string               `json:"client_id"`
	ProjectID     *string               `json:"project_id"`
	InvoiceNumber *string               `json:"invoice_number" binding:"omitempty,max=50"`
	IssueDate     *string               `json:"issue_date"`
	DueDate       *string               `json:"due_date"`
	Status        *models.InvoiceStatus `json:"status"`
	TaxRate       *decimal.Decimal      `json:"tax_rate"`
	Notes         *string               `json:"notes"`
}

func (r UpdateInvoiceRequest) input() (invoicing.UpdateInput, error) {
	in := invoicing.UpdateInput{
		ClientID:      r.ClientID,
		ProjectID:     r.ProjectID,
		InvoiceNumber: r.InvoiceNumber,
		Status:        r.Status,
		TaxRate:       r.TaxRate,
		Notes:         r.Notes,
	}
	var err error
	if r.IssueDate != nil {
		if in.IssueDate, err = requiredDate("issue_date", *r.IssueDate); err != nil {
			return in, err
		}
	}
	if r.DueDate != nil {
		if in.DueDate, err = requiredDate("due_date", *r.DueDate); err != nil {
			return in, err
		}
	}
	return in, nil
}

func requiredDate(field, raw string) (*time.Time, error) {
	t, err := store.ParseDate(field, raw)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &store.ValidationError{Field: field, Message: "is required"}
	}
	return t, nil
}

func (h *InvoiceHandler) List(c *gin.Context) {
	var f store.InvoiceFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	invoices, err := h.invoices.List(c.Request.Context(), middleware.OrgID(c), f)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// Get returns the invoice with its line items, payments and balance.
func (h *InvoiceHandler) Get(c *gin.Context) {
	detail, err := h.invoices.Detail(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.input()
	var detail *invoicing.Detail
	if err == nil {
		detail, err = h.invoices.CreateInvoice(c.Request.Context(), middleware.OrgID(c), in)
	}
	if err != nil {
		h.failed(c, "Failed to create invoice", err)
		return
	}
	h.succeeded(c, "Invoice created", "Invoice "+detail.Invoice.InvoiceNumber+" was created")
	c.JSON(http.StatusCreated, detail)
}

func (h *InvoiceHandler) Update(c *gin.Context) {
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.input()
	var inv *models.Invoice
	if err == nil {
		inv, err = h.invoices.UpdateInvoice(c.Request.Context(), middleware.OrgID(c), c.Param("id"), in)
	}
	if err != nil {
		h.failed(c, "Failed to update invoice", err)
		return
	}
	h.succeeded(c, "Invoice updated", "Invoice "+inv.InvoiceNumber+" was saved")
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	if err := h.invoices.DeleteInvoice(c.Request.Context(), middleware.OrgID(c), c.Param("id")); err != nil {
		h.failed(c, "Failed to delete invoice", err)
		return
	}
	h.succeeded(c, "Invoice deleted", "The invoice was removed")
	c.Status(http.StatusNoContent)
}

func (h *InvoiceHandler) Recalculate(c *gin.Context) {
	inv, err := h.invoices.Recalculate(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		h.failed(c, "Failed to recalculate invoice", err)
		return
	}
	h.succeeded(c, "Invoice recalculated", "Invoice "+inv.InvoiceNumber+" totals were recomputed")
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) PDF(c *gin.Context) {
	ctx, org := c.Request.Context(), middleware.OrgID(c)
	detail, err := h.invoices.Detail(ctx, org, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	issuer, err := h.store.Orgs.Get(ctx, org)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	var buf bytes.Buffer
	if err := render.Invoice(&buf, issuer, detail); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice-"+detail.Invoice.InvoiceNumber+".pdf"))
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *InvoiceHandler) ListLineItems(c *gin.Context) {
	items, err := h.invoices.ListLineItems(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	var req invoicing.LineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.invoices.AddLineItem(c.Request.Context(), middleware.OrgID(c), c.Param("id"), req)
	if err != nil {
		h.failed(c, "Failed to add line item", err)
		return
	}
	h.succeeded(c, "Line item added", item.Description+" was added")
	c.JSON(http.StatusCreated, item)
}

func (h *InvoiceHandler) UpdateLineItem(c *gin.Context) {
	var patch invoicing.LinePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.invoices.UpdateLineItem(c.Request.Context(), middleware.OrgID(c), c.Param("id"), patch)
	if err != nil {
		h.failed(c, "Failed to update line item", err)
		return
	}
	h.succeeded(c, "Line item updated", item.Description+" was saved")
	c.JSON(http.StatusOK, item)
}

// DeleteLineItem responds with the parent invoice and its recomputed totals.
func (h *InvoiceHandler) DeleteLineItem(c *gin.Context) {
	inv, err := h.invoices.DeleteLineItem(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		h.failed(c, "Failed to delete line item", err)
		return
	}
	h.succeeded(c, "Line item deleted", "Invoice "+inv.InvoiceNumber+" was updated")
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	payments, err := h.invoices.ListPayments(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

type RecordPaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Method    string           `json:"method" binding:"omitempty,max=20"`
	Reference *string          `json:"reference" binding:"omitempty,max=255"`
	PaidAt    string           `json:"paid_at"`
}

func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	paidAt, err := store.ParseDate("paid_at", req.PaidAt)
	var payment *models.Payment
	if err == nil {
		payment, err = h.invoices.RecordPayment(c.Request.Context(), middleware.OrgID(c), c.Param("id"), invoicing.PaymentInput{
			Amount:    req.Amount,
			Method:    req.Method,
			Reference: req.Reference,
			PaidAt:    paidAt,
			CreatedBy: middleware.UserID(c),
		})
	}
	if err != nil {
		h.failed(c, "Failed to record payment", err)
		return
	}
	h.succeeded(c, "Payment recorded", "A payment of "+payment.Amount.StringFixed(2)+" was recorded")
	c.JSON(http.StatusCreated, payment)
}

func (h *InvoiceHandler) DeletePayment(c *gin.Context) {
	inv, err := h.invoices.DeletePayment(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		h.failed(c, "Failed to delete payment", err)
		return
	}
	h.succeeded(c, "Payment deleted", "Invoice "+inv.InvoiceNumber+" was updated")
	c.JSON(http.StatusOK, inv)
}
