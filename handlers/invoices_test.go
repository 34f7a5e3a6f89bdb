package handlers

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/clientbook/invoicing"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/testutil"
)

// createInvoice posts the reference invoice: 2 × 50 + 1 × 25 at 10% tax.
func createInvoice(t *testing.T, ts *testServer, tok, clientID, number string) invoicing.Detail {
	t.Helper()
	w := ts.do(t, "POST", "/api/v1/invoices", tok, gin.H{
		"client_id":      clientID,
		"invoice_number": number,
		"issue_date":     "2024-03-01",
		"due_date":       "2024-03-31",
		"tax_rate":       "10",
		"line_items": []gin.H{
			{"description": "Design", "quantity": "2", "unit_price": "50"},
			{"description": "Hosting", "quantity": "1", "unit_price": "25"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d invoicing.Detail
	decode(t, w, &d)
	return d
}

func TestInvoiceLifecycle(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")

	d := createInvoice(t, ts, tok, client.ID, "INV-001")
	assert.Equal(t, models.InvoiceDraft, d.Invoice.Status)
	assert.Len(t, d.LineItems, 2)
	assertMoney(t, "125", d.Invoice.Subtotal)
	assertMoney(t, "12.50", d.Invoice.TaxAmount)
	assertMoney(t, "137.50", d.Invoice.Total)
	assertMoney(t, "137.50", d.Outstanding)
	id := d.Invoice.ID

	w := ts.do(t, "PUT", "/api/v1/invoices/"+id, tok, gin.H{"status": "sent"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("non-numeric amount is a bad request", func(t *testing.T) {
		w := ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, `{"amount":"abc","method":"eft"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero amount is rejected", func(t *testing.T) {
		w := ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, gin.H{"amount": "0", "method": "eft"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		w := ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, gin.H{"amount": "200", "method": "eft"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Overpayment")
	})

	t.Run("bad payment date", func(t *testing.T) {
		w := ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, gin.H{"amount": "10", "paid_at": "03/01/2024"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"paid_at"`)
	})

	w = ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, gin.H{"amount": "37.50", "method": "cash", "paid_at": "2024-03-10"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var partial models.Payment
	decode(t, w, &partial)
	require.NotNil(t, partial.CreatedBy)
	assert.Equal(t, tenant.Admin.ID, *partial.CreatedBy)

	w = ts.do(t, "POST", "/api/v1/invoices/"+id+"/payments", tok, gin.H{"amount": "100", "method": "eft"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/v1/invoices/"+id, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &d)
	assert.Equal(t, models.InvoicePaid, d.Invoice.Status)
	assert.Len(t, d.Payments, 2)
	assertMoney(t, "137.50", d.AmountPaid)
	assertMoney(t, "0", d.Outstanding)

	w = ts.do(t, "POST", "/api/v1/invoices/"+id+"/line-items", tok, gin.H{"description": "Extra", "quantity": "1", "unit_price": "5"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "InvoiceLocked")

	w = ts.do(t, "PUT", "/api/v1/invoices/"+id, tok, gin.H{"notes": "Thanks for the prompt payment"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "DELETE", "/api/v1/invoices/"+id, tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvoiceLineItemEndpoints(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	d := createInvoice(t, ts, tok, client.ID, "INV-002")

	w := ts.do(t, "POST", "/api/v1/invoices/"+d.Invoice.ID+"/line-items", tok, gin.H{
		"description": "Support", "quantity": "1.5", "unit_price": "33.33",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.InvoiceLineItem
	decode(t, w, &item)
	assertMoney(t, "50.00", item.LineTotal)

	w = ts.do(t, "POST", "/api/v1/invoices/"+d.Invoice.ID+"/line-items", tok, gin.H{
		"description": "Refund", "quantity": "1", "unit_price": "-5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, "PUT", "/api/v1/line-items/"+item.ID, tok, gin.H{"quantity": "3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &item)
	assertMoney(t, "99.99", item.LineTotal)

	w = ts.do(t, "GET", "/api/v1/invoices/"+d.Invoice.ID, tok, nil)
	decode(t, w, &d)
	assertMoney(t, "224.99", d.Invoice.Subtotal)
	assertMoney(t, "22.50", d.Invoice.TaxAmount)
	assertMoney(t, "247.49", d.Invoice.Total)

	w = ts.do(t, "DELETE", "/api/v1/line-items/"+item.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var inv models.Invoice
	decode(t, w, &inv)
	assertMoney(t, "137.50", inv.Total)
}

func TestInvoiceValidation(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	createInvoice(t, ts, tok, client.ID, "INV-003")

	tests := []struct {
		name string
		body gin.H
		code int
	}{
		{"missing number", gin.H{"client_id": client.ID, "issue_date": "2024-01-01", "due_date": "2024-01-02"}, http.StatusBadRequest},
		{"bad issue date", gin.H{"client_id": client.ID, "invoice_number": "A", "issue_date": "yesterday", "due_date": "2024-01-02"}, http.StatusUnprocessableEntity},
		{"due before issue", gin.H{"client_id": client.ID, "invoice_number": "A", "issue_date": "2024-02-01", "due_date": "2024-01-02"}, http.StatusUnprocessableEntity},
		{"negative tax", gin.H{"client_id": client.ID, "invoice_number": "A", "issue_date": "2024-01-01", "due_date": "2024-01-02", "tax_rate": "-1"}, http.StatusUnprocessableEntity},
		{"tax above 100", gin.H{"client_id": client.ID, "invoice_number": "A", "issue_date": "2024-01-01", "due_date": "2024-01-02", "tax_rate": "1000"}, http.StatusUnprocessableEntity},
		{"duplicate number", gin.H{"client_id": client.ID, "invoice_number": "INV-003", "issue_date": "2024-01-01", "due_date": "2024-01-02"}, http.StatusConflict},
		{"line without description", gin.H{"client_id": client.ID, "invoice_number": "A", "issue_date": "2024-01-01", "due_date": "2024-01-02",
			"line_items": []gin.H{{"quantity": "1", "unit_price": "1"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/api/v1/invoices", tok, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w := ts.do(t, "GET", "/api/v1/invoices?status=draft&client_id="+client.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Invoice
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestInvoiceTransitionRejected(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	d := createInvoice(t, ts, tok, client.ID, "INV-004")

	w := ts.do(t, "PUT", "/api/v1/invoices/"+d.Invoice.ID, tok, gin.H{"status": "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, "PUT", "/api/v1/invoices/"+d.Invoice.ID, tok, gin.H{"status": "overdue"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidTransition")
}

func TestDeletePaymentReopensBalance(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	d := createInvoice(t, ts, tok, client.ID, "INV-005")

	w := ts.do(t, "POST", "/api/v1/invoices/"+d.Invoice.ID+"/payments", tok, gin.H{"amount": "50", "method": "card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Payment
	decode(t, w, &p)

	w = ts.do(t, "GET", "/api/v1/invoices/"+d.Invoice.ID+"/payments", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []models.Payment
	decode(t, w, &payments)
	assert.Len(t, payments, 1)

	w = ts.do(t, "DELETE", "/api/v1/payments/"+p.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/v1/invoices/"+d.Invoice.ID, tok, nil)
	decode(t, w, &d)
	assertMoney(t, "137.50", d.Outstanding)

	w = ts.do(t, "DELETE", "/api/v1/invoices/"+d.Invoice.ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInvoicePDF(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	d := createInvoice(t, ts, tok, client.ID, "INV-006")

	w := ts.do(t, "GET", "/api/v1/invoices/"+d.Invoice.ID+"/pdf", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice-INV-006.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = ts.do(t, "GET", "/api/v1/invoices/unknown/pdf", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
