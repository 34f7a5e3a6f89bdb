// Package render produces the downloadable A4 PDF of an invoice.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/billing"
	"github.com/yourusername/clientbook/invoicing"
	"github.com/yourusername/clientbook/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	dateLayout = "02 Jan 2006"
	margin     = 15.0
	lineHeight = 7.0
)

// column widths of the line-item table, summing to the printable width
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 95, "L"},
	{"Qty", 20, "R"},
	{"Unit price", 30, "R"},
	{"Amount", 35, "R"},
}

// Money formats an amount with thousands separators and the currency code,
// e.g. "USD 1,234.50".
func Money(p *message.Printer, currency string, amount decimal.Decimal) string {
	fixed := amount.StringFixed(billing.CurrencyPlaces)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return strings.TrimSpace(currency + " " + sign + fixed)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s%s.%s", currency, sign, p.Sprintf("%d", n), frac))
}

// Invoice writes the PDF for d, issued by org, to w.
func Invoice(w io.Writer, org *models.Org, d *invoicing.Detail) error {
	p := message.NewPrinter(language.English)
	money := func(v decimal.Decimal) string { return Money(p, org.Currency, v) }
	inv := d.Invoice

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, tr(org.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, lineHeight, tr("Invoice "+inv.InvoiceNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Status: "+strings.ToUpper(string(inv.Status)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, lineHeight, "Bill to", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Issued "+inv.IssueDate.Format(dateLayout), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	var billTo []string
	if c := inv.Client; c != nil {
		billTo = append(billTo, c.Name)
		for _, v := range []*string{c.Company, c.Address, c.Email, c.Phone} {
			if v != nil && *v != "" {
				billTo = append(billTo, *v)
			}
		}
	}
	for i, line := range billTo {
		right := ""
		if i == 0 {
			right = "Due " + inv.DueDate.Format(dateLayout)
		}
		pdf.CellFormat(100, lineHeight, tr(line), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineHeight, right, "", 1, "R", false, 0, "")
	}
	if inv.Project != nil {
		pdf.CellFormat(0, lineHeight, tr("Project: "+inv.Project.Name), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range columns {
		pdf.CellFormat(col.width, 8, col.title, "B", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range d.LineItems {
		cells := []string{tr(item.Description), item.Quantity.String(), money(item.UnitPrice), money(item.LineTotal)}
		for i, col := range columns {
			pdf.CellFormat(col.width, lineHeight, cells[i], "", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	labelWidth := columns[0].width + columns[1].width + columns[2].width
	totals := []struct {
		label string
		value decimal.Decimal
		bold  bool
	}{
		{"Subtotal", inv.Subtotal, false},
		{"Tax (" + inv.TaxRate.String() + "%)", inv.TaxAmount, false},
		{"Total", inv.Total, true},
		{"Paid", d.AmountPaid, false},
		{"Balance due", d.Outstanding, true},
	}
	for _, row := range totals {
		style := ""
		if row.bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(labelWidth, lineHeight, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(columns[3].width, lineHeight, money(row.value), "", 1, "R", false, 0, "")
	}

	if inv.Notes != nil && *inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, lineHeight, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(*inv.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}
