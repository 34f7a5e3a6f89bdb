// Package reports answers the dashboard's read-only aggregate queries with
// hand-written SQL. Money is summed in Go with decimals, never in SQL.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

const (
	recentLimit   = 5
	revenueMonths = 12
	monthLayout   = "2006-01"
)

type Reports struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Reports {
	return &Reports{db: db}
}

// FromGorm shares gorm's connection pool. The driver name only selects the
// placeholder style.
func FromGorm(db *gorm.DB) (*Reports, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	driver := "pgx"
	if db.Dialector.Name() == "sqlite" {
		driver = "sqlite3"
	}
	return New(sqlx.NewDb(sqlDB, driver)), nil
}

type Stats struct {
	TotalClients   int64           `json:"total_clients"`
	TotalProjects  int64           `json:"total_projects"`
	ActiveProjects int64           `json:"active_projects"`
	TotalInvoices  int64           `json:"total_invoices"`
	PaidInvoices   int64           `json:"paid_invoices"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PendingRevenue decimal.Decimal `json:"pending_revenue"`
	Receivables    decimal.Decimal `json:"outstanding_receivables"`
}

type invoiceRow struct {
	ID     string               `db:"id"`
	Status models.InvoiceStatus `db:"status"`
	Total  decimal.Decimal      `db:"total"`
}

type paymentRow struct {
	InvoiceID string          `db:"invoice_id"`
	Amount    decimal.Decimal `db:"amount"`
}

func (r *Reports) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats computes the headline numbers. Pending revenue covers draft, sent and
// overdue invoices; receivables are what sent and overdue invoices still owe.
func (r *Reports) Stats(ctx context.Context, orgID string) (*Stats, error) {
	var s Stats
	var err error

	if s.TotalClients, err = r.count(ctx, `SELECT COUNT(*) FROM clients WHERE org_id = ?`, orgID); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	if s.TotalProjects, err = r.count(ctx, `SELECT COUNT(*) FROM projects WHERE org_id = ?`, orgID); err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	if s.ActiveProjects, err = r.count(ctx, `SELECT COUNT(*) FROM projects WHERE org_id = ? AND status = ?`,
		orgID, models.ProjectActive); err != nil {
		return nil, fmt.Errorf("count active projects: %w", err)
	}

	var invoices []invoiceRow
	if err := r.db.SelectContext(ctx, &invoices,
		r.db.Rebind(`SELECT id, status, total FROM invoices WHERE org_id = ?`), orgID); err != nil {
		return nil, fmt.Errorf("load invoice totals: %w", err)
	}
	var payments []paymentRow
	if err := r.db.SelectContext(ctx, &payments,
		r.db.Rebind(`SELECT invoice_id, amount FROM payments WHERE org_id = ?`), orgID); err != nil {
		return nil, fmt.Errorf("load payment amounts: %w", err)
	}

	paid := make(map[string]decimal.Decimal, len(payments))
	for _, p := range payments {
		paid[p.InvoiceID] = paid[p.InvoiceID].Add(p.Amount)
	}

	s.TotalInvoices = int64(len(invoices))
	for _, inv := range invoices {
		switch inv.Status {
		case models.InvoicePaid:
			s.PaidInvoices++
			s.TotalRevenue = s.TotalRevenue.Add(inv.Total)
		case models.InvoiceDraft:
			s.PendingRevenue = s.PendingRevenue.Add(inv.Total)
		case models.InvoiceSent, models.InvoiceOverdue:
			s.PendingRevenue = s.PendingRevenue.Add(inv.Total)
			s.Receivables = s.Receivables.Add(inv.Total.Sub(paid[inv.ID]))
		}
	}
	return &s, nil
}

type MonthRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// RevenueByMonth groups paid invoices by the month of their issue date and
// returns the latest twelve months that have revenue, oldest first.
func (r *Reports) RevenueByMonth(ctx context.Context, orgID string) ([]MonthRevenue, error) {
	var rows []struct {
		IssueDate time.Time       `db:"issue_date"`
		Total     decimal.Decimal `db:"total"`
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT issue_date, total FROM invoices WHERE org_id = ? AND status = ?`), orgID, models.InvoicePaid)
	if err != nil {
		return nil, fmt.Errorf("load paid invoices: %w", err)
	}

	byMonth := make(map[string]decimal.Decimal)
	for _, row := range rows {
		month := row.IssueDate.UTC().Format(monthLayout)
		byMonth[month] = byMonth[month].Add(row.Total)
	}

	out := make([]MonthRevenue, 0, len(byMonth))
	for month, revenue := range byMonth {
		out = append(out, MonthRevenue{Month: month, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if len(out) > revenueMonths {
		out = out[len(out)-revenueMonths:]
	}
	return out, nil
}

type RecentInvoice struct {
	ID            string               `db:"id" json:"id"`
	InvoiceNumber string               `db:"invoice_number" json:"invoice_number"`
	ClientName    string               `db:"client_name" json:"client_name"`
	Status        models.InvoiceStatus `db:"status" json:"status"`
	Total         decimal.Decimal      `db:"total" json:"total"`
	IssueDate     time.Time            `db:"issue_date" json:"issue_date"`
	DueDate       time.Time            `db:"due_date" json:"due_date"`
}

// RecentInvoices returns the most recently created invoices with their client's name.
func (r *Reports) RecentInvoices(ctx context.Context, orgID string) ([]RecentInvoice, error) {
	const q = `
		SELECT i.id, i.invoice_number, c.name AS client_name, i.status, i.total, i.issue_date, i.due_date
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.org_id = ?
		ORDER BY i.created_at DESC
		LIMIT ?`
	out := []RecentInvoice{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), orgID, recentLimit); err != nil {
		return nil, fmt.Errorf("load recent invoices: %w", err)
	}
	return out, nil
}

// Ping checks that the database answers.
func (r *Reports) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
