package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/testutil"
	"gorm.io/gorm"
)

func seedInvoice(t *testing.T, db *gorm.DB, orgID, clientID, number string, status models.InvoiceStatus, total string, issued time.Time) models.Invoice {
	t.Helper()
	inv := models.Invoice{
		OrgID:         orgID,
		ClientID:      clientID,
		InvoiceNumber: number,
		IssueDate:     issued,
		DueDate:       issued.AddDate(0, 0, 30),
		Status:        status,
		Subtotal:      testutil.Dec(total),
		Total:         testutil.Dec(total),
	}
	require.NoError(t, db.Create(&inv).Error)
	return inv
}

func setup(t *testing.T) (*Reports, *gorm.DB, testutil.Tenant, models.Client) {
	db := testutil.NewDB(t)
	tenant := testutil.SeedTenant(t, db, "Acme", "admin@acme.test")
	client := testutil.SeedClient(t, db, tenant.Org.ID, "Wayne Enterprises")
	r, err := FromGorm(db)
	require.NoError(t, err)
	return r, db, tenant, client
}

func TestStats(t *testing.T) {
	r, db, tenant, client := setup(t)
	ctx := context.Background()
	org := tenant.Org.ID
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.Project{OrgID: org, ClientID: client.ID, Name: "Site", Status: models.ProjectActive}).Error)
	require.NoError(t, db.Create(&models.Project{OrgID: org, ClientID: client.ID, Name: "App", Status: models.ProjectCompleted}).Error)

	seedInvoice(t, db, org, client.ID, "INV-1", models.InvoicePaid, "137.50", day)
	seedInvoice(t, db, org, client.ID, "INV-2", models.InvoicePaid, "0.10", day)
	seedInvoice(t, db, org, client.ID, "INV-3", models.InvoiceDraft, "50.00", day)
	sent := seedInvoice(t, db, org, client.ID, "INV-4", models.InvoiceSent, "200.00", day)
	seedInvoice(t, db, org, client.ID, "INV-5", models.InvoiceOverdue, "0.20", day)
	seedInvoice(t, db, org, client.ID, "INV-6", models.InvoiceCancelled, "999.00", day)
	require.NoError(t, db.Create(&models.Payment{OrgID: org, InvoiceID: sent.ID, Amount: testutil.Dec("75.25"), Method: models.MethodEFT, PaidAt: day}).Error)

	other := testutil.SeedTenant(t, db, "Globex", "admin@globex.test")
	otherClient := testutil.SeedClient(t, db, other.Org.ID, "Hank")
	seedInvoice(t, db, other.Org.ID, otherClient.ID, "INV-1", models.InvoicePaid, "5000.00", day)

	stats, err := r.Stats(ctx, org)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalClients)
	assert.Equal(t, int64(2), stats.TotalProjects)
	assert.Equal(t, int64(1), stats.ActiveProjects)
	assert.Equal(t, int64(6), stats.TotalInvoices)
	assert.Equal(t, int64(2), stats.PaidInvoices)
	assert.Equal(t, "137.60", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "250.20", stats.PendingRevenue.StringFixed(2))
	assert.Equal(t, "124.95", stats.Receivables.StringFixed(2))
}

func TestStatsEmptyOrganization(t *testing.T) {
	r, _, tenant, _ := setup(t)
	stats, err := r.Stats(context.Background(), tenant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClients)
	assert.Equal(t, int64(0), stats.TotalInvoices)
	assert.True(t, stats.TotalRevenue.IsZero())
}

func TestRevenueByMonth(t *testing.T) {
	r, db, tenant, client := setup(t)
	org := tenant.Org.ID
	start := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 14; i++ {
		seedInvoice(t, db, org, client.ID, "P-"+string(rune('A'+i)), models.InvoicePaid, "100.00", start.AddDate(0, i, 0))
	}
	seedInvoice(t, db, org, client.ID, "P-EXTRA", models.InvoicePaid, "0.10", start.AddDate(0, 13, 3))
	seedInvoice(t, db, org, client.ID, "S-1", models.InvoiceSent, "500.00", start.AddDate(0, 13, 0))

	months, err := r.RevenueByMonth(context.Background(), org)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, "2023-03", months[0].Month)
	last := months[len(months)-1]
	assert.Equal(t, "2024-02", last.Month)
	assert.Equal(t, "100.10", last.Revenue.StringFixed(2))
}

func TestRecentInvoices(t *testing.T) {
	r, db, tenant, client := setup(t)
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		seedInvoice(t, db, tenant.Org.ID, client.ID, "INV-"+string(rune('0'+i)), models.InvoiceDraft, "10.00", day)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := r.RecentInvoices(context.Background(), tenant.Org.ID)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "INV-6", recent[0].InvoiceNumber)
	assert.Equal(t, "Wayne Enterprises", recent[0].ClientName)
	assert.Equal(t, "10.00", recent[0].Total.StringFixed(2))
}
